package notifications

import (
	"bytes"
	"html/template"
	"time"

	"wisebox-backend/internal/models"
)

const verificationCodeTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hello {{.Name}},</p>
  <p>Welcome to Wisebox. Enter this code to verify your email address:</p>
  <p style="font-size:24px;letter-spacing:8px"><strong>{{.Code}}</strong></p>
  <p>The code expires in {{.Minutes}} minutes. If you did not sign up, you can ignore this email.</p>
</body>
</html>`

const passwordResetTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hello {{.Name}},</p>
  <p>We received a request to reset your Wisebox password.</p>
  <p><a href="{{.Link}}">Choose a new password</a></p>
  <p>The link expires in {{.Minutes}} minutes. If you did not ask for a reset, no action is needed.</p>
</body>
</html>`

var (
	verificationCodeTmpl = template.Must(template.New("verification_code").Parse(verificationCodeTemplate))
	passwordResetTmpl    = template.Must(template.New("password_reset").Parse(passwordResetTemplate))
)

type accountEmailData struct {
	Name    string
	Code    string
	Link    string
	Minutes int
}

func buildAccountHTML(tmpl *template.Template, user models.User, code, link string, ttl time.Duration) (string, error) {
	name := user.Name
	if name == "" {
		name = user.Email
	}
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, accountEmailData{
		Name:    name,
		Code:    code,
		Link:    link,
		Minutes: int(ttl.Round(time.Minute) / time.Minute),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
