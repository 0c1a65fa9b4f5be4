package notifications

import (
	"bytes"
	"html/template"

	"wisebox-backend/internal/models"
)

const consultationConfirmationTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hello {{.Name}},</p>
  <p>Your consultation has been booked. Here are the details:</p>
  <ul>
    <li>Service: {{.ServiceName}}</li>
    <li>Date: {{.Date}}</li>
    <li>Time: {{.Time}} (Bangladesh time)</li>
    <li>Duration: {{.DurationMinutes}} minutes</li>
    <li>Price: ${{.Price}}</li>
    <li>Status: {{.StatusLabel}}</li>
    <li>Booking reference: {{.ConsultationID}}</li>
  </ul>
  {{if .Notes}}<p>Your notes: {{.Notes}}</p>{{end}}
  <p>Thank you for choosing Wisebox.</p>
</body>
</html>`

var consultationConfirmationTmpl = template.Must(template.New("consultation_confirmation").Parse(consultationConfirmationTemplate))

type consultationConfirmationData struct {
	Name            string
	ServiceName     string
	Date            string
	Time            string
	DurationMinutes int
	Price           int
	StatusLabel     string
	ConsultationID  string
	Notes           string
}

func buildConsultationConfirmationHTML(user models.User, c models.Consultation) (string, error) {
	data := consultationConfirmationData{
		Name:            user.Name,
		ServiceName:     c.ServiceName,
		Date:            c.Date,
		Time:            c.Time,
		DurationMinutes: c.Duration,
		Price:           c.Price,
		StatusLabel:     consultationStatusLabel(c.Status),
		ConsultationID:  c.ID,
		Notes:           c.Notes,
	}
	var buf bytes.Buffer
	if err := consultationConfirmationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func consultationStatusLabel(value string) string {
	switch value {
	case models.ConsultationPendingPayment:
		return "Awaiting payment"
	case models.ConsultationConfirmed:
		return "Confirmed"
	case models.ConsultationCanceled:
		return "Canceled"
	case models.ConsultationCompleted:
		return "Completed"
	default:
		return value
	}
}
