package notifications

import (
	"bytes"
	"html/template"
	"strings"

	"wisebox-backend/internal/models"
	"wisebox-backend/internal/properties"
)

const propertyReceiptTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hello {{.Name}},</p>
  <p>We received your property submission.</p>
  <p><strong>Reference:</strong> {{.PropertyID}}</p>
  <p><strong>Property type:</strong> {{.PropertyType}}</p>
  <p><strong>Ownership:</strong> {{.OwnershipType}}</p>
  {{if .Address}}<p><strong>Address:</strong> {{.Address}}</p>{{end}}
  <p><strong>Documents uploaded:</strong> {{.DocumentCount}}</p>
  {{if .Missing}}
  <p>The following core documents are still missing:</p>
  <ul>
    {{range .Missing}}<li>{{.}}</li>{{end}}
  </ul>
  {{else}}
  <p>All core documents are on file.</p>
  {{end}}
  <p>Our team will review the documents and contact you if anything else is needed.</p>
</body>
</html>`

var propertyReceiptTmpl = template.Must(template.New("property_receipt").Parse(propertyReceiptTemplate))

type propertyReceiptData struct {
	Name          string
	PropertyID    string
	PropertyType  string
	OwnershipType string
	Address       string
	DocumentCount int
	Missing       []string
}

func buildPropertyReceiptHTML(user models.User, rec properties.Record) (string, error) {
	sum := properties.Summarize(rec)
	data := propertyReceiptData{
		Name:          user.Name,
		PropertyID:    rec.ID,
		PropertyType:  titleWord(string(sum.PropertyType)),
		OwnershipType: titleWord(string(sum.OwnershipType)),
		Address:       sum.Address,
		DocumentCount: sum.DocumentCount,
		Missing:       make([]string, 0, len(sum.MissingDocuments)),
	}
	for _, name := range sum.MissingDocuments {
		data.Missing = append(data.Missing, properties.DocumentLabel(name))
	}
	var buf bytes.Buffer
	if err := propertyReceiptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func titleWord(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
