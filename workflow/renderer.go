package workflow

import (
	"bytes"
	"fmt"
	"html/template"
	"os"

	"github.com/mmlogistics/freight_backend/models"
	"github.com/shopspring/decimal"
)

// DocumentRenderer produces the HTML body sent to the recipient.
type DocumentRenderer interface {
	Render(doc *models.Document, publicURL string) (string, error)
}

type templateRenderer struct {
	tmpl *template.Template
}

var documentTemplate = `
<html>
  <body>
    <h2>{{.Title}} {{.Doc.DocumentNumber}}</h2>
    <p>{{.Doc.Message}}</p>
    <table border="1" cellspacing="0" cellpadding="4">
      <tr><th>Description</th><th>Qty</th><th>Rate</th><th>VAT %</th><th>Total</th></tr>
      {{range .Doc.Lines}}
      <tr>
        <td>{{.Description}}</td>
        <td>{{.Quantity}}</td>
        <td>{{.UnitRate}}</td>
        <td>{{.VatRate}}</td>
        <td>{{.LineTotal}}</td>
      </tr>
      {{end}}
    </table>
    <p>Total excl. VAT: {{.Doc.TotalHT}}<br/>
       VAT: {{.Doc.TotalVAT}}<br/>
       <b>Total incl. VAT: {{.Doc.TotalTTC}}</b></p>
    {{if .Doc.PaymentTerms}}<p>{{.Doc.PaymentTerms}}</p>{{end}}
    {{if .PublicURL}}<p><a href="{{.PublicURL}}">View this document online</a></p>{{end}}
    {{if .Doc.FooterNote}}<hr/><small>{{.Doc.FooterNote}}</small>{{end}}
  </body>
</html>
`

func NewTemplateRenderer() (DocumentRenderer, error) {
	tmpl, err := template.New("document").Parse(documentTemplate)
	if err != nil {
		return nil, err
	}
	return &templateRenderer{tmpl: tmpl}, nil
}

func (r *templateRenderer) Render(doc *models.Document, publicURL string) (string, error) {
	data := struct {
		Title     string
		Doc       *models.Document
		PublicURL string
	}{
		Title:     documentTitle(doc.Kind),
		Doc:       doc,
		PublicURL: publicURL,
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func documentTitle(kind models.DocumentKind) string {
	if kind == models.DocumentKindInvoice {
		return "Invoice"
	}
	return "Quote"
}

// PublicDocumentURL builds the tokenized link recipients follow. Empty
// when PUBLIC_BASE_URL is unset.
func PublicDocumentURL(doc *models.Document) string {
	base := os.Getenv("PUBLIC_BASE_URL")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/public/documents/%s", base, doc.AccessToken)
}

var zeroAmount = decimal.Zero

func documentSubject(doc *models.Document) string {
	subject := fmt.Sprintf("%s %s", documentTitle(doc.Kind), doc.DocumentNumber)
	if doc.TotalTTC.GreaterThan(zeroAmount) {
		subject += fmt.Sprintf(" - %s", doc.TotalTTC.StringFixed(2))
	}
	return subject
}
