package report

import (
	"bytes"
	"html/template"

	"github.com/pkg/errors"

	"github.com/hrygo/pharmacontrol/plugin/inventory"
)

// PreviewLimit caps the rows shown in chat.
const PreviewLimit = 10

var tableTmpl = template.Must(template.New("table").Parse(`<table class="tabla-datos tabla-{{.Category}}">
  <thead>
    <tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
  </thead>
  <tbody>
{{- range .Rows}}
    <tr{{if .Alert}} class="row-alert"{{end}}>{{range .Cells}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
  </tbody>
</table>`))

// RenderHTMLTable renders the first PreviewLimit records as an escaped HTML
// table fragment.
func RenderHTMLTable(records []inventory.Record, c Category) (template.HTML, error) {
	l := layoutFor(c)

	headers := make([]string, len(l.columns))
	for i, col := range l.columns {
		headers[i] = col.Header
	}

	var buf bytes.Buffer
	err := tableTmpl.Execute(&buf, struct {
		Category Category
		Headers  []string
		Rows     []Row
	}{
		Category: l.category,
		Headers:  headers,
		Rows:     Rows(records, c, PreviewLimit),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to render table")
	}
	return template.HTML(buf.String()), nil
}
