package chat

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/pkg/errors"
)

// WelcomeHTML is the first assistant turn of every session and the answer
// to greetings and menu requests.
const WelcomeHTML = `<div class="bot-card">
  <div class="bot-header">
    <span class="bot-chip">🤖 Asistente IA · PharmaControl</span>
  </div>
  <p class="title">¡Hola! Soy la inteligencia artificial de <b>PharmaControl</b>.</p>
  <p class="subtitle">Puedo ayudarte rápidamente con:</p>
  <ol class="bot-list">
    <li><b>1)</b> Ver <b>reporte general</b> de medicamentos.</li>
    <li><b>2)</b> Ver <b>medicamentos sin stock</b>.</li>
    <li><b>3)</b> Ver <b>medicamentos con existencia</b>.</li>
    <li><b>4)</b> Ver <b>proveedores</b>.</li>
    <li><b>5)</b> Ver <b>usuarios</b>.</li>
    <li><b>6)</b> Buscar un <b>medicamento por nombre</b>.</li>
  </ol>
  <p class="hint">
    👉 Puedes escribir por ejemplo:
    <code>1</code>, <code>reporte general</code>, <code>sin stock</code>,
    <code>existencias</code>, <code>proveedores</code>, <code>usuarios</code>,
    <code>paracetamol</code>.
  </p>
</div>`

// Fixed replies.
const (
	AllInStockText    = "✅ Todos los medicamentos tienen existencias suficientes 💊."
	NoSuppliersText   = "📦 No hay proveedores registrados actualmente."
	NoUsersText       = "👤 No hay usuarios registrados actualmente."
	SearchPromptText  = "🔎 Escribe el nombre del medicamento que quieres buscar, por ejemplo <code>paracetamol</code>."
	InvalidSessionMsg = "⚠️ Sesión inválida. Por favor, inicia un nuevo chat."
)

const layouts = `
{{define "report"}}<p>{{.Icon}} <b>{{.Heading}}</b></p>
<p>{{.Lead}} <b>{{.Count}}</b> {{.Noun}}</p>
{{- if .Table}}
{{.Table}}
{{- end}}
<p><a href="{{.Link}}" target="_blank" class="pdf-btn">📥 Descargar reporte en PDF</a></p>{{end}}

{{define "found"}}💊 <b>{{.Name}}</b><br>📂 Categoría: <i>{{.Category}}</i><br>🏭 Proveedor: <i>{{.Supplier}}</i><br>📦 Existencias: <b>{{.Stock}}</b><br><br>🧾 <b>Descripción generada por IA:</b><br>{{.Description}}{{end}}

{{define "not_found"}}<div class="bot-card">
  <p class="title">💊 <b>{{.Title}}</b></p>
  <p class="subtitle">No encontré este medicamento en el <b>inventario registrado</b>, pero te comparto una descripción general:</p>
  <div class="ia-block">🧾 <b>Descripción generada por IA:</b><br>{{.Description}}</div>
  {{- if .Suggestions}}
  <p class="hint">¿Quisiste decir: {{range $i, $s := .Suggestions}}{{if $i}}, {{end}}<b>{{$s}}</b>{{end}}?</p>
  {{- end}}
</div>{{end}}

{{define "backend_error"}}❌ No se pudo conectar con la API de medicamentos.<br>Detalle técnico: {{.}}{{end}}

{{define "secondary_error"}}<div class="bot-card error-card">
  <p class="title">{{.Icon}} <b>No pude obtener la lista de {{.Collection}}.</b></p>
  <p class="subtitle">Parece que el módulo de <b>{{.Collection}}</b> en tu API presentó un inconveniente.</p>
  <div class="info-block">🔧 <b>Revisa el endpoint:</b><br><code>{{.Endpoint}}</code></div>
  <p class="hint">Mientras tanto, puedes seguir consultando {{.Alternatives}} o generar <b>reportes en PDF</b>.</p>
  <small class="tech-detail">🔍 Detalles técnicos: {{.Detail}}</small>
</div>{{end}}

{{define "generic_error"}}❌ <b>Ocurrió un problema mientras procesaba tu petición.</b><br>🔁 Intenta de nuevo en unos minutos.<br><small class="tech-detail">Detalle técnico: {{.}}</small>{{end}}
`

var views = template.Must(template.New("chat").Parse(layouts))

type reportView struct {
	Icon    string
	Heading string
	Lead    string
	Count   int
	Noun    string
	Table   template.HTML
	Link    string
}

type foundView struct {
	Name        string
	Category    string
	Supplier    string
	Stock       float64
	Description template.HTML
}

type notFoundView struct {
	Title       string
	Description template.HTML
	Suggestions []string
}

type secondaryErrorView struct {
	Icon         string
	Collection   string
	Endpoint     string
	Alternatives template.HTML
	Detail       string
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "failed to render %s", name)
	}
	return strings.TrimSpace(buf.String()), nil
}
