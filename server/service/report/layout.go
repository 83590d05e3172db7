package report

import (
	"strings"

	"github.com/hrygo/pharmacontrol/plugin/inventory"
)

// Category selects the column set, theme and highlight rule of a report.
type Category string

const (
	CategoryMedications Category = "medicamentos"
	CategorySuppliers   Category = "proveedores"
	CategoryUsers       Category = "usuarios"
)

// ParseCategory maps a name to a Category. Unknown names fall back to
// medications.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySuppliers:
		return CategorySuppliers
	case CategoryUsers:
		return CategoryUsers
	default:
		return CategoryMedications
	}
}

// Label is the capitalized category name used in headings.
func (c Category) Label() string {
	s := string(ParseCategory(string(c)))
	return strings.ToUpper(s[:1]) + s[1:]
}

// RGB is a fill or text colour.
type RGB struct{ R, G, B int }

// Theme holds the palette of one category.
type Theme struct {
	Primary RGB
	Header  RGB
	RowA    RGB
	RowB    RGB
	Alert   RGB
}

// Column describes one table column.
type Column struct {
	Header string
	// Keys are tried in order; the first present one is displayed.
	Keys []string
	// Width in millimetres on the PDF page.
	Width float64
	// Stock renders the computed stock count instead of a field.
	Stock bool
}

type layout struct {
	category  Category
	landscape bool
	theme     Theme
	columns   []Column
	highlight bool
}

var layouts = map[Category]layout{
	CategoryMedications: {
		category:  CategoryMedications,
		landscape: true,
		theme: Theme{
			Primary: RGB{153, 0, 0},
			Header:  RGB{255, 235, 235},
			RowA:    RGB{255, 250, 250},
			RowB:    RGB{245, 240, 240},
			Alert:   RGB{255, 220, 220},
		},
		columns: []Column{
			{Header: "Nombre", Keys: []string{"nombre", "name"}, Width: 70},
			{Header: "Categoría", Keys: []string{"categoria"}, Width: 35},
			{Header: "Dosis", Keys: []string{"dosis"}, Width: 25},
			{Header: "Proveedor", Keys: []string{"proveedor"}, Width: 50},
			{Header: "Vencimiento", Keys: []string{"vencimiento", "caducidad"}, Width: 25},
			{Header: "Lote", Keys: []string{"lote"}, Width: 25},
			{Header: "Cantidad", Stock: true, Width: 20},
		},
		highlight: true,
	},
	CategorySuppliers: {
		category: CategorySuppliers,
		theme: Theme{
			Primary: RGB{0, 76, 153},
			Header:  RGB{230, 242, 255},
			RowA:    RGB{245, 250, 255},
			RowB:    RGB{235, 245, 255},
			Alert:   RGB{255, 230, 230},
		},
		columns: []Column{
			{Header: "Nombre", Keys: []string{"nombre", "name"}, Width: 90},
			{Header: "Dirección", Keys: []string{"direccion"}, Width: 90},
		},
	},
	CategoryUsers: {
		category: CategoryUsers,
		theme: Theme{
			Primary: RGB{0, 102, 51},
			Header:  RGB{225, 255, 235},
			RowA:    RGB{240, 255, 240},
			RowB:    RGB{230, 250, 230},
			Alert:   RGB{255, 230, 230},
		},
		columns: []Column{
			{Header: "Nombre", Keys: []string{"nombre", "name"}, Width: 60},
			{Header: "Email", Keys: []string{"email"}, Width: 70},
			{Header: "Dirección", Keys: []string{"direccion"}, Width: 60},
		},
	},
}

func layoutFor(c Category) layout {
	return layouts[ParseCategory(string(c))]
}

// Row is one flattened table row.
type Row struct {
	Cells []string
	Alert bool
}

// Rows flattens up to limit records into display rows. A non-positive limit
// keeps every record.
func Rows(records []inventory.Record, c Category, limit int) []Row {
	l := layoutFor(c)
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	rows := make([]Row, 0, limit)
	for _, rec := range records[:limit] {
		row := Row{Cells: make([]string, len(l.columns))}
		for i, col := range l.columns {
			if col.Stock {
				row.Cells[i] = StockText(Stock(rec))
				continue
			}
			row.Cells[i] = Display(rec, col.Keys...)
		}
		row.Alert = l.highlight && Highlight.Match(rec)
		rows = append(rows, row)
	}
	return rows
}
