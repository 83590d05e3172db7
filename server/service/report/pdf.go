package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/hrygo/pharmacontrol/internal/util"
)

const (
	pdfFont      = "Helvetica"
	pdfMargin    = 12.0
	headerHeight = 30.0
	logoWidth    = 18.0
	logoName     = "logo"
	cellMaxRunes = 50
)

type pdfDoc struct {
	layout layout
	title  string
	rows   []Row
	logo   []byte
	now    time.Time
}

// render writes the report to w.
func (d *pdfDoc) render(w io.Writer) error {
	orientation := "P"
	if d.layout.landscape {
		orientation = "L"
	}

	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetCreator("PharmaControl", true)
	pdf.SetTitle(d.title, true)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	theme := d.layout.theme

	if len(d.logo) > 0 {
		pdf.RegisterImageOptionsReader(logoName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(d.logo))
		if pdf.Err() {
			return errors.Wrap(pdf.Error(), "failed to register logo")
		}
	}

	pdf.SetHeaderFunc(func() {
		pageW, _ := pdf.GetPageSize()
		pdf.SetFillColor(theme.Header.R, theme.Header.G, theme.Header.B)
		pdf.Rect(0, 0, pageW, headerHeight, "F")

		if len(d.logo) > 0 {
			pdf.ImageOptions(logoName, pageW-logoWidth-pdfMargin, 5, logoWidth, 0, false,
				fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		}

		pdf.SetXY(pdfMargin, pdfMargin)
		pdf.SetFont(pdfFont, "B", 18)
		pdf.SetTextColor(theme.Primary.R, theme.Primary.G, theme.Primary.B)
		pdf.CellFormat(0, 8, tr("PharmaControl - Reporte de "+d.layout.category.Label()), "", 1, "L", false, 0, "")

		pdf.SetFont(pdfFont, "", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(0, 6, tr("Fecha: "+d.now.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	})

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Página %d/{nb}", pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 13)
	pdf.SetTextColor(theme.Primary.R, theme.Primary.G, theme.Primary.B)
	pdf.CellFormat(0, 9, tr(d.title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont(pdfFont, "B", 9)
	pdf.SetFillColor(theme.Header.R, theme.Header.G, theme.Header.B)
	for _, col := range d.layout.columns {
		pdf.CellFormat(col.Width, 7, tr(col.Header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", 8)
	pdf.SetTextColor(0, 0, 0)
	align := "L"
	if d.layout.landscape {
		align = "C"
	}
	for i, row := range d.rows {
		fill := theme.RowA
		if i%2 == 1 {
			fill = theme.RowB
		}
		if row.Alert {
			fill = theme.Alert
		}
		pdf.SetFillColor(fill.R, fill.G, fill.B)
		for j, col := range d.layout.columns {
			pdf.CellFormat(col.Width, 6, tr(util.Truncate(row.Cells[j], cellMaxRunes)), "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(d.rows) == 0 {
		pdf.SetFont(pdfFont, "I", 9)
		pdf.CellFormat(0, 8, tr("Sin registros."), "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "failed to write PDF")
	}
	return nil
}
