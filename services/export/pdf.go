package exportsvc

import (
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/payment"
	"github.com/trezcool/edufee/core/report"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 7.0
	margin     = 12.0
)

// PDFRenderer renders reports and receipts with the core PDF fonts (cp1252).
type PDFRenderer struct {
	currency string
	appName  string
}

var _ payment.ReceiptRenderer = (*PDFRenderer)(nil)

func NewPDFRenderer(conf *core.Config) *PDFRenderer {
	return &PDFRenderer{currency: conf.Currency, appName: conf.AppName}
}

type document struct {
	*fpdf.Fpdf
	tr func(string) string
}

// newDocument returns a document whose text goes through the cp1252 translator;
// the rupee sign has no cp1252 glyph and is spelled out.
func newDocument(orientation string) document {
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	return document{
		Fpdf: pdf,
		tr:   func(s string) string { return tr(strings.ReplaceAll(s, "₹", "Rs. ")) },
	}
}

func (d document) text(w, h float64, s, border string, ln int, align string, fill bool) {
	d.CellFormat(w, h, d.tr(s), border, ln, align, fill, 0, "")
}

func (d document) heading(school, title, subtitle string) {
	d.SetFont(fontFamily, "B", 16)
	d.text(0, 9, school, "", 1, "C", false)
	d.SetFont(fontFamily, "B", 13)
	d.text(0, lineHeight, title, "", 1, "C", false)
	if subtitle != "" {
		d.SetFont(fontFamily, "", 10)
		d.text(0, lineHeight, subtitle, "", 1, "C", false)
	}
	d.Ln(4)
}

func (d document) output(w io.Writer) error {
	if err := d.Output(w); err != nil {
		return errors.Wrap(err, "writing pdf")
	}
	return nil
}

// columnWidths shares the printable width proportionally to the longest cell of each column.
func columnWidths(total float64, headers []string, rows [][]string) []float64 {
	lengths := make([]float64, len(headers))
	for i, h := range headers {
		lengths[i] = float64(len([]rune(h)))
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(lengths); i++ {
			if l := float64(len([]rune(row[i]))); l > lengths[i] {
				lengths[i] = l
			}
		}
	}

	var sum float64
	for i := range lengths {
		if lengths[i] < 4 {
			lengths[i] = 4
		}
		if lengths[i] > 40 {
			lengths[i] = 40
		}
		sum += lengths[i]
	}
	widths := make([]float64, len(lengths))
	for i, l := range lengths {
		widths[i] = total * l / sum
	}
	return widths
}

// RenderReport writes rep as a table; the last column is right aligned.
func (r *PDFRenderer) RenderReport(w io.Writer, rep report.Report) error {
	orientation := "P"
	if len(rep.Headers) > 6 {
		orientation = "L"
	}
	d := newDocument(orientation)
	d.AddPage()
	d.heading(rep.SchoolName, rep.Title, rep.Subtitle)

	pageW, _ := d.GetPageSize()
	widths := columnWidths(pageW-2*margin, rep.Headers, rep.Rows)
	align := func(i int) string {
		if i == len(rep.Headers)-1 {
			return "R"
		}
		return "L"
	}

	d.SetFont(fontFamily, "B", 9)
	d.SetFillColor(230, 230, 230)
	for i, h := range rep.Headers {
		d.text(widths[i], lineHeight, h, "1", 0, align(i), true)
	}
	d.Ln(-1)

	d.SetFont(fontFamily, "", 9)
	for _, row := range rep.Rows {
		for i := range rep.Headers {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			d.text(widths[i], lineHeight, cell, "1", 0, align(i), false)
		}
		d.Ln(-1)
	}

	d.Ln(2)
	d.SetFont(fontFamily, "B", 10)
	d.text(0, lineHeight, rep.Summary.Label+": "+rep.Summary.Value, "", 1, "R", false)
	d.SetFont(fontFamily, "I", 8)
	d.text(0, lineHeight, "Generated "+rep.GeneratedAt.Format("2006-01-02 15:04 MST")+" by "+r.appName, "", 1, "L", false)
	return d.output(w)
}

// RenderReceipt writes a one page fee receipt.
func (r *PDFRenderer) RenderReceipt(w io.Writer, rec payment.Receipt) error {
	d := newDocument("P")
	d.AddPage()
	d.heading(rec.SchoolName, "Fee Receipt", rec.ReceiptNumber)

	currency := rec.Currency
	if currency == "" {
		currency = r.currency
	}
	money := func(m core.Money) string { return m.Format(currency) }

	d.SetFont(fontFamily, "", 10)
	pairs := [][2]string{
		{"Date", rec.Date},
		{"Student", rec.StudentName},
		{"Admission No", rec.AdmissionNumber},
		{"Father Name", rec.FatherName},
		{"Class", rec.ClassName},
		{"Mode", rec.Method},
	}
	for _, p := range pairs {
		d.SetFont(fontFamily, "B", 10)
		d.text(40, lineHeight, p[0], "", 0, "L", false)
		d.SetFont(fontFamily, "", 10)
		d.text(0, lineHeight, p[1], "", 1, "L", false)
	}
	d.Ln(4)

	pageW, _ := d.GetPageSize()
	descW := pageW - 2*margin - 50
	d.SetFont(fontFamily, "B", 10)
	d.SetFillColor(230, 230, 230)
	d.text(descW, lineHeight, "Description", "1", 0, "L", true)
	d.text(50, lineHeight, "Amount", "1", 1, "R", true)

	d.SetFont(fontFamily, "", 10)
	for _, line := range rec.Lines {
		d.text(descW, lineHeight, line.Description, "1", 0, "L", false)
		d.text(50, lineHeight, money(line.Amount), "1", 1, "R", false)
	}
	if rec.Discount > 0 {
		d.text(descW, lineHeight, "Less: Discount", "1", 0, "L", false)
		d.text(50, lineHeight, "-"+money(rec.Discount), "1", 1, "R", false)
	}
	d.SetFont(fontFamily, "B", 10)
	d.text(descW, lineHeight, "Amount Received", "1", 0, "L", false)
	d.text(50, lineHeight, money(rec.Amount), "1", 1, "R", false)

	if rec.Note != "" {
		d.Ln(3)
		d.SetFont(fontFamily, "I", 9)
		d.MultiCell(0, 5, d.tr("Note: "+rec.Note), "", "L", false)
	}
	d.Ln(12)
	d.SetFont(fontFamily, "", 10)
	d.text(0, lineHeight, "Collected by: "+rec.CollectedBy, "", 1, "R", false)
	return d.output(w)
}
