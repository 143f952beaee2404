package pdf

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginLeft   = 20.0
	contentWidth = 170.0
	rightColumnX = 110.0
	columnWidth  = 85.0
	labelWidth   = 32.0
	bottomLimit  = pageHeight - 40
)

const (
	schoolName    = "INFRAME SCHOOL"
	schoolEmail   = "Email: admissions@inframe.edu.in"
	schoolPhone   = "Phone: +91 98765 43210"
	schoolAddress = "D-98 Pal Link Road (Behind Kamla Nehru Hospital) Jodhpur"
	schoolWebsite = "www.inframeschool.com"
)

// page tracks the vertical cursor over an fpdf document. Every page gets the
// outer border from the header callback.
type page struct {
	doc *fpdf.Fpdf
	tr  func(string) string
	y   float64
}

func newPage(title string) *page {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, false)
	doc.SetCreator("admission-portal", false)
	doc.SetAutoPageBreak(false, 0)
	doc.SetHeaderFunc(func() {
		doc.SetDrawColor(0, 0, 0)
		doc.SetLineWidth(0.8)
		doc.Rect(15, 15, pageWidth-30, pageHeight-35, "D")
	})
	doc.AddPage()
	return &page{doc: doc, tr: doc.UnicodeTranslatorFromDescriptor(""), y: 22}
}

func (p *page) newPage() {
	p.doc.AddPage()
	p.y = 25
}

// ensure starts a new page unless need millimetres still fit above the footer area.
func (p *page) ensure(need float64) {
	if p.y+need > bottomLimit {
		p.newPage()
	}
}

func (p *page) font(style string, size float64) {
	p.doc.SetFont("Helvetica", style, size)
}

func (p *page) text(x, y float64, s string) {
	p.doc.Text(x, y, p.tr(s))
}

func (p *page) section(title string) {
	p.ensure(20)
	p.font("B", 10)
	p.text(marginLeft, p.y, title)
	p.y += 10
}

// fieldAt draws "label: value" with the value wrapped inside width and returns the next y.
func (p *page) fieldAt(label, value string, x, y, width float64) float64 {
	p.font("B", 8)
	p.text(x, y, label+":")
	p.font("", 8)

	lines := p.doc.SplitText(p.tr(value), width-labelWidth)
	if len(lines) == 0 {
		lines = []string{""}
	}
	lineY := y
	for _, line := range lines {
		p.doc.Text(x+labelWidth, lineY, line)
		lineY += 4
	}
	p.doc.SetLineWidth(0.2)
	p.doc.Line(x+labelWidth, lineY-2.5, x+width, lineY-2.5)
	return lineY + 3
}

func (p *page) field(label, value string) {
	p.ensure(12)
	p.y = p.fieldAt(label, value, marginLeft, p.y, contentWidth)
}

func (p *page) twoFields(label1, value1, label2, value2 string) {
	p.ensure(12)
	left := p.fieldAt(label1, value1, marginLeft, p.y, columnWidth)
	right := p.fieldAt(label2, value2, rightColumnX, p.y, columnWidth)
	p.y = max(left, right)
}

func (p *page) divider() {
	p.doc.SetDrawColor(0, 0, 0)
	p.doc.SetLineWidth(0.5)
	p.doc.Line(marginLeft, p.y, pageWidth-marginLeft, p.y)
}

func (p *page) header(subtitle string) {
	p.font("B", 14)
	p.text(marginLeft, p.y, schoolName)
	p.y += 7
	p.font("", 9)
	p.text(marginLeft, p.y, subtitle)
	p.y += 6
	p.font("", 8)
	p.text(marginLeft, p.y, schoolEmail)
	p.y += 5
	p.text(marginLeft, p.y, schoolPhone)

	photoX, photoY, photoSize := pageWidth-45, 22.0, 25.0
	p.doc.SetLineWidth(0.5)
	p.doc.Rect(photoX, photoY, photoSize, photoSize, "D")
	p.font("", 7)
	p.doc.SetTextColor(100, 100, 100)
	p.text(photoX+3, photoY+10, "PROFILE")
	p.text(photoX+5, photoY+17, "PHOTO")
	p.doc.SetTextColor(0, 0, 0)

	p.y = 55
	p.divider()
	p.y += 8
}

// bullets writes each item as a wrapped bulleted paragraph.
func (p *page) bullets(items []string) {
	p.font("", 6)
	for _, item := range items {
		for _, line := range p.doc.SplitText(p.tr("• "+item), pageWidth-50) {
			if p.y > pageHeight-35 {
				p.newPage()
				p.font("", 6)
			}
			p.doc.Text(marginLeft, p.y, line)
			p.y += 4
		}
		p.y++
	}
}

func (p *page) signature(label string, now time.Time) {
	p.ensure(40)
	p.y += 15
	p.font("B", 9)
	p.text(marginLeft, p.y, label)
	p.doc.SetLineWidth(0.3)
	p.doc.Line(marginLeft, p.y+12, 75, p.y+12)
	p.text(110, p.y, "Date:")
	p.doc.Line(125, p.y+12, 165, p.y+12)
	p.font("", 8)
	p.text(130, p.y+10, now.Format("02/01/2006"))
	p.y += 20
}

func (p *page) footer() {
	if p.y > pageHeight-45 {
		p.newPage()
	}
	footerY := pageHeight - 40
	p.doc.SetLineWidth(0.3)
	p.doc.Line(marginLeft, footerY-3, pageWidth-marginLeft, footerY-3)
	p.font("B", 8)
	p.text(marginLeft, footerY, schoolName)
	p.font("", 6)
	p.text(marginLeft, footerY+6, schoolAddress)
	p.text(marginLeft, footerY+12, schoolEmail+" | "+schoolPhone)
	p.text(marginLeft, footerY+18, schoolWebsite)
}

// rupees formats an amount for the core PDF fonts, which have no rupee glyph.
func rupees(amount float64) string {
	return "Rs. " + domain.FormatINR(amount)
}

func percent(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasSuffix(value, "%") {
		return value
	}
	return value + "%"
}

// academicSession names the admission session, which starts in April.
func academicSession(now time.Time) string {
	start := now.Year()
	if now.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}
