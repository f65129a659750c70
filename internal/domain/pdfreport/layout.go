package pdfreport

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimetres.
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	margin       = 15.0
	contentWidth = pageWidth - 2*margin
	bottomLimit  = pageHeight - 20

	firstHeaderHeight = 35.0
	headerHeight      = 25.0
	firstPageTop      = 40.0
	pageTop           = 30.0

	sectionBarHeight = 7.0
	lineHeight       = 4.5
	fieldGap         = 3.0
)

var (
	accent      = [3]int{102, 126, 234}
	sectionFill = [3]int{245, 247, 250}
	footerGrey  = [3]int{100, 100, 100}
)

// page wraps fpdf with a vertical cursor and the running header of one
// report kind.
type page struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	y      float64
	org    string
	title  string
	stamp  string
	images int
}

func newPage(org, title, stamp, footer string, compress bool) *page {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(compress)
	pdf.AliasNbPages("{nb}")
	pdf.SetTitle(title, true)
	pdf.SetCreator(org, true)

	p := &page{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		org:   org,
		title: title,
		stamp: stamp,
	}
	pdf.SetFooterFunc(func() {
		text := p.tr(fmt.Sprintf("%s | Seite %d von {nb}", footer, pdf.PageNo()))
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(footerGrey[0], footerGrey[1], footerGrey[2])
		w := pdf.GetStringWidth(text)
		pdf.Text((pageWidth-w)/2, pageHeight-5, text)
		pdf.SetTextColor(0, 0, 0)
	})
	p.addPage()
	return p
}

func (p *page) addPage() {
	p.pdf.AddPage()
	first := p.pdf.PageNo() == 1
	p.header(first)
	if first {
		p.y = firstPageTop
	} else {
		p.y = pageTop
	}
}

func (p *page) header(first bool) {
	pdf := p.pdf
	pdf.SetFillColor(accent[0], accent[1], accent[2])
	h := headerHeight
	if first {
		h = firstHeaderHeight
	}
	pdf.Rect(0, 0, pageWidth, h, "F")
	pdf.SetTextColor(255, 255, 255)

	if first {
		pdf.SetFont("Helvetica", "B", 20)
		pdf.Text(margin, 12, p.tr(p.org))
		pdf.SetFont("Helvetica", "B", 16)
		pdf.Text(margin, 24, p.tr(p.title))
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(pageWidth-margin-65, 24, p.tr("Erstellt: "+p.stamp))
	} else {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Text(margin, 16, p.tr(fmt.Sprintf("%s - Seite %d", p.title, pdf.PageNo())))
	}
	pdf.SetTextColor(0, 0, 0)
}

// ensureSpace starts a new page when h millimetres do not fit below the
// cursor. It reports whether a page was added.
func (p *page) ensureSpace(h float64) bool {
	if p.y+h > bottomLimit {
		p.addPage()
		return true
	}
	return false
}

// section draws a title bar after reserving room for the bar plus minBody
// millimetres of content.
func (p *page) section(title string, minBody float64) {
	p.ensureSpace(sectionBarHeight + minBody)
	pdf := p.pdf
	pdf.SetFillColor(accent[0], accent[1], accent[2])
	pdf.Rect(margin, p.y, contentWidth, sectionBarHeight, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Text(margin+2, p.y+5, p.tr(title))
	pdf.SetTextColor(0, 0, 0)
	p.y += sectionBarHeight + 2
}

type field struct {
	label string
	value string
}

// fields lays out label/value pairs in a grid of cols columns. Values wrap
// inside their column.
func (p *page) fields(cols int, fs ...field) {
	colWidth := (contentWidth - 4 - float64(cols-1)*fieldGap) / float64(cols)
	for start := 0; start < len(fs); start += cols {
		end := start + cols
		if end > len(fs) {
			end = len(fs)
		}
		row := fs[start:end]

		p.pdf.SetFont("Helvetica", "", 10)
		wrapped := make([][]string, len(row))
		lines := 1
		for i, f := range row {
			wrapped[i] = p.wrap(valueOrDash(f.value), colWidth)
			if len(wrapped[i]) > lines {
				lines = len(wrapped[i])
			}
		}
		h := 4 + float64(lines)*lineHeight + 1
		p.ensureSpace(h)

		for i, f := range row {
			x := margin + 2 + float64(i)*(colWidth+fieldGap)
			p.pdf.SetFont("Helvetica", "B", 9)
			p.pdf.Text(x, p.y+3, p.tr(f.label))
			p.pdf.SetFont("Helvetica", "", 10)
			for j, line := range wrapped[i] {
				p.pdf.Text(x, p.y+7.5+float64(j)*lineHeight, line)
			}
		}
		p.y += h
	}
}

// paragraph writes free text wrapped to the content width, continuing on
// following pages as needed.
func (p *page) paragraph(text string, size float64) {
	p.pdf.SetFont("Helvetica", "", size)
	for _, line := range p.wrap(valueOrDash(text), contentWidth-4) {
		if p.ensureSpace(lineHeight) {
			p.pdf.SetFont("Helvetica", "", size)
		}
		p.pdf.Text(margin+2, p.y+3.5, line)
		p.y += lineHeight
	}
	p.y += 2
}

// note writes a single line of text in the current font.
func (p *page) note(text string, size float64) {
	p.ensureSpace(lineHeight)
	p.pdf.SetFont("Helvetica", "", size)
	p.pdf.Text(margin+2, p.y+3.5, p.tr(text))
	p.y += lineHeight
}

// wrap translates text to the font encoding and breaks it into lines no
// wider than w at the current font. Words longer than a line are split.
func (p *page) wrap(text string, w float64) []string {
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r", ""), "\n") {
		words := strings.Fields(p.tr(para))
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := ""
		for _, word := range words {
			for p.pdf.GetStringWidth(word) > w {
				cut := p.fit(word, w)
				if cur != "" {
					lines = append(lines, cur)
					cur = ""
				}
				lines = append(lines, word[:cut])
				word = word[cut:]
			}
			candidate := word
			if cur != "" {
				candidate = cur + " " + word
			}
			if p.pdf.GetStringWidth(candidate) > w {
				lines = append(lines, cur)
				cur = word
				continue
			}
			cur = candidate
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	return lines
}

// fit returns the longest prefix length of s (single-byte encoded) that fits w.
func (p *page) fit(s string, w float64) int {
	n := 1
	for n < len(s) && p.pdf.GetStringWidth(s[:n+1]) <= w {
		n++
	}
	return n
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
