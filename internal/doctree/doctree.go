package doctree

import (
	"fmt"
	"strings"
)

// Provenance tags which extraction path produced a block.
type Provenance string

const (
	SourceDigital     Provenance = "digital"      // Text read directly from the document
	SourceLowFidelity Provenance = "low_fidelity" // Degraded or secondary extraction path
)

// BBox is a block's bounding box in layout units, origin at the top-left of the page.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the rendered width of the box.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Block is one paragraph or line group on one page.
type Block struct {
	Text         string     `json:"text"`
	BBox         BBox       `json:"bbox"`
	FontSize     float64    `json:"font_size"`     // Largest font size in the block
	Bold         bool       `json:"is_bold"`       // Any span bold
	Italic       bool       `json:"is_italic"`     // Any span italic
	Page         int        `json:"page_number"`   // 1-based
	LinePosition float64    `json:"line_position"` // Vertical position on the page (top edge)
	PageWidth    float64    `json:"page_width"`
	PageHeight   float64    `json:"page_height"`
	Source       Provenance `json:"source"`
}

// RelativeX is the block origin as a fraction of the page width.
func (b Block) RelativeX() float64 {
	if b.PageWidth <= 0 {
		return 0
	}
	return b.BBox.X0 / b.PageWidth
}

// RelativeY is the block origin as a fraction of the page height.
func (b Block) RelativeY() float64 {
	if b.PageHeight <= 0 {
		return 0
	}
	return b.BBox.Y0 / b.PageHeight
}

// Label is the closed set of per-block classes.
type Label string

const (
	LabelTitle Label = "TITLE"
	LabelH1    Label = "H1"
	LabelH2    Label = "H2"
	LabelH3    Label = "H3"
	LabelNone  Label = "NONE"
)

// Labels lists every valid label.
var Labels = []Label{LabelTitle, LabelH1, LabelH2, LabelH3, LabelNone}

// ParseLabel converts a string to a Label. Unknown values are an error.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if l.Valid() {
		return l, nil
	}
	return LabelNone, fmt.Errorf("unknown label %q", s)
}

// Valid reports whether l is one of the five labels.
func (l Label) Valid() bool {
	switch l {
	case LabelTitle, LabelH1, LabelH2, LabelH3, LabelNone:
		return true
	}
	return false
}

// IsHeading reports whether l marks a heading (anything but NONE).
func (l Label) IsHeading() bool {
	return l.Valid() && l != LabelNone
}

// Heading is a block that survived reconciliation with a heading label.
type Heading struct {
	Text         string
	Level        Label
	Page         int
	LinePosition float64
}

// OutlineEntry is one heading as emitted in the final outline.
type OutlineEntry struct {
	Level Label  `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

// Outline is the terminal artifact for one document.
type Outline struct {
	Title    string         `json:"title"`
	Headings []OutlineEntry `json:"headings"`
}

// NoTitle is the title used when no TITLE or page-1 H1 survives.
const NoTitle = "No Title Found"
