package parser

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// US Letter in points.
const (
	pageWidth    = 612.0
	pageHeight   = 792.0
	pageMargin   = 72.0
	contentWidth = pageWidth - 2*pageMargin
	bodyFontSize = 11.0
	lineSpacing  = 1.2
	charWidth    = 0.5 // average glyph width as a fraction of font size
	paraGap      = 8.0
	headingGap   = 16.0
)

// flowItem is one paragraph or heading of a markup document. level is 0 for
// body text and 1..6 for headings. pageBreak starts the item on a new page.
type flowItem struct {
	text      string
	level     int
	title     bool
	bold      bool
	pageBreak bool
}

func headingFontSize(level int) float64 {
	switch level {
	case 1:
		return 24
	case 2:
		return 18
	case 3:
		return 14
	default:
		return 12
	}
}

// weakLabel maps heading markup to a label. A level-1 heading that opens the
// document is the title.
func weakLabel(it flowItem, first bool) doctree.Label {
	switch {
	case it.title:
		return doctree.LabelTitle
	case it.level == 1 && first:
		return doctree.LabelTitle
	case it.level == 1:
		return doctree.LabelH1
	case it.level == 2:
		return doctree.LabelH2
	case it.level >= 3:
		return doctree.LabelH3
	}
	return doctree.LabelNone
}

// layoutFlow places items top to bottom on synthetic US Letter pages,
// wrapping text by an average glyph width.
func layoutFlow(items []flowItem) ([]doctree.Block, []doctree.Label) {
	var blocks []doctree.Block
	var labels []doctree.Label
	page := 1
	y := pageMargin

	for _, it := range items {
		text := strings.Join(strings.Fields(it.text), " ")
		if text == "" {
			continue
		}
		size := bodyFontSize
		bold := it.bold
		if it.level > 0 || it.title {
			size = headingFontSize(max(it.level, 1))
			if it.title {
				size = 28
			}
			bold = true
		}

		textWidth := float64(utf8.RuneCountInString(text)) * size * charWidth
		lines := math.Max(1, math.Ceil(textWidth/contentWidth))
		height := lines * size * lineSpacing
		width := math.Min(textWidth, contentWidth)

		first := len(blocks) == 0
		gap := paraGap
		if it.level > 0 {
			gap = headingGap
		}
		if !first {
			y += gap
		}
		if (!first && it.pageBreak) || (y+height > pageHeight-pageMargin && y > pageMargin) {
			page++
			y = pageMargin
		}

		blocks = append(blocks, doctree.Block{
			Text:         text,
			BBox:         doctree.BBox{X0: pageMargin, Y0: y, X1: pageMargin + width, Y1: y + height},
			FontSize:     size,
			Bold:         bold,
			Page:         page,
			LinePosition: y,
			PageWidth:    pageWidth,
			PageHeight:   pageHeight,
			Source:       doctree.SourceDigital,
		})
		labels = append(labels, weakLabel(it, first))
		y += height
	}
	return blocks, labels
}

func flowDocument(filename string, items []flowItem) *Document {
	blocks, labels := layoutFlow(items)
	if labels == nil {
		labels = []doctree.Label{}
	}
	return &Document{Name: baseName(filename), Blocks: blocks, Labels: labels}
}
