package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// CSVParser reads a block table: one row per block, with a header row naming
// the columns. An optional "label" column makes the document labeled.
type CSVParser struct{}

var csvRequired = []string{"text", "x0", "y0", "x1", "y1", "font_size", "page_number"}

var csvNonNegative = map[string]bool{"font_size": true, "page_width": true, "page_height": true}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &Document{Name: baseName(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	// First row is headers.
	col := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range csvRequired {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: csv missing column %q", doctree.ErrInvalidBlocks, name)
		}
	}
	_, hasLabel := col["label"]
	if hasLabel {
		doc.Labels = make([]doctree.Label, 0, len(records)-1)
	}

	for i, row := range records[1:] {
		line := i + 2 // 1-indexed, skip header
		cell := func(name string) string {
			if idx, ok := col[name]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		num := func(name string, fallback float64) (float64, error) {
			s := cell(name)
			if s == "" {
				return fallback, nil
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: row %d column %s: %v", doctree.ErrInvalidBlocks, line, name, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: row %d column %s: %q is not finite", doctree.ErrInvalidBlocks, line, name, s)
			}
			if csvNonNegative[name] && v < 0 {
				return 0, fmt.Errorf("%w: row %d column %s: %v is negative", doctree.ErrInvalidBlocks, line, name, v)
			}
			return v, nil
		}

		var b doctree.Block
		b.Text = cell("text")
		fields := []struct {
			name     string
			dst      *float64
			fallback float64
		}{
			{"x0", &b.BBox.X0, 0},
			{"y0", &b.BBox.Y0, 0},
			{"x1", &b.BBox.X1, 0},
			{"y1", &b.BBox.Y1, 0},
			{"font_size", &b.FontSize, 0},
			{"page_width", &b.PageWidth, pageWidth},
			{"page_height", &b.PageHeight, pageHeight},
		}
		for _, f := range fields {
			if *f.dst, err = num(f.name, f.fallback); err != nil {
				return nil, err
			}
		}
		if b.LinePosition, err = num("line_position", b.BBox.Y0); err != nil {
			return nil, err
		}
		page, err := strconv.Atoi(cell("page_number"))
		if err != nil || page < 1 {
			return nil, fmt.Errorf("%w: row %d: bad page_number %q", doctree.ErrInvalidBlocks, line, cell("page_number"))
		}
		b.Page = page
		b.Bold = parseFlag(cell("is_bold"))
		b.Italic = parseFlag(cell("is_italic"))
		b.Source = doctree.SourceDigital
		if src := cell("source"); src == "low_fidelity" || src == "digital_search" {
			b.Source = doctree.SourceLowFidelity
		}
		doc.Blocks = append(doc.Blocks, b)

		if hasLabel {
			l, err := doctree.ParseLabel(cell("label"))
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", doctree.ErrInvalidBlocks, line, err)
			}
			doc.Labels = append(doc.Labels, l)
		}
	}

	return doc, nil
}

// parseFlag accepts true/false, 1/0 and yes/no.
func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
