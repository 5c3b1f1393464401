package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/net/html"

	"github.com/dgallion1/docoutline/internal/doctree"
)

var errNoText = errors.New("no extractable text")

// PDFParser handles PDF files. It reads glyph positions with the Go library
// first, then falls back to pdftotext bounding boxes if enabled. Fallback
// blocks are tagged low fidelity.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "outline-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	blocks, err := extractPDFBlocks(tmpPath)
	if err != nil && p.FallbackPdftotext {
		blocks, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf layout: %w", err)
	}
	return &Document{Name: baseName(filename), Blocks: blocks}, nil
}

// pageCount validates the file structure and returns its page count.
func pageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("read pdf structure: %w", err)
	}
	return n, nil
}

// extractPDFBlocks reads glyphs page by page. A panic from a malformed
// content stream is returned as an error.
func extractPDFBlocks(path string) (blocks []doctree.Block, err error) {
	defer func() {
		if r := recover(); r != nil {
			blocks, err = nil, fmt.Errorf("read pdf content: %v", r)
		}
	}()

	pages, err := pageCount(path)
	if err != nil {
		return nil, err
	}

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= min(pages, reader.NumPage()); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		w, h := mediaBox(page)
		content := page.Content()
		glyphs := make([]glyph, 0, len(content.Text))
		for _, t := range content.Text {
			glyphs = append(glyphs, glyph{font: t.Font, size: t.FontSize, x: t.X, y: t.Y, w: t.W, s: t.S})
		}
		blocks = append(blocks, blocksFromGlyphs(glyphs, i, w, h)...)
	}
	if len(blocks) == 0 {
		return nil, errNoText
	}
	return blocks, nil
}

// mediaBox returns the page size, following inherited MediaBox entries.
func mediaBox(page pdflib.Page) (float64, float64) {
	var box pdflib.Value
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		if box = v.Key("MediaBox"); !box.IsNull() {
			break
		}
	}
	if box.Len() < 4 {
		return pageWidth, pageHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return pageWidth, pageHeight
	}
	return w, h
}

// glyph is one positioned text run. y is the baseline, bottom-up.
type glyph struct {
	font string
	size float64
	x, y float64
	w    float64
	s    string
}

type textLine struct {
	text     strings.Builder
	x0, x1   float64
	baseline float64
	size     float64
	bold     bool
	italic   bool
}

func fontStyle(font string) (bold, italic bool) {
	f := strings.ToLower(font)
	bold = strings.Contains(f, "bold") || strings.Contains(f, "black") || strings.Contains(f, "heavy")
	italic = strings.Contains(f, "italic") || strings.Contains(f, "oblique")
	return bold, italic
}

// groupLines joins glyphs sharing a baseline into lines, inserting a space
// where the horizontal gap is wider than a quarter of the font size.
func groupLines(glyphs []glyph) []*textLine {
	var lines []*textLine
	var cur *textLine
	for _, g := range glyphs {
		if g.s == "" {
			continue
		}
		size := math.Max(g.size, 1)
		bold, italic := fontStyle(g.font)
		if cur != nil && math.Abs(g.y-cur.baseline) < size*0.5 && g.x >= cur.x0-size {
			if g.x-cur.x1 > size*0.25 && !strings.HasSuffix(cur.text.String(), " ") {
				cur.text.WriteByte(' ')
			}
			cur.text.WriteString(g.s)
			cur.x1 = math.Max(cur.x1, g.x+g.w)
			cur.size = math.Max(cur.size, g.size)
			cur.bold = cur.bold || bold
			cur.italic = cur.italic || italic
			continue
		}
		cur = &textLine{x0: g.x, x1: g.x + g.w, baseline: g.y, size: g.size, bold: bold, italic: italic}
		cur.text.WriteString(g.s)
		lines = append(lines, cur)
	}
	return lines
}

// blocksFromGlyphs groups a page's glyphs into lines and stacks adjacent lines
// of similar size into blocks. Coordinates are converted to top-down.
func blocksFromGlyphs(glyphs []glyph, page int, w, h float64) []doctree.Block {
	var blocks []doctree.Block
	var cur *doctree.Block
	var lastBottom float64

	for _, ln := range groupLines(glyphs) {
		text := strings.Join(strings.Fields(ln.text.String()), " ")
		if text == "" {
			continue
		}
		top := h - ln.baseline - ln.size
		bottom := h - ln.baseline + ln.size*0.25

		if cur != nil && math.Abs(cur.FontSize-ln.size) < 0.5 && top-lastBottom < ln.size*0.6 && top >= cur.BBox.Y0 {
			cur.Text += " " + text
			cur.BBox.X0 = math.Min(cur.BBox.X0, ln.x0)
			cur.BBox.X1 = math.Max(cur.BBox.X1, ln.x1)
			cur.BBox.Y1 = bottom
			cur.Bold = cur.Bold || ln.bold
			cur.Italic = cur.Italic || ln.italic
			lastBottom = bottom
			continue
		}

		blocks = append(blocks, doctree.Block{
			Text:         text,
			BBox:         doctree.BBox{X0: ln.x0, Y0: top, X1: ln.x1, Y1: bottom},
			FontSize:     math.Round(ln.size*100) / 100,
			Bold:         ln.bold,
			Italic:       ln.italic,
			Page:         page,
			LinePosition: top,
			PageWidth:    w,
			PageHeight:   h,
			Source:       doctree.SourceDigital,
		})
		cur = &blocks[len(blocks)-1]
		lastBottom = bottom
	}
	return blocks
}

func extractPdftotext(path string) ([]doctree.Block, error) {
	cmd := exec.Command("pdftotext", "-bbox-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	blocks, err := parseBBoxLayout(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, errNoText
	}
	return blocks, nil
}

// parseBBoxLayout reads the XHTML written by pdftotext -bbox-layout. Each
// <block> becomes one block; font size is estimated from the tallest line.
func parseBBoxLayout(r io.Reader) ([]doctree.Block, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse bbox layout: %w", err)
	}

	var blocks []doctree.Block
	pageNum := 0
	var w, h float64

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "page":
				pageNum++
				w, h = attrFloat(n, "width"), attrFloat(n, "height")
			case "block":
				if b, ok := bboxBlock(n, pageNum, w, h); ok {
					blocks = append(blocks, b)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return blocks, nil
}

func bboxBlock(n *html.Node, page int, w, h float64) (doctree.Block, bool) {
	var lines []string
	var size float64
	for ln := n.FirstChild; ln != nil; ln = ln.NextSibling {
		if ln.Type != html.ElementNode || ln.Data != "line" {
			continue
		}
		var words []string
		for wd := ln.FirstChild; wd != nil; wd = wd.NextSibling {
			if wd.Type == html.ElementNode && wd.Data == "word" {
				if t := textContent(wd); t != "" {
					words = append(words, t)
				}
			}
		}
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
			size = math.Max(size, attrFloat(ln, "ymax")-attrFloat(ln, "ymin"))
		}
	}
	if len(lines) == 0 {
		return doctree.Block{}, false
	}
	y0 := attrFloat(n, "ymin")
	return doctree.Block{
		Text:         strings.Join(lines, " "),
		BBox:         doctree.BBox{X0: attrFloat(n, "xmin"), Y0: y0, X1: attrFloat(n, "xmax"), Y1: attrFloat(n, "ymax")},
		FontSize:     math.Round(size*100) / 100,
		Page:         max(page, 1),
		LinePosition: y0,
		PageWidth:    w,
		PageHeight:   h,
		Source:       doctree.SourceLowFidelity,
	}, true
}

// attrFloat reads a numeric attribute. The HTML parser lower-cases names.
func attrFloat(n *html.Node, key string) float64 {
	for _, a := range n.Attr {
		if a.Key == key {
			v, err := strconv.ParseFloat(a.Val, 64)
			if err != nil {
				return 0
			}
			return v
		}
	}
	return 0
}
