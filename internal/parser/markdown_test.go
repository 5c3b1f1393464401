package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docoutline/internal/doctree"
)

func texts(d *Document) []string {
	out := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		out[i] = b.Text
	}
	return out
}

func TestMarkdownParser_WeakLabels(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

# Part Two

#### Deep heading
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "docs/guide.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Name != "guide" {
		t.Errorf("expected name %q, got %q", "guide", doc.Name)
	}
	if !doc.Labeled() {
		t.Fatal("expected markdown document to be labeled")
	}

	want := []struct {
		text  string
		label doctree.Label
	}{
		{"Title", doctree.LabelTitle},
		{"Intro text.", doctree.LabelNone},
		{"Section A", doctree.LabelH2},
		{"Section A content.", doctree.LabelNone},
		{"Subsection A1", doctree.LabelH3},
		{"Subsection A1 content.", doctree.LabelNone},
		{"Part Two", doctree.LabelH1},
		{"Deep heading", doctree.LabelH3},
	}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %q", len(want), len(doc.Blocks), texts(doc))
	}
	for i, w := range want {
		if doc.Blocks[i].Text != w.text {
			t.Errorf("block %d: expected text %q, got %q", i, w.text, doc.Blocks[i].Text)
		}
		if doc.Labels[i] != w.label {
			t.Errorf("block %d (%q): expected label %s, got %s", i, w.text, w.label, doc.Labels[i])
		}
	}
}

func TestMarkdownParser_HeadingTypography(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader("# Big\n\nbody\n\n## Smaller\n"), "a.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(doc.Blocks))
	}
	big, body, small := doc.Blocks[0], doc.Blocks[1], doc.Blocks[2]
	if !(big.FontSize > small.FontSize && small.FontSize > body.FontSize) {
		t.Errorf("expected decreasing font sizes, got %v %v %v", big.FontSize, small.FontSize, body.FontSize)
	}
	if !big.Bold || body.Bold {
		t.Errorf("expected bold heading and regular body")
	}
	if !(big.BBox.Y1 <= body.BBox.Y0 && body.BBox.Y1 <= small.BBox.Y0) {
		t.Errorf("expected blocks stacked top to bottom")
	}
	for _, b := range doc.Blocks {
		if b.PageWidth != 612 || b.PageHeight != 792 || b.Page != 1 {
			t.Errorf("unexpected page geometry: %+v", b)
		}
	}
}

func TestMarkdownParser_ListItemsAreBlocks(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader("- first item\n- second item\n"), "list.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := texts(doc)
	if len(got) != 2 || got[0] != "first item" || got[1] != "second item" {
		t.Errorf("unexpected blocks: %q", got)
	}
}

func TestMarkdownParser_ParagraphNotDuplicated(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader("one line\nsecond line\n"), "p.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Blocks) != 1 || doc.Blocks[0].Text != "one line second line" {
		t.Errorf("unexpected blocks: %q", texts(doc))
	}
}

func TestLayoutFlow_PageBreaks(t *testing.T) {
	var items []flowItem
	for range 80 {
		items = append(items, flowItem{text: strings.Repeat("word ", 60)})
	}
	blocks, labels := layoutFlow(items)
	if len(blocks) != 80 || len(labels) != 80 {
		t.Fatalf("expected 80 blocks, got %d", len(blocks))
	}
	last := blocks[len(blocks)-1]
	if last.Page < 2 {
		t.Errorf("expected content to flow onto later pages, last page %d", last.Page)
	}
	for _, b := range blocks {
		if b.BBox.Y1 > pageHeight-pageMargin+0.001 && b.BBox.Y0 > pageMargin {
			t.Errorf("block overflows page %d: %+v", b.Page, b.BBox)
		}
	}
}
