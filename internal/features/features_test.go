package features

import (
	"testing"

	"github.com/dgallion1/docoutline/internal/doctree"
)

func block(text string, page int, y0, y1, fs float64) doctree.Block {
	return doctree.Block{
		Text:         text,
		BBox:         doctree.BBox{X0: 72, Y0: y0, X1: 300, Y1: y1},
		FontSize:     fs,
		Page:         page,
		LinePosition: y0,
		PageWidth:    612,
		PageHeight:   792,
		Source:       doctree.SourceDigital,
	}
}

func TestNames_MatchDim(t *testing.T) {
	if len(Names) != Dim {
		t.Fatalf("expected %d feature names, got %d", Dim, len(Names))
	}
	want := map[int]string{
		IdxFontSize:      "font_size",
		IdxSpacingBefore: "spacing_before",
		IdxSpacingAfter:  "spacing_after",
		IdxIsolated:      "is_isolated",
		IdxLowFidelity:   "is_low_fidelity",
	}
	for idx, name := range want {
		if Names[idx] != name {
			t.Errorf("Names[%d] = %q, want %q", idx, Names[idx], name)
		}
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	if got := Extract(nil); len(got) != 0 {
		t.Fatalf("expected empty output, got %d vectors", len(got))
	}
}

func TestExtract_LengthMatchesInput(t *testing.T) {
	blocks := []doctree.Block{
		block("Title", 1, 50, 70, 20),
		block("body text", 1, 80, 90, 10),
		block("more", 2, 50, 60, 10),
	}
	if got := Extract(blocks); len(got) != len(blocks) {
		t.Fatalf("expected %d vectors, got %d", len(blocks), len(got))
	}
}

func TestExtract_Deterministic(t *testing.T) {
	blocks := []doctree.Block{
		block("1. Introduction", 1, 100, 114, 14),
		block("Some body text that runs on", 1, 120, 130, 10),
	}
	a := Extract(blocks)
	b := Extract(blocks)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vector %d differs between runs", i)
		}
	}
}

func TestExtract_BoundarySpacing(t *testing.T) {
	blocks := []doctree.Block{
		block("first", 1, 100, 110, 10),
		block("last on page one", 1, 120, 130, 10),
		block("first on page two", 2, 40, 50, 10),
		block("last", 2, 60, 70, 10),
	}
	v := Extract(blocks)

	if v[0][IdxSpacingBefore] != BoundarySpacing {
		t.Errorf("first block spacing_before = %v, want %v", v[0][IdxSpacingBefore], BoundarySpacing)
	}
	if v[0][IdxSpacingAfter] != 10 {
		t.Errorf("first block spacing_after = %v, want 10", v[0][IdxSpacingAfter])
	}
	if v[1][IdxSpacingAfter] != BoundarySpacing {
		t.Errorf("block before page break spacing_after = %v, want %v", v[1][IdxSpacingAfter], BoundarySpacing)
	}
	if v[2][IdxSpacingBefore] != BoundarySpacing {
		t.Errorf("block after page break spacing_before = %v, want %v", v[2][IdxSpacingBefore], BoundarySpacing)
	}
	if v[3][IdxSpacingAfter] != BoundarySpacing {
		t.Errorf("last block spacing_after = %v, want %v", v[3][IdxSpacingAfter], BoundarySpacing)
	}
}

func TestExtract_Isolated(t *testing.T) {
	blocks := []doctree.Block{
		block("body above", 1, 100, 110, 10),
		block("Heading", 1, 140, 152, 12), // 30 before, 30 after; threshold 1.5*12 = 18
		block("body below", 1, 182, 192, 10),
		block("tight", 1, 196, 206, 10), // 4 before
	}
	v := Extract(blocks)
	if v[1][IdxIsolated] != 1 {
		t.Errorf("expected isolated heading, got %v", v[1][IdxIsolated])
	}
	if v[3][IdxIsolated] != 0 {
		t.Errorf("expected tight block not isolated, got %v", v[3][IdxIsolated])
	}
	if v[2][IdxIsolated] != 0 {
		t.Errorf("expected body below not isolated (4 after), got %v", v[2][IdxIsolated])
	}
}

func TestExtract_FontStatistics(t *testing.T) {
	blocks := []doctree.Block{
		block("a", 1, 10, 20, 10),
		block("b", 1, 30, 40, 20),
	}
	v := Extract(blocks)
	// mean 15, std 5, min 10, max 20
	if v[1][1] != 20.0/15.0 {
		t.Errorf("ratio = %v, want %v", v[1][1], 20.0/15.0)
	}
	if v[0][2] != 0 || v[1][2] != 1 {
		t.Errorf("normalized = %v/%v, want 0/1", v[0][2], v[1][2])
	}
	if v[0][3] != -1 || v[1][3] != 1 {
		t.Errorf("z-score = %v/%v, want -1/1", v[0][3], v[1][3])
	}
}

func TestExtract_UniformFontDegenerateStats(t *testing.T) {
	blocks := []doctree.Block{
		block("a", 1, 10, 20, 12),
		block("b", 1, 30, 40, 12),
	}
	for i, v := range Extract(blocks) {
		if v[1] != 1 || v[2] != 0 || v[3] != 0 {
			t.Errorf("vector %d: ratio/normalized/z = %v/%v/%v, want 1/0/0", i, v[1], v[2], v[3])
		}
	}
}

func TestExtract_ZeroFontSizes(t *testing.T) {
	v := Extract([]doctree.Block{block("x", 1, 0, 0, 0)})
	if v[0][1] != 1 {
		t.Errorf("ratio with zero mean = %v, want 1", v[0][1])
	}
}

func TestExtract_TextFeatures(t *testing.T) {
	b := block("2.1 Intended Audience:", 1, 100, 110, 11)
	b.Bold = true
	b.Source = doctree.SourceLowFidelity
	v := Extract([]doctree.Block{b})[0]

	checks := map[string]float64{
		"is_bold":         1,
		"is_italic":       0,
		"text_length":     22,
		"char_count":      20,
		"word_count":      3,
		"is_numbered":     1,
		"is_hierarchical": 1,
		"is_all_caps":     0,
		"is_title_case":   1,
		"ends_with_colon": 1,
		"is_short_line":   1,
		"is_standalone":   1,
		"is_low_fidelity": 1,
	}
	named := v.Named()
	for name, want := range checks {
		if named[name] != want {
			t.Errorf("%s = %v, want %v", name, named[name], want)
		}
	}
}

func TestExtract_PositionFeatures(t *testing.T) {
	b := block("Centered Title", 1, 50, 70, 20)
	b.BBox.X0 = 250
	v := Extract([]doctree.Block{b})[0].Named()
	if v["is_near_top"] != 1 {
		t.Errorf("expected near top, got %v", v["is_near_top"])
	}
	if v["is_centered"] != 1 {
		t.Errorf("expected centered, got %v", v["is_centered"])
	}

	long := block("one two three four five six seven eight nine ten", 1, 500, 510, 10)
	long.BBox.X0 = 250
	lv := Extract([]doctree.Block{long})[0].Named()
	if lv["is_centered"] != 0 {
		t.Error("ten-word block must not count as centered")
	}
	if lv["is_near_top"] != 0 {
		t.Error("block at 500/792 must not be near top")
	}
}

func TestVector_Slice(t *testing.T) {
	v := Extract([]doctree.Block{block("x", 1, 0, 10, 10)})[0]
	s := v.Slice()
	if len(s) != Dim {
		t.Fatalf("expected %d values, got %d", Dim, len(s))
	}
	s[0] = -1
	if v[0] == -1 {
		t.Error("Slice must copy")
	}
}
