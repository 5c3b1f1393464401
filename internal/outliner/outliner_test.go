package outliner

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/features"
	"github.com/dgallion1/docoutline/internal/postprocess"
)

type fixedSource struct{ b *classifier.Bundle }

func (f fixedSource) Current() *classifier.Bundle { return f.b }

type panicSource struct{}

func (panicSource) Current() *classifier.Bundle { panic("bundle store exploded") }

// fontSizeBundle labels any block above 15pt as H1 and everything else NONE.
func fontSizeBundle() *classifier.Bundle {
	mean := make([]float64, features.Dim)
	scale := make([]float64, features.Dim)
	for i := range scale {
		scale[i] = 1
	}
	weights := [][]float64{make([]float64, features.Dim), make([]float64, features.Dim)}
	weights[0][features.IdxFontSize] = 1
	return &classifier.Bundle{
		Manifest: classifier.Manifest{Features: features.Names, Classes: []doctree.Label{doctree.LabelH1, doctree.LabelNone}},
		Scaler:   &classifier.Scaler{Mean: mean, Scale: scale},
		Encoder:  &classifier.LabelEncoder{Classes: []doctree.Label{doctree.LabelH1, doctree.LabelNone}},
		Model:    &classifier.Softmax{Weights: weights, Bias: []float64{-15, 0}},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOutliner(src BundleSource) *Outliner {
	return New(src, postprocess.New(testLogger(), postprocess.DefaultOptions()), testLogger())
}

func sampleBlocks() []doctree.Block {
	mk := func(text string, size, y float64) doctree.Block {
		return doctree.Block{
			Text: text, FontSize: size, Page: 1, LinePosition: y,
			BBox:      doctree.BBox{X0: 72, Y0: y, X1: 400, Y1: y + size},
			PageWidth: 612, PageHeight: 792, Source: doctree.SourceDigital,
		}
	}
	return []doctree.Block{
		mk("Annual Report", 20, 72),
		mk("This report covers the financial year.", 10, 120),
		mk("1.1 Revenue", 18, 200),
		mk("Revenue grew in every region.", 10, 240),
	}
}

func TestRun_WithModel(t *testing.T) {
	res, err := newOutliner(fixedSource{fontSizeBundle()}).Run("report.pdf", sampleBlocks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.HasModel {
		t.Error("expected HasModel")
	}
	if res.Outline.Title != "Annual Report" {
		t.Errorf("title = %q, want %q", res.Outline.Title, "Annual Report")
	}
	if len(res.Outline.Headings) != 2 {
		t.Fatalf("headings = %+v, want 2", res.Outline.Headings)
	}
	if h := res.Outline.Headings[1]; h.Text != "1.1 Revenue" || h.Level != doctree.LabelH2 {
		t.Errorf("second heading = %+v, want corrected to H2", h)
	}
	if len(res.Report.Corrections) != 1 {
		t.Errorf("corrections = %+v, want 1", res.Report.Corrections)
	}
	if len(res.Labels) != 4 {
		t.Errorf("labels = %v, want 4", res.Labels)
	}
}

func TestRun_NoModel(t *testing.T) {
	res, err := newOutliner(fixedSource{}).Run("report.pdf", sampleBlocks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HasModel {
		t.Error("expected HasModel false")
	}
	if res.Outline.Title != doctree.NoTitle || len(res.Outline.Headings) != 0 {
		t.Errorf("outline = %+v, want empty", res.Outline)
	}
	for _, l := range res.Labels {
		if l != doctree.LabelNone {
			t.Errorf("label = %q, want NONE", l)
		}
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	res, err := newOutliner(panicSource{}).Run("broken.pdf", sampleBlocks())
	if !errors.Is(err, ErrDocumentFailed) {
		t.Fatalf("expected ErrDocumentFailed, got %v", err)
	}
	if res.Outline.Headings != nil || res.Outline.Title != "" {
		t.Errorf("expected no partial outline, got %+v", res.Outline)
	}
}

func TestRun_EmptyDocument(t *testing.T) {
	res, err := newOutliner(fixedSource{fontSizeBundle()}).Run("empty.pdf", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outline.Title != doctree.NoTitle {
		t.Errorf("title = %q", res.Outline.Title)
	}
}

func TestClassify(t *testing.T) {
	got := newOutliner(fixedSource{fontSizeBundle()}).Classify(sampleBlocks())
	want := []doctree.Label{doctree.LabelH1, doctree.LabelNone, doctree.LabelH1, doctree.LabelNone}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d = %q, want %q", i, got[i], want[i])
		}
	}
}
