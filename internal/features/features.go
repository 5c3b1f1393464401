// Package features turns the ordered blocks of one document into fixed-length
// numeric vectors for the heading classifier.
//
// The vector layout is positional and recorded in every trained bundle's
// manifest. Reordering or resizing Names invalidates existing bundles.
package features

import (
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Names is the ordered feature manifest.
var Names = []string{
	"font_size", "font_size_ratio", "font_size_normalized", "font_size_z_score",
	"is_bold", "is_italic",
	"text_length", "char_count", "word_count",
	"relative_x", "relative_y", "is_near_top", "is_centered",
	"is_numbered", "is_hierarchical", "is_all_caps", "is_title_case", "ends_with_colon",
	"is_short_line", "is_standalone", "spacing_before", "spacing_after", "is_isolated",
	"is_low_fidelity",
}

// Dim is the length of every feature vector.
const Dim = 24

// Index positions used outside this package.
const (
	IdxFontSize      = 0
	IdxSpacingBefore = 20
	IdxSpacingAfter  = 21
	IdxIsolated      = 22
	IdxLowFidelity   = 23
)

// BoundarySpacing is reported when there is no same-page neighbour.
const BoundarySpacing = 50.0

const (
	nearTopRatio     = 0.15
	isolationFactor  = 1.5
	shortLineWords   = 8
	standaloneLength = 100
	centeredMaxWords = 10
)

// Vector is one block's feature values, ordered as Names.
type Vector [Dim]float64

// Stats are document-wide font size statistics.
type Stats struct {
	Mean, Max, Min, StdDev float64
}

// FontStats computes statistics over every block regardless of page.
func FontStats(blocks []doctree.Block) Stats {
	if len(blocks) == 0 {
		return Stats{}
	}
	sizes := make([]float64, len(blocks))
	for i, b := range blocks {
		sizes[i] = b.FontSize
	}
	var s Stats
	s.Mean, s.StdDev = stat.PopMeanStdDev(sizes, nil)
	s.Max, s.Min = floats.Max(sizes), floats.Min(sizes)
	return s
}

// Extract returns one vector per block in input order.
func Extract(blocks []doctree.Block) []Vector {
	if len(blocks) == 0 {
		return nil
	}
	stats := FontStats(blocks)
	out := make([]Vector, len(blocks))
	for i := range blocks {
		out[i] = blockVector(blocks, i, stats)
	}
	return out
}

func blockVector(blocks []doctree.Block, i int, st Stats) Vector {
	b := blocks[i]
	text := b.Text
	stripped := strings.TrimSpace(text)
	fs := b.FontSize
	words := WordCount(text)
	length := utf8.RuneCountInString(text)

	ratio := 1.0
	if st.Mean > 0 {
		ratio = fs / st.Mean
	}
	var normalized, z float64
	if st.Max > st.Min {
		normalized = (fs - st.Min) / (st.Max - st.Min)
	}
	if st.StdDev > 0 {
		z = (fs - st.Mean) / st.StdDev
	}

	relX, relY := b.RelativeX(), b.RelativeY()
	before := spacingBefore(blocks, i)
	after := spacingAfter(blocks, i)

	return Vector{
		fs, ratio, normalized, z,
		flag(b.Bold), flag(b.Italic),
		float64(length),
		float64(length - strings.Count(text, " ")),
		float64(words),
		relX, relY,
		flag(relY < nearTopRatio),
		flag(relX > 0.3 && relX < 0.7 && words < centeredMaxWords),
		flag(numberedRe.MatchString(stripped)),
		flag(hierarchicalRe.MatchString(stripped)),
		flag(IsUpper(text) && words > 1 && length > 5),
		flag(IsTitle(text) && words > 1),
		flag(strings.HasSuffix(stripped, ":")),
		flag(words < shortLineWords),
		flag(length < standaloneLength),
		before, after,
		flag(before > fs*isolationFactor && after > fs*isolationFactor),
		flag(b.Source == doctree.SourceLowFidelity),
	}
}

func spacingBefore(blocks []doctree.Block, i int) float64 {
	if i == 0 || blocks[i-1].Page != blocks[i].Page {
		return BoundarySpacing
	}
	return blocks[i].LinePosition - blocks[i-1].BBox.Y1
}

func spacingAfter(blocks []doctree.Block, i int) float64 {
	if i >= len(blocks)-1 || blocks[i+1].Page != blocks[i].Page {
		return BoundarySpacing
	}
	return blocks[i+1].LinePosition - blocks[i].BBox.Y1
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Slice returns the vector as a plain slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Dim)
	copy(out, v[:])
	return out
}

// Named maps feature names to values, for inspection output.
func (v Vector) Named() map[string]float64 {
	m := make(map[string]float64, Dim)
	for i, n := range Names {
		m[n] = v[i]
	}
	return m
}
