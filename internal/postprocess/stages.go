package postprocess

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/features"
)

// artifactRe matches lone list markers: "3", "3.", "3)" or a bullet glyph.
// â € ¢ are the pieces of a UTF-8 bullet decoded as Windows-1252.
var artifactRe = regexp.MustCompile(`^(\d+[.)]?|[-•▪●‣â€¢]|â€¢)$`)

const tocMarker = "table of contents"

// Correction records one Stage C level override.
type Correction struct {
	Text string        `json:"text"`
	Page int           `json:"page"`
	From doctree.Label `json:"from"`
	To   doctree.Label `json:"to"`
}

// SuppressArtifacts demotes heading labels on narrow list-marker blocks. It
// returns the new labels and the number demoted.
func SuppressArtifacts(blocks []doctree.Block, labels []doctree.Label, minWidth float64) ([]doctree.Label, int) {
	out := slices.Clone(labels)
	n := 0
	for i, b := range blocks {
		if !out[i].IsHeading() {
			continue
		}
		if artifactRe.MatchString(strings.TrimSpace(b.Text)) && b.BBox.Width() < minWidth {
			out[i] = doctree.LabelNone
			n++
		}
	}
	return out, n
}

// IsTOCHeading reports whether text names a table of contents.
func IsTOCHeading(text string) bool {
	return strings.Contains(fold(text), tocMarker)
}

// SuppressTOC marks every page holding a heading that names a table of
// contents and demotes the other headings on those pages. It returns the new
// labels, the TOC pages in ascending order and the number demoted.
func SuppressTOC(blocks []doctree.Block, labels []doctree.Label) ([]doctree.Label, []int, int) {
	out := slices.Clone(labels)
	pages := make(map[int]bool)
	for i, b := range blocks {
		if out[i].IsHeading() && IsTOCHeading(b.Text) {
			pages[b.Page] = true
		}
	}
	n := 0
	for i, b := range blocks {
		if out[i].IsHeading() && pages[b.Page] && !IsTOCHeading(b.Text) {
			out[i] = doctree.LabelNone
			n++
		}
	}
	tocPages := make([]int, 0, len(pages))
	for p := range pages {
		tocPages = append(tocPages, p)
	}
	slices.Sort(tocPages)
	return out, tocPages, n
}

// NumberedLevel returns the level implied by an explicit numeric prefix, or
// false when text has none.
func NumberedLevel(text string) (doctree.Label, bool) {
	switch {
	case features.HasThreeLevelPrefix(text):
		return doctree.LabelH3, true
	case features.HasTwoLevelPrefix(text):
		return doctree.LabelH2, true
	case features.HasNumberPrefix(text):
		return doctree.LabelH1, true
	}
	return "", false
}

// CorrectHierarchy forces the level of numbered headings from their prefix.
// TITLE and NONE are never changed. Applying it twice changes nothing more.
func CorrectHierarchy(blocks []doctree.Block, labels []doctree.Label) ([]doctree.Label, []Correction) {
	out := slices.Clone(labels)
	var corrections []Correction
	for i, b := range blocks {
		if !out[i].IsHeading() || out[i] == doctree.LabelTitle {
			continue
		}
		level, ok := NumberedLevel(b.Text)
		if !ok || level == out[i] {
			continue
		}
		corrections = append(corrections, Correction{
			Text: strings.TrimSpace(b.Text),
			Page: b.Page,
			From: out[i],
			To:   level,
		})
		out[i] = level
	}
	return out, corrections
}

// Denylist is a set of normalized generic section names.
type Denylist map[string]struct{}

// NewDenylist normalizes names into a Denylist.
func NewDenylist(names []string) Denylist {
	d := make(Denylist, len(names))
	for _, n := range names {
		if k := normalize(n); k != "" {
			d[k] = struct{}{}
		}
	}
	return d
}

// Contains reports whether text normalizes to a denied name.
func (d Denylist) Contains(text string) bool {
	_, ok := d[normalize(text)]
	return ok
}

// Filter turns surviving heading labels into headings. Entries on TOC pages
// other than the TOC heading, and denied generic names, are dropped. Headings
// are returned sorted by page then position; dropped texts are returned too.
func Filter(blocks []doctree.Block, labels []doctree.Label, tocPages []int, deny Denylist) ([]doctree.Heading, []string) {
	var headings []doctree.Heading
	var dropped []string
	for i, b := range blocks {
		if !labels[i].IsHeading() {
			continue
		}
		text := strings.TrimSpace(b.Text)
		if slices.Contains(tocPages, b.Page) && !IsTOCHeading(text) {
			dropped = append(dropped, text)
			continue
		}
		if deny.Contains(text) {
			dropped = append(dropped, text)
			continue
		}
		headings = append(headings, doctree.Heading{
			Text:         text,
			Level:        labels[i],
			Page:         b.Page,
			LinePosition: b.LinePosition,
		})
	}
	SortHeadings(headings)
	return headings, dropped
}

// RepeatRule holds the thresholds for running header detection.
type RepeatRule struct {
	MinPages  int     // a text must appear on more than this many pages
	PageRatio float64 // and on more than this share of all pages
}

// Deduplicate removes every heading whose text repeats like a running header
// or footer: on many pages, or more than once at the same rounded position.
func Deduplicate(headings []doctree.Heading, totalPages int, rule RepeatRule) ([]doctree.Heading, []string) {
	if len(headings) == 0 {
		return headings, nil
	}
	if totalPages < 1 {
		totalPages = 1
	}

	type occurrences struct {
		pages     map[int]struct{}
		positions map[float64]int
		count     int
	}
	byText := make(map[string]*occurrences)
	var order []string
	for _, h := range headings {
		o, ok := byText[h.Text]
		if !ok {
			o = &occurrences{pages: make(map[int]struct{}), positions: make(map[float64]int)}
			byText[h.Text] = o
			order = append(order, h.Text)
		}
		o.pages[h.Page] = struct{}{}
		o.positions[math.RoundToEven(h.LinePosition)]++
		o.count++
	}

	repeating := make(map[string]bool)
	var removed []string
	for _, text := range order {
		o := byText[text]
		pages := len(o.pages)
		flagged := pages > rule.MinPages && float64(pages)/float64(totalPages) > rule.PageRatio
		if !flagged && o.count > 1 {
			flagged = len(o.positions) < o.count
		}
		if flagged {
			repeating[text] = true
			removed = append(removed, text)
		}
	}
	if len(removed) == 0 {
		return headings, nil
	}

	kept := make([]doctree.Heading, 0, len(headings))
	for _, h := range headings {
		if !repeating[h.Text] {
			kept = append(kept, h)
		}
	}
	return kept, removed
}

// SortHeadings orders headings by page then vertical position, keeping the
// input order for ties.
func SortHeadings(headings []doctree.Heading) {
	slices.SortStableFunc(headings, func(a, b doctree.Heading) int {
		if c := cmp.Compare(a.Page, b.Page); c != 0 {
			return c
		}
		return cmp.Compare(a.LinePosition, b.LinePosition)
	})
}

// Assemble builds the outline: the title from page 1 and every non-TITLE
// heading in page and position order.
func Assemble(headings []doctree.Heading) doctree.Outline {
	sorted := slices.Clone(headings)
	SortHeadings(sorted)

	out := doctree.Outline{Title: Title(sorted), Headings: []doctree.OutlineEntry{}}
	for _, h := range sorted {
		if h.Level == doctree.LabelTitle {
			continue
		}
		out.Headings = append(out.Headings, doctree.OutlineEntry{Level: h.Level, Text: h.Text, Page: h.Page})
	}
	return out
}

// Title joins the page 1 TITLE headings, falling back to the first page 1 H1.
func Title(headings []doctree.Heading) string {
	var parts []string
	for _, h := range headings {
		if h.Level == doctree.LabelTitle && h.Page == 1 {
			parts = append(parts, h.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	for _, h := range headings {
		if h.Level == doctree.LabelH1 && h.Page == 1 {
			return h.Text
		}
	}
	return doctree.NoTitle
}

// fold case-folds and trims text. A Caser holds state, so one is made per call.
func fold(text string) string {
	return cases.Fold().String(strings.TrimSpace(text))
}

func normalize(text string) string {
	return strings.TrimSpace(strings.TrimRight(fold(text), ":"))
}
