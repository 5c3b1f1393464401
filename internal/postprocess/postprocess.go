// Package postprocess reconciles raw per-block labels into a document outline.
//
// Six stages run in a fixed order, each a pure function over blocks and labels:
// artifact suppression, table of contents suppression, hierarchy correction,
// TOC/denylist filtering, running header removal, and title assembly. A label
// demoted to NONE is never revived by a later stage.
package postprocess

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// ErrLabelCount is returned when labels and blocks differ in length.
var ErrLabelCount = errors.New("label count does not match block count")

// DefaultDenylist holds generic section names that are rarely real headings.
var DefaultDenylist = []string{
	"mission statement",
	"goals",
	"key features",
	"contact us",
	"summary",
	"overview",
	"regular pathway",
	"distinction pathway",
	"revision history",
}

// Options tunes the heuristic thresholds.
type Options struct {
	MinArtifactWidth float64
	Repeat           RepeatRule
	Denylist         []string
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		MinArtifactWidth: 50,
		Repeat:           RepeatRule{MinPages: 2, PageRatio: 0.15},
		Denylist:         DefaultDenylist,
	}
}

// Report lists what each stage changed for one document.
type Report struct {
	Artifacts   int          `json:"artifacts_suppressed"`
	TOCPages    []int        `json:"toc_pages,omitempty"`
	TOCEntries  int          `json:"toc_entries_suppressed"`
	Corrections []Correction `json:"corrections,omitempty"`
	Filtered    []string     `json:"filtered,omitempty"`
	Repeating   []string     `json:"repeating,omitempty"`
}

// Processor runs the stages with fixed options. It holds no per-document state
// and is safe for concurrent use.
type Processor struct {
	opts Options
	deny Denylist
	log  *slog.Logger
}

// New creates a Processor.
func New(log *slog.Logger, opts Options) *Processor {
	return &Processor{opts: opts, deny: NewDenylist(opts.Denylist), log: log}
}

// Process turns one document's blocks and their raw labels into an outline.
func (p *Processor) Process(blocks []doctree.Block, labels []doctree.Label) (doctree.Outline, Report, error) {
	var rep Report
	if len(blocks) != len(labels) {
		return doctree.Outline{}, rep, fmt.Errorf("%w: %d labels for %d blocks", ErrLabelCount, len(labels), len(blocks))
	}
	for i, l := range labels {
		if !l.Valid() {
			return doctree.Outline{}, rep, fmt.Errorf("block %d: unknown label %q", i, l)
		}
	}

	labels, rep.Artifacts = SuppressArtifacts(blocks, labels, p.opts.MinArtifactWidth)

	labels, rep.TOCPages, rep.TOCEntries = SuppressTOC(blocks, labels)
	if len(rep.TOCPages) > 0 {
		p.log.Info("table of contents detected", "pages", rep.TOCPages, "entries_suppressed", rep.TOCEntries)
	}

	labels, rep.Corrections = CorrectHierarchy(blocks, labels)
	for _, c := range rep.Corrections {
		p.log.Warn("hierarchy correction", "text", c.Text, "page", c.Page, "from", c.From, "to", c.To)
	}

	headings, filtered := Filter(blocks, labels, rep.TOCPages, p.deny)
	rep.Filtered = filtered
	if len(filtered) > 0 {
		p.log.Debug("headings filtered", "texts", filtered)
	}

	headings, rep.Repeating = Deduplicate(headings, totalPages(blocks), p.opts.Repeat)
	if len(rep.Repeating) > 0 {
		p.log.Info("removing running headers", "texts", rep.Repeating)
	}

	out := Assemble(headings)
	p.log.Debug("outline assembled", "title", out.Title, "headings", len(out.Headings))
	return out, rep, nil
}

func totalPages(blocks []doctree.Block) int {
	n := 1
	for _, b := range blocks {
		n = max(n, b.Page)
	}
	return n
}
