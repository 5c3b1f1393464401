// Package outliner runs one document through classification and
// reconciliation. A failure inside one document never escapes Run.
package outliner

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/postprocess"
)

// ErrDocumentFailed wraps any failure while outlining a single document.
var ErrDocumentFailed = errors.New("document failed")

// BundleSource supplies the bundle to use for the next document.
type BundleSource interface {
	Current() *classifier.Bundle
}

// Result is the outcome for one document.
type Result struct {
	Outline  doctree.Outline    `json:"outline"`
	Labels   []doctree.Label    `json:"-"`
	Report   postprocess.Report `json:"report"`
	HasModel bool               `json:"has_model"`
	Duration time.Duration      `json:"-"`
}

// Outliner is safe for concurrent use.
type Outliner struct {
	models BundleSource
	proc   *postprocess.Processor
	log    *slog.Logger
}

// New creates an Outliner.
func New(models BundleSource, proc *postprocess.Processor, log *slog.Logger) *Outliner {
	return &Outliner{models: models, proc: proc, log: log}
}

// Classify returns the raw per-block labels without reconciliation.
func (o *Outliner) Classify(blocks []doctree.Block) []doctree.Label {
	return classifier.Predict(o.log, o.models.Current(), blocks)
}

// Run produces the outline for one document. Panics and errors are returned
// wrapped in ErrDocumentFailed and no partial outline is emitted.
func (o *Outliner) Run(name string, blocks []doctree.Block) (res Result, err error) {
	log := o.log.With("document", name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("document panicked", "panic", r)
			res = Result{}
			err = fmt.Errorf("%w: %s: %v", ErrDocumentFailed, name, r)
		}
	}()

	bundle := o.models.Current()
	labels := classifier.Predict(log, bundle, blocks)
	outline, rep, err := o.proc.Process(blocks, labels)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrDocumentFailed, name, err)
	}

	res = Result{
		Outline:  outline,
		Labels:   labels,
		Report:   rep,
		HasModel: bundle != nil,
		Duration: time.Since(start),
	}
	log.Info("document outlined", "blocks", len(blocks), "headings", len(outline.Headings), "title", outline.Title, "ms", res.Duration.Milliseconds())
	return res, nil
}
