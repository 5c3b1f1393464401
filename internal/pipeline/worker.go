package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/docoutline/internal/outliner"
	"github.com/dgallion1/docoutline/internal/parser"
	"github.com/dgallion1/docoutline/internal/sink"
)

// Publisher receives finished outlines.
type Publisher interface {
	PutOutline(ctx context.Context, doc string, rec sink.Record) error
}

// Worker turns uploaded documents into outlines.
type Worker struct {
	outliner   *outliner.Outliner
	publisher  Publisher
	parserOpts parser.Options
	timeout    time.Duration
	stats      *LatencyStats
	log        *slog.Logger
}

// NewWorker creates a Worker. publisher may be nil, in which case outlines are
// kept only in the job.
func NewWorker(o *outliner.Outliner, pub Publisher, opts parser.Options, timeout time.Duration, stats *LatencyStats, log *slog.Logger) *Worker {
	return &Worker{
		outliner:   o,
		publisher:  pub,
		parserOpts: opts,
		timeout:    timeout,
		stats:      stats,
		log:        log,
	}
}

// Parse converts raw bytes into a document. A parser panic fails only this
// document.
func (w *Worker) Parse(filename string, r io.Reader) (doc *parser.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			w.log.Error("parser panic", "filename", filename, "panic", rec)
			doc, err = nil, fmt.Errorf("%w: %s: parse panic: %v", outliner.ErrDocumentFailed, filename, rec)
		}
	}()
	p, err := parser.ForFile(filename, w.parserOpts)
	if err != nil {
		return nil, err
	}
	doc, err = p.Parse(r, filename)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return doc, nil
}

// Outline runs one parsed document under the per-document timeout. A document
// that exceeds it is reported failed; the outliner goroutine finishes on its own.
func (w *Worker) Outline(ctx context.Context, doc *parser.Document) (outliner.Result, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	type outcome struct {
		res outliner.Result
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := w.outliner.Run(doc.Name, doc.Blocks)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		w.record(time.Since(start), out.err != nil)
		return out.res, out.err
	case <-ctx.Done():
		w.record(time.Since(start), true)
		return outliner.Result{}, fmt.Errorf("%w: %s: %w", outliner.ErrDocumentFailed, doc.Name, ctx.Err())
	}
}

func (w *Worker) record(d time.Duration, failed bool) {
	if w.stats != nil {
		w.stats.Record(d, failed)
	}
}

// Publish sends a finished outline to the publisher, if any.
func (w *Worker) Publish(ctx context.Context, doc, hash string, res outliner.Result) error {
	if w.publisher == nil {
		return nil
	}
	return w.publisher.PutOutline(ctx, doc, sink.Record{
		Document:    doc,
		ContentHash: hash,
		Outline:     res.Outline,
		HasModel:    res.HasModel,
		CreatedAt:   time.Now().UTC(),
	})
}

// Process runs the full pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	data := job.FileData()
	hash := ContentHashHex(data)
	job.SetContentHash(hash)

	doc, err := w.Parse(job.Filename, bytes.NewReader(data))
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetBlocks(len(doc.Blocks))

	// Phase 2: Outline
	job.SetStatus(StatusOutlining, "outlining")
	res, err := w.Outline(ctx, doc)
	if err != nil {
		log.Error("outline failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "outlining")
		return
	}
	job.SetResult(res)
	if !res.HasModel {
		job.AddError("no model bundle loaded; all blocks labeled NONE")
	}

	// Phase 3: Publish
	if w.publisher == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}
	job.SetStatus(StatusPublishing, "publishing")
	if err := w.Publish(ctx, doc.Name, hash, res); err != nil {
		log.Error("publish failed", "error", err)
		job.AddError(fmt.Sprintf("publish: %s", err))
		job.SetStatus(StatusPartial, "done")
		return
	}
	log.Info("outline published", "headings", len(res.Outline.Headings))
	job.SetStatus(StatusCompleted, "done")
}
