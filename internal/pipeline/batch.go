package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgallion1/docoutline/internal/outliner"
)

// Source is one document for RunBatch.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads a document from disk.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BatchResult is the outcome for one Source. Exactly one of Result and Err
// is meaningful.
type BatchResult struct {
	Source      string
	Document    string
	ContentHash string
	Result      outliner.Result
	Err         error
}

// RunBatch outlines every source with at most workers in flight. Results are
// returned in input order; a failing document never stops the others.
func RunBatch(ctx context.Context, w *Worker, sources []Source, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]BatchResult, len(sources))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, src := range sources {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = BatchResult{Source: src.Name, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = w.runOne(ctx, src)
		}(i, src)
	}
	wg.Wait()
	return results
}

func (w *Worker) runOne(ctx context.Context, src Source) BatchResult {
	out := BatchResult{Source: src.Name}
	rc, err := src.Open()
	if err != nil {
		out.Err = fmt.Errorf("%w: %s: %w", outliner.ErrDocumentFailed, src.Name, err)
		return out
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		out.Err = fmt.Errorf("%w: %s: %w", outliner.ErrDocumentFailed, src.Name, err)
		return out
	}
	out.ContentHash = ContentHashHex(data)

	doc, err := w.Parse(src.Name, bytes.NewReader(data))
	if err != nil {
		out.Err = fmt.Errorf("%w: %s: %w", outliner.ErrDocumentFailed, src.Name, err)
		w.log.Error("batch document failed", "source", src.Name, "error", err)
		return out
	}
	out.Document = doc.Name

	res, err := w.Outline(ctx, doc)
	if err != nil {
		out.Err = err
		w.log.Error("batch document failed", "source", src.Name, "error", err)
		return out
	}
	out.Result = res

	if err := w.Publish(ctx, doc.Name, out.ContentHash, res); err != nil {
		w.log.Warn("publish failed", "source", src.Name, "error", err)
	}
	return out
}
