// Package dataset loads labeled documents and turns them into training
// examples for the heading classifier.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/features"
	"github.com/dgallion1/docoutline/internal/parser"
)

// ErrUnlabeled is returned for a training file that carries no labels.
var ErrUnlabeled = errors.New("document has no labels")

// Dataset is a set of labeled documents and the examples derived from them.
type Dataset struct {
	Documents []*parser.Document
	Examples  []classifier.Example
}

// Load reads every path. Directories are walked for formats that can carry
// labels; an explicitly named file must parse and be labeled.
func Load(log *slog.Logger, paths []string, opts parser.Options) (*Dataset, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{}
	for _, path := range files {
		doc, err := loadFile(path, opts)
		if err != nil {
			return nil, err
		}
		ds.Add(doc)
		log.Debug("loaded training document", "path", path, "blocks", len(doc.Blocks))
	}
	log.Info("dataset loaded", "documents", len(ds.Documents), "examples", len(ds.Examples))
	return ds, nil
}

// Add appends a labeled document. Features are computed per document so
// font statistics stay document-wide.
func (d *Dataset) Add(doc *parser.Document) {
	d.Documents = append(d.Documents, doc)
	for i, v := range features.Extract(doc.Blocks) {
		d.Examples = append(d.Examples, classifier.Example{Features: v, Label: doc.Labels[i]})
	}
}

// Counts returns the label distribution of the examples.
func (d *Dataset) Counts() map[doctree.Label]int {
	counts := make(map[doctree.Label]int)
	for _, ex := range d.Examples {
		counts[ex.Label]++
	}
	return counts
}

func loadFile(path string, opts parser.Options) (*parser.Document, error) {
	p, err := parser.ForFile(path, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := p.Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if !doc.Labeled() {
		return nil, fmt.Errorf("%s: %w", path, ErrUnlabeled)
	}
	return doc, nil
}

// labelable lists the formats that can carry labels.
var labelable = map[string]bool{
	".json": true, ".csv": true, ".md": true, ".markdown": true,
	".html": true, ".htm": true, ".docx": true, ".epub": true,
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && labelable[strings.ToLower(filepath.Ext(path))] {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
