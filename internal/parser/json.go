package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// JSONParser reads a block list produced by an external layout extractor. When
// every entry carries a "label" the document is labeled.
type JSONParser struct{}

func (p *JSONParser) Parse(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc := &Document{Name: baseName(filename)}

	if allLabeled(data) {
		doc.Blocks, doc.Labels, err = doctree.DecodeLabeledBlocks(data)
	} else {
		doc.Blocks, err = doctree.DecodeBlocks(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return doc, nil
}

func allLabeled(data []byte) bool {
	var probe []struct {
		Label *string `json:"label"`
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&probe); err != nil || len(probe) == 0 {
		return false
	}
	for _, e := range probe {
		if e.Label == nil {
			return false
		}
	}
	return true
}
