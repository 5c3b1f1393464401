package doctree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidBlocks is returned when a block list fails schema validation.
var ErrInvalidBlocks = errors.New("invalid block list")

const blockSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["text", "bbox", "font_size", "page_number", "line_position", "page_width", "page_height"],
    "properties": {
      "text": {"type": "string"},
      "bbox": {
        "type": "object",
        "required": ["x0", "y0", "x1", "y1"],
        "properties": {
          "x0": {"type": "number"},
          "y0": {"type": "number"},
          "x1": {"type": "number"},
          "y1": {"type": "number"}
        }
      },
      "font_size": {"type": "number", "minimum": 0},
      "is_bold": {"type": "boolean"},
      "is_italic": {"type": "boolean"},
      "page_number": {"type": "integer", "minimum": 1},
      "line_position": {"type": "number"},
      "page_width": {"type": "number", "minimum": 0},
      "page_height": {"type": "number", "minimum": 0},
      "source": {"enum": ["digital", "low_fidelity", "digital_search"]}
    }
  }
}`

const labeledSchema = `{
  "allOf": [{"$ref": "blocks.json"}],
  "items": {
    "required": ["label"],
    "properties": {
      "label": {"enum": ["TITLE", "H1", "H2", "H3", "NONE"]}
    }
  }
}`

var (
	compileOnce   sync.Once
	blocksSchema  *jsonschema.Schema
	labeledBlocks *jsonschema.Schema
	compileErr    error
)

func schemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("blocks.json", strings.NewReader(blockSchema)); err != nil {
			compileErr = fmt.Errorf("load block schema: %w", err)
			return
		}
		if err := compiler.AddResource("labeled.json", strings.NewReader(labeledSchema)); err != nil {
			compileErr = fmt.Errorf("load labeled schema: %w", err)
			return
		}
		if blocksSchema, compileErr = compiler.Compile("blocks.json"); compileErr != nil {
			return
		}
		labeledBlocks, compileErr = compiler.Compile("labeled.json")
	})
	return blocksSchema, labeledBlocks, compileErr
}

// wireBlock accepts the legacy "digital_search" provenance used by older label files.
type wireBlock struct {
	Block
	Label string `json:"label,omitempty"`
}

func validate(schema *jsonschema.Schema, data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlocks, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlocks, err)
	}
	return nil
}

func decode(data []byte) ([]wireBlock, error) {
	var raw []wireBlock
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlocks, err)
	}
	for i := range raw {
		switch raw[i].Source {
		case "digital_search":
			raw[i].Source = SourceLowFidelity
		case "":
			raw[i].Source = SourceDigital
		}
	}
	return raw, nil
}

// DecodeBlocks validates a JSON array of blocks and decodes it.
func DecodeBlocks(data []byte) ([]Block, error) {
	bs, _, err := schemas()
	if err != nil {
		return nil, err
	}
	if err := validate(bs, data); err != nil {
		return nil, err
	}
	raw, err := decode(data)
	if err != nil {
		return nil, err
	}
	blocks := make([]Block, len(raw))
	for i, w := range raw {
		blocks[i] = w.Block
	}
	return blocks, nil
}

// DecodeLabeledBlocks validates a JSON array of blocks that each carry a label.
func DecodeLabeledBlocks(data []byte) ([]Block, []Label, error) {
	_, ls, err := schemas()
	if err != nil {
		return nil, nil, err
	}
	if err := validate(ls, data); err != nil {
		return nil, nil, err
	}
	raw, err := decode(data)
	if err != nil {
		return nil, nil, err
	}
	blocks := make([]Block, len(raw))
	labels := make([]Label, len(raw))
	for i, w := range raw {
		blocks[i] = w.Block
		if labels[i], err = ParseLabel(w.Label); err != nil {
			return nil, nil, fmt.Errorf("%w: block %d: %v", ErrInvalidBlocks, i, err)
		}
	}
	return blocks, labels, nil
}
