package classifier

import (
	"fmt"
	"sort"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// LabelEncoder maps labels to dense class indices in sorted order.
type LabelEncoder struct {
	Classes []doctree.Label `json:"classes"`
}

// FitLabelEncoder collects the distinct labels, sorted.
func FitLabelEncoder(labels []doctree.Label) *LabelEncoder {
	seen := make(map[doctree.Label]bool)
	var classes []doctree.Label
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return &LabelEncoder{Classes: classes}
}

// Encode returns the class index of each label.
func (e *LabelEncoder) Encode(labels []doctree.Label) ([]int, error) {
	index := make(map[doctree.Label]int, len(e.Classes))
	for i, c := range e.Classes {
		index[c] = i
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := index[l]
		if !ok {
			return nil, fmt.Errorf("label %q not seen during fit", l)
		}
		out[i] = idx
	}
	return out, nil
}

// Decode maps a class index back to its label. Out-of-range indices decode to NONE.
func (e *LabelEncoder) Decode(idx int) doctree.Label {
	if idx < 0 || idx >= len(e.Classes) {
		return doctree.LabelNone
	}
	return e.Classes[idx]
}

func (e *LabelEncoder) validate() error {
	if len(e.Classes) == 0 {
		return fmt.Errorf("label encoder has no classes")
	}
	for _, c := range e.Classes {
		if !c.Valid() {
			return fmt.Errorf("label encoder class %q is not a known label", c)
		}
	}
	return nil
}
