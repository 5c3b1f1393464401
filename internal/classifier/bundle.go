// Package classifier maps feature vectors to heading labels.
//
// A Bundle holds every fitted parameter needed for inference. It is built
// complete (by Train or Load) and never mutated afterwards, so one bundle can be
// shared by any number of concurrent documents. A nil *Bundle means no model.
package classifier

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/features"
)

// Manifest describes a bundle. It is persisted as manifest.yaml.
type Manifest struct {
	Version   int               `yaml:"version" json:"version"`
	CreatedAt time.Time         `yaml:"created_at" json:"created_at"`
	Features  []string          `yaml:"features" json:"features"`
	Classes   []doctree.Label   `yaml:"classes" json:"classes"`
	Metrics   Metrics           `yaml:"metrics" json:"metrics"`
	Artifacts map[string]string `yaml:"artifacts,omitempty" json:"artifacts,omitempty"` // file -> sha256
}

// Metrics are the training figures recorded alongside a bundle.
type Metrics struct {
	Accuracy  float64 `yaml:"accuracy" json:"accuracy"`
	TrainSize int     `yaml:"train_size" json:"train_size"`
	TestSize  int     `yaml:"test_size" json:"test_size"`
}

// BundleVersion is bumped whenever the on-disk layout changes.
const BundleVersion = 1

// Bundle is a fitted scaler, label encoder and model plus their manifest.
type Bundle struct {
	Manifest Manifest
	Scaler   *Scaler
	Encoder  *LabelEncoder
	Model    *Softmax
}

// Classify labels one feature vector. A vector with a NaN or infinite value
// is labeled NONE.
func (b *Bundle) Classify(v features.Vector) doctree.Label {
	scaled := b.Scaler.Transform(v[:])
	if floats.HasNaN(scaled) || math.IsInf(floats.Norm(scaled, math.Inf(1)), 1) {
		return doctree.LabelNone
	}
	label := b.Encoder.Decode(b.Model.Predict(scaled))
	if !label.Valid() {
		return doctree.LabelNone
	}
	return label
}

func (b *Bundle) validate() error {
	if b == nil || b.Scaler == nil || b.Encoder == nil || b.Model == nil {
		return ErrBundleIncomplete
	}
	if !slices.Equal(b.Manifest.Features, features.Names) {
		return ErrFeatureMismatch
	}
	if err := b.Scaler.validate(features.Dim); err != nil {
		return err
	}
	if err := b.Encoder.validate(); err != nil {
		return err
	}
	if !slices.Equal(b.Manifest.Classes, b.Encoder.Classes) {
		return ErrFeatureMismatch
	}
	return b.Model.validate(len(b.Encoder.Classes), features.Dim)
}

// Predict labels every block of one document. It always returns len(blocks)
// labels; without a bundle, or when no vectors are produced, every label is NONE.
func Predict(log *slog.Logger, b *Bundle, blocks []doctree.Block) []doctree.Label {
	labels := make([]doctree.Label, len(blocks))
	for i := range labels {
		labels[i] = doctree.LabelNone
	}
	if b == nil {
		if len(blocks) > 0 {
			log.Error("model unavailable, labeling all blocks NONE", "blocks", len(blocks))
		}
		return labels
	}
	vecs := features.Extract(blocks)
	if len(vecs) == 0 {
		return labels
	}
	for i, v := range vecs {
		labels[i] = b.Classify(v)
	}
	return labels
}
