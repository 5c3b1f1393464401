package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/features"
)

var (
	ErrEmptyDataset     = errors.New("empty training dataset")
	ErrBundleIncomplete = errors.New("model bundle incomplete")
	ErrFeatureMismatch  = errors.New("model bundle does not match feature manifest")
)

// Example is one labeled feature vector.
type Example struct {
	Features features.Vector
	Label    doctree.Label
}

// TrainOptions controls the split and the optimizer.
type TrainOptions struct {
	TestRatio float64
	Seed      uint64
	Params    ModelParams
}

// DefaultTrainOptions holds out 20% with a fixed seed.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{TestRatio: 0.2, Seed: 42, Params: DefaultModelParams()}
}

// TrainResult reports the outcome of Train. Bundle is nil when the dataset held a
// single class, since no classifier can be fit.
type TrainResult struct {
	Bundle     *Bundle
	Accuracy   float64
	Classes    []doctree.Label
	TrainSize  int
	TestSize   int
	Stratified bool
	Degenerate bool
}

// Train fits a bundle on examples and reports held-out accuracy.
func Train(log *slog.Logger, examples []Example, opts TrainOptions) (*TrainResult, error) {
	if len(examples) == 0 {
		return nil, ErrEmptyDataset
	}
	if opts.TestRatio <= 0 || opts.TestRatio >= 1 {
		opts.TestRatio = 0.2
	}

	labels := make([]doctree.Label, len(examples))
	for i, ex := range examples {
		if !ex.Label.Valid() {
			return nil, fmt.Errorf("example %d: unknown label %q", i, ex.Label)
		}
		labels[i] = ex.Label
	}
	enc := FitLabelEncoder(labels)
	y, err := enc.Encode(labels)
	if err != nil {
		return nil, err
	}

	if len(enc.Classes) < 2 {
		log.Warn("only one class in training data, classifier not trained", "class", enc.Classes[0], "examples", len(examples))
		return &TrainResult{Accuracy: 1.0, Classes: enc.Classes, Degenerate: true}, nil
	}

	counts := make([]int, len(enc.Classes))
	for _, c := range y {
		counts[c]++
	}
	stratify := true
	for _, c := range counts {
		if c < 2 {
			stratify = false
		}
	}
	if !stratify {
		log.Warn("some classes have a single example, splitting without stratification", "counts", classCounts(enc, counts))
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	var trainIdx, testIdx []int
	if stratify {
		trainIdx, testIdx = stratifiedSplit(rng, y, len(enc.Classes), opts.TestRatio)
	} else {
		trainIdx, testIdx = randomSplit(rng, len(y), opts.TestRatio)
	}

	xTrain := make([][]float64, len(trainIdx))
	yTrain := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		xTrain[i] = examples[idx].Features.Slice()
		yTrain[i] = y[idx]
	}

	scaler, err := FitScaler(xTrain)
	if err != nil {
		return nil, err
	}
	model, err := FitSoftmax(scaler.TransformAll(xTrain), yTrain, len(enc.Classes), opts.Params)
	if err != nil {
		return nil, err
	}

	correct := 0
	for _, idx := range testIdx {
		if model.Predict(scaler.Transform(examples[idx].Features.Slice())) == y[idx] {
			correct++
		}
	}
	accuracy := 0.0
	if len(testIdx) > 0 {
		accuracy = float64(correct) / float64(len(testIdx))
	}
	log.Info("model trained", "accuracy", fmt.Sprintf("%.3f", accuracy), "train", len(trainIdx), "test", len(testIdx), "stratified", stratify)

	bundle := &Bundle{
		Manifest: Manifest{
			Version:   BundleVersion,
			CreatedAt: time.Now().UTC(),
			Features:  append([]string(nil), features.Names...),
			Classes:   append([]doctree.Label(nil), enc.Classes...),
			Metrics:   Metrics{Accuracy: accuracy, TrainSize: len(trainIdx), TestSize: len(testIdx)},
		},
		Scaler:  scaler,
		Encoder: enc,
		Model:   model,
	}
	return &TrainResult{
		Bundle:     bundle,
		Accuracy:   accuracy,
		Classes:    enc.Classes,
		TrainSize:  len(trainIdx),
		TestSize:   len(testIdx),
		Stratified: stratify,
	}, nil
}

func testCount(n int, ratio float64) int {
	t := int(math.Ceil(float64(n) * ratio))
	if t < 1 {
		t = 1
	}
	if t > n-1 {
		t = n - 1
	}
	return t
}

func randomSplit(rng *rand.Rand, n int, ratio float64) (train, test []int) {
	perm := rng.Perm(n)
	t := testCount(n, ratio)
	return perm[t:], perm[:t]
}

// stratifiedSplit holds out the same share of every class. Each class has at
// least two members, so both sides receive at least one of each.
func stratifiedSplit(rng *rand.Rand, y []int, classes int, ratio float64) (train, test []int) {
	byClass := make([][]int, classes)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	for _, members := range byClass {
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		t := int(math.Round(float64(len(members)) * ratio))
		t = max(1, min(t, len(members)-1))
		test = append(test, members[:t]...)
		train = append(train, members[t:]...)
	}
	return train, test
}

func classCounts(enc *LabelEncoder, counts []int) map[string]int {
	m := make(map[string]int, len(counts))
	for i, c := range counts {
		m[string(enc.Classes[i])] = c
	}
	return m
}
