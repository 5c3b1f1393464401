package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ModelParams configures softmax regression training.
type ModelParams struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultModelParams returns the parameters used by Train when none are given.
func DefaultModelParams() ModelParams {
	return ModelParams{Epochs: 400, LearningRate: 0.5, L2: 1e-3}
}

// Softmax is a multinomial logistic regression over scaled features.
type Softmax struct {
	Weights [][]float64 `json:"weights"` // [class][feature]
	Bias    []float64   `json:"bias"`
}

// FitSoftmax trains with deterministic full-batch gradient descent from zero weights.
func FitSoftmax(x [][]float64, y []int, classes int, p ModelParams) (*Softmax, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("fit softmax: %d rows, %d targets", len(x), len(y))
	}
	if classes < 2 {
		return nil, fmt.Errorf("fit softmax: need at least 2 classes, got %d", classes)
	}
	if p.Epochs <= 0 {
		p = DefaultModelParams()
	}
	n, d := len(x), len(x[0])
	xm := mat.NewDense(n, d, nil)
	for i, row := range x {
		if len(row) != d {
			return nil, fmt.Errorf("fit softmax: ragged row of length %d, want %d", len(row), d)
		}
		xm.SetRow(i, row)
	}

	w := mat.NewDense(classes, d, nil)
	bias := make([]float64, classes)
	var logits, grad mat.Dense
	gradB := make([]float64, classes)
	step := p.LearningRate / float64(n)

	for epoch := 0; epoch < p.Epochs; epoch++ {
		// logits becomes the residual P - Y in place.
		logits.Mul(xm, w.T())
		for i := range n {
			row := logits.RawRowView(i)
			floats.Add(row, bias)
			softmaxInPlace(row)
			row[y[i]] -= 1
		}
		grad.Mul(logits.T(), xm)
		for k := range classes {
			gradB[k] = floats.Sum(mat.Col(nil, k, &logits))
		}

		w.Scale(1-p.LearningRate*p.L2, w)
		grad.Scale(-step, &grad)
		w.Add(w, &grad)
		floats.AddScaled(bias, -step, gradB)
	}

	m := &Softmax{Weights: make([][]float64, classes), Bias: bias}
	for k := range m.Weights {
		m.Weights[k] = mat.Row(nil, k, w)
	}
	return m, nil
}

func softmaxInPlace(z []float64) {
	lse := floats.LogSumExp(z)
	for k := range z {
		z[k] = math.Exp(z[k] - lse)
	}
}

// Predict returns the index of the most probable class. Ties go to the lower index.
func (m *Softmax) Predict(row []float64) int {
	best, bestZ := 0, math.Inf(-1)
	for k, w := range m.Weights {
		if z := m.Bias[k] + floats.Dot(w, row); z > bestZ {
			best, bestZ = k, z
		}
	}
	return best
}

func (m *Softmax) validate(classes, dim int) error {
	if len(m.Weights) != classes || len(m.Bias) != classes {
		return fmt.Errorf("model has %d/%d classes, want %d", len(m.Weights), len(m.Bias), classes)
	}
	for k, w := range m.Weights {
		if len(w) != dim {
			return fmt.Errorf("model class %d has %d weights, want %d", k, len(w), dim)
		}
	}
	return nil
}
