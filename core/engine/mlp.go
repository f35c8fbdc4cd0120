package engine

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	classThreshold = 0.5
	gridSquares    = 10
	gridPadding    = 0.10
)

type observation struct {
	Features []float64 `json:"features"`
	Label    float64   `json:"label"`
}

// MLP is the built-in Binding: a fully connected network with tanh hidden
// layers and one sigmoid output, trained by full-batch gradient descent on
// the sum of squared errors.
type MLP struct {
	Seed int64
}

// NewMLPLoader returns a Loader that hands out an MLP after delay.
func NewMLPLoader(delay time.Duration, seed int64) Loader {
	return func(ctx context.Context) (Binding, error) {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "load mlp engine")
			}
		}
		return &MLP{Seed: seed}, nil
	}
}

type network struct {
	dims    []int
	weights []*mat.Dense    // dims[l+1] x dims[l]
	biases  []*mat.VecDense // dims[l+1]
}

func newNetwork(dims []int, rng *rand.Rand) *network {
	n := &network{dims: dims}
	for l := 0; l < len(dims)-1; l++ {
		in, out := dims[l], dims[l+1]
		scale := math.Sqrt(1 / float64(in))
		w := make([]float64, out*in)
		for i := range w {
			w[i] = rng.NormFloat64() * scale
		}
		n.weights = append(n.weights, mat.NewDense(out, in, w))
		n.biases = append(n.biases, mat.NewVecDense(out, nil))
	}
	return n
}

// forward returns the activations of every layer; activations[0] is x.
// x holds one sample per column.
func (n *network) forward(x *mat.Dense) []*mat.Dense {
	activations := []*mat.Dense{x}
	last := len(n.weights) - 1
	for l, w := range n.weights {
		var z mat.Dense
		z.Mul(w, activations[l])
		b := n.biases[l]
		if l == last {
			z.Apply(func(i, _ int, v float64) float64 { return sigmoid(v + b.AtVec(i)) }, &z)
		} else {
			z.Apply(func(i, _ int, v float64) float64 { return math.Tanh(v + b.AtVec(i)) }, &z)
		}
		activations = append(activations, &z)
	}
	return activations
}

// backward applies one gradient step and returns the loss before the step.
func (n *network) backward(activations []*mat.Dense, y *mat.Dense, learningRate float64) float64 {
	out := activations[len(activations)-1]
	var diff mat.Dense
	diff.Sub(out, y)
	loss := 0.0
	r, c := diff.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			loss += diff.At(i, j) * diff.At(i, j)
		}
	}

	// dL/dz at the sigmoid output
	var delta mat.Dense
	delta.Apply(func(i, j int, v float64) float64 {
		a := out.At(i, j)
		return 2 * v * a * (1 - a)
	}, &diff)

	for l := len(n.weights) - 1; l >= 0; l-- {
		var gradW mat.Dense
		gradW.Mul(&delta, activations[l].T())

		rows, _ := delta.Dims()
		gradB := make([]float64, rows)
		for i := 0; i < rows; i++ {
			gradB[i] = floats.Sum(mat.Row(nil, i, &delta))
		}

		if l > 0 {
			var prev mat.Dense
			prev.Mul(n.weights[l].T(), &delta)
			a := activations[l]
			prev.Apply(func(i, j int, v float64) float64 {
				return v * (1 - a.At(i, j)*a.At(i, j))
			}, &prev)
			delta = prev
		}

		gradW.Scale(learningRate, &gradW)
		n.weights[l].Sub(n.weights[l], &gradW)
		bias := n.biases[l]
		for i, g := range gradB {
			bias.SetVec(i, bias.AtVec(i)-learningRate*g)
		}
	}
	return loss
}

func (n *network) predict(x *mat.Dense) []float64 {
	acts := n.forward(x)
	return mat.Row(nil, 0, acts[len(acts)-1])
}

func (m *MLP) RunTraining(datasetJSON string, learningRate float64, numberOfEpochs int,
	hiddenLayerSizes []int, trainCount int, onEpoch EpochFunc) (*TrainingResult, error) {
	var data []observation
	if err := json.Unmarshal([]byte(datasetJSON), &data); err != nil {
		return nil, errors.Wrap(err, "parse dataset")
	}
	if err := checkArguments(data, learningRate, numberOfEpochs, hiddenLayerSizes, trainCount); err != nil {
		return nil, err
	}

	inputs := len(data[0].Features)
	dims := append([]int{inputs}, hiddenLayerSizes...)
	dims = append(dims, 1)
	net := newNetwork(dims, rand.New(rand.NewSource(m.Seed)))

	trainX, trainY := matrices(data[:trainCount])
	result := &TrainingResult{
		NetworkDimensions: dims,
		LossPerEpoch:      make([]float64, 0, numberOfEpochs),
	}

	var trainPreds []float64
	for epoch := 1; epoch <= numberOfEpochs; epoch++ {
		acts := net.forward(trainX)
		trainPreds = mat.Row(nil, 0, acts[len(acts)-1])
		loss := net.backward(acts, trainY, learningRate)
		result.LossPerEpoch = append(result.LossPerEpoch, loss)
		if onEpoch != nil {
			onEpoch(epoch, loss)
		}
	}

	result.Predictions = append(result.Predictions, trainPreds...)
	test := data[trainCount:]
	if len(test) > 0 {
		testX, _ := matrices(test)
		testPreds := net.predict(testX)
		result.Predictions = append(result.Predictions, testPreds...)
		result.ClassificationError = errorRate(testPreds, test)
	}

	if inputs == 2 {
		result.GridXs, result.GridYs = grid(data)
		gx := mat.NewDense(2, len(result.GridXs), nil)
		gx.SetRow(0, result.GridXs)
		gx.SetRow(1, result.GridYs)
		result.GridPredictions = net.predict(gx)
	}
	return result, nil
}

func checkArguments(data []observation, learningRate float64, numberOfEpochs int, hidden []int, trainCount int) error {
	switch {
	case len(data) == 0:
		return errors.Wrap(ErrInvalidArgument, "empty dataset")
	case len(data[0].Features) == 0:
		return errors.Wrap(ErrInvalidArgument, "observations have no features")
	case learningRate <= 0:
		return errors.Wrapf(ErrInvalidArgument, "learning rate %v", learningRate)
	case numberOfEpochs <= 0:
		return errors.Wrapf(ErrInvalidArgument, "number of epochs %d", numberOfEpochs)
	case trainCount <= 0 || trainCount > len(data):
		return errors.Wrapf(ErrInvalidArgument, "train count %d of %d", trainCount, len(data))
	}
	for _, h := range hidden {
		if h <= 0 {
			return errors.Wrapf(ErrInvalidArgument, "hidden layer size %d", h)
		}
	}
	for i, o := range data {
		if len(o.Features) != len(data[0].Features) {
			return errors.Wrapf(ErrInvalidArgument, "observation %d has %d features", i, len(o.Features))
		}
	}
	return nil
}

// matrices lays the observations out one per column.
func matrices(data []observation) (*mat.Dense, *mat.Dense) {
	inputs := len(data[0].Features)
	x := mat.NewDense(inputs, len(data), nil)
	y := mat.NewDense(1, len(data), nil)
	for j, o := range data {
		for i, f := range o.Features {
			x.Set(i, j, f)
		}
		y.Set(0, j, o.Label)
	}
	return x, y
}

func errorRate(preds []float64, data []observation) float64 {
	wrong := 0
	for i, p := range preds {
		positive := p > classThreshold
		if positive != (data[i].Label > classThreshold) {
			wrong++
		}
	}
	return float64(wrong) / float64(len(preds))
}

// grid returns the centres of a gridSquares x gridSquares grid over the
// feature bounding box, padded on every side.
func grid(data []observation) ([]float64, []float64) {
	xs := make([]float64, len(data))
	ys := make([]float64, len(data))
	for i, o := range data {
		xs[i], ys[i] = o.Features[0], o.Features[1]
	}
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)
	padX := gridPadding * (maxX - minX)
	padY := gridPadding * (maxY - minY)
	minX, maxX = minX-padX, maxX+padX
	minY, maxY = minY-padY, maxY+padY

	stepX := (maxX - minX) / gridSquares
	stepY := (maxY - minY) / gridSquares
	gxs := make([]float64, 0, gridSquares*gridSquares)
	gys := make([]float64, 0, gridSquares*gridSquares)
	for i := 0; i < gridSquares; i++ {
		for j := 0; j < gridSquares; j++ {
			gxs = append(gxs, minX+(float64(i)+0.5)*stepX)
			gys = append(gys, minY+(float64(j)+0.5)*stepY)
		}
	}
	return gxs, gys
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
