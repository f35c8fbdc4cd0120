// Package engine defines the numerical training engine the sessions drive.
//
// A Binding is opaque to the rest of gradlab: it receives the dataset as JSON,
// trains, and calls back once per completed epoch. Loading a binding is
// asynchronous and happens at most once per owner.
package engine

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNoResult        = errors.New("engine returned no result")
	ErrInvalidArgument = errors.New("invalid engine argument")
)

// EpochFunc is called synchronously by the engine after every epoch.
type EpochFunc func(epoch int, loss float64)

type Binding interface {
	RunTraining(datasetJSON string, learningRate float64, numberOfEpochs int,
		hiddenLayerSizes []int, trainCount int, onEpoch EpochFunc) (*TrainingResult, error)
}

// Loader produces a ready Binding; it may take a while.
type Loader func(ctx context.Context) (Binding, error)

// TrainingResult is the raw engine output.
type TrainingResult struct {
	LossPerEpoch      []float64 `json:"lossPerEpoch"`
	NetworkDimensions []int     `json:"networkDimensions"`
	// Predictions holds the train block first, then the test block.
	Predictions         []float64 `json:"predictions"`
	ClassificationError float64   `json:"classificationError"`

	// decision boundary, one prediction per grid cell centre
	GridXs          []float64 `json:"gridXs,omitempty"`
	GridYs          []float64 `json:"gridYs,omitempty"`
	GridPredictions []float64 `json:"gridPredictions,omitempty"`
}

// NumEpochs is the number of epochs the engine completed.
func (r *TrainingResult) NumEpochs() int {
	return len(r.LossPerEpoch)
}

// FinalLoss is the loss of the last epoch, 0 if none ran.
func (r *TrainingResult) FinalLoss() float64 {
	if len(r.LossPerEpoch) == 0 {
		return 0
	}
	return r.LossPerEpoch[len(r.LossPerEpoch)-1]
}
