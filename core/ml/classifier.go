package ml

import (
	"github.com/pkg/errors"

	"gradlab/core/dataset"
	"gradlab/core/engine"
)

var ErrShapeMismatch = errors.New("shape mismatch")

// PartitionResult sorts one partition into the four confusion categories.
// Every observation of the partition is in exactly one of them.
type PartitionResult struct {
	TruePositives    []dataset.Observation `json:"truePositives"`
	TrueNegatives    []dataset.Observation `json:"trueNegatives"`
	FalsePositives   []dataset.Observation `json:"falsePositives"`
	FalseNegatives   []dataset.Observation `json:"falseNegatives"`
	ObservationCount int                   `json:"observationCount"`
}

type ClassifiedTrainingResult struct {
	engine.TrainingResult
	DatasetName    dataset.Name    `json:"datasetName,omitempty"`
	TrainPartition PartitionResult `json:"trainPartition"`
	TestPartition  PartitionResult `json:"testPartition"`
	TimeToTrainMs  float64         `json:"timeToTrainMs"`
}

// DatasetSize is the number of classified observations.
func (r *ClassifiedTrainingResult) DatasetSize() int {
	return r.TrainPartition.ObservationCount + r.TestPartition.ObservationCount
}

// Classify aligns predictions[i] with data[i]; the first trainCount
// observations form the train partition, the rest the test partition.
// The input slices are left untouched.
func Classify(raw *engine.TrainingResult, data []dataset.Observation, trainCount int) (*ClassifiedTrainingResult, error) {
	if raw == nil {
		return nil, errors.Wrap(engine.ErrNoResult, "classify")
	}
	if len(raw.Predictions) != len(data) {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d predictions for %d observations",
			len(raw.Predictions), len(data))
	}
	if trainCount < 0 || trainCount > len(data) {
		return nil, errors.Wrapf(ErrShapeMismatch, "train count %d for %d observations",
			trainCount, len(data))
	}

	return &ClassifiedTrainingResult{
		TrainingResult: *raw,
		TrainPartition: partition(raw.Predictions[:trainCount], data[:trainCount]),
		TestPartition:  partition(raw.Predictions[trainCount:], data[trainCount:]),
	}, nil
}

func partition(preds []float64, data []dataset.Observation) PartitionResult {
	pr := PartitionResult{ObservationCount: len(data)}
	for i, pred := range preds {
		obs := data[i]
		correct := IsCorrect(pred, obs.Label)
		obs.IsCorrect = &correct

		switch {
		case correct && obs.IsPositive():
			pr.TruePositives = append(pr.TruePositives, obs)
		case correct:
			pr.TrueNegatives = append(pr.TrueNegatives, obs)
		case !obs.IsPositive():
			// predicted positive for a negative example
			pr.FalsePositives = append(pr.FalsePositives, obs)
		default:
			pr.FalseNegatives = append(pr.FalseNegatives, obs)
		}
	}
	return pr
}
