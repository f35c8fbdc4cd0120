package session

import (
	"github.com/pkg/errors"

	"gradlab/core/dataset"
	"gradlab/core/engine"
)

var ErrInvalidRequest = errors.New("invalid training request")

// TrainingRequest fully determines one compute run.
type TrainingRequest struct {
	DatasetName      dataset.Name `json:"datasetName"`
	LearningRate     float64      `json:"learningRate"`
	NumberOfEpochs   int          `json:"numberOfEpochs"`
	HiddenLayerSizes []int        `json:"hiddenLayerSizes"`
	TrainFraction    float64      `json:"trainFraction"`
}

func (r *TrainingRequest) Validate() error {
	if _, err := dataset.ParseName(string(r.DatasetName)); err != nil {
		return errors.Wrap(ErrInvalidRequest, err.Error())
	}
	if r.LearningRate <= 0 {
		return errors.Wrapf(ErrInvalidRequest, "learning rate must be positive, got %v", r.LearningRate)
	}
	if r.NumberOfEpochs <= 0 {
		return errors.Wrapf(ErrInvalidRequest, "number of epochs must be positive, got %d", r.NumberOfEpochs)
	}
	for i, h := range r.HiddenLayerSizes {
		if h <= 0 {
			return errors.Wrapf(ErrInvalidRequest, "hidden layer %d has size %d", i, h)
		}
	}
	if r.TrainFraction <= 0 || r.TrainFraction >= 1 {
		return errors.Wrapf(ErrInvalidRequest, "train fraction must be in (0,1), got %v", r.TrainFraction)
	}
	return nil
}

// Request crosses into the session. The dataset travels serialized: the
// session shares nothing with its caller.
type Request struct {
	RequestID   uint64
	Request     TrainingRequest
	DatasetJSON string
	TrainCount  int
}

type Update struct {
	RequestID uint64
	Epoch     int
	Loss      float64
}

type Done struct {
	RequestID     uint64
	Result        *engine.TrainingResult
	TimeToTrainMs float64
}

type FailureKind int

const (
	EngineNotReady FailureKind = iota
	EngineCallFailed
)

func (k FailureKind) String() string {
	switch k {
	case EngineNotReady:
		return "EngineNotReady"
	case EngineCallFailed:
		return "EngineCallFailed"
	}
	return "Unknown"
}

type Failed struct {
	RequestID uint64
	Kind      FailureKind
	Message   string
}
