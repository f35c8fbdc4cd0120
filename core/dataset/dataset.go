// Package dataset holds the labeled two-class datasets the trainer runs on.
package dataset

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
)

type Name string

const (
	Circle   Name = "Circle"
	Spiral   Name = "Spiral"
	Xor      Name = "Xor"
	Gaussian Name = "Gaussian"
)

// Names lists every dataset in display order.
var Names = []Name{Circle, Spiral, Xor, Gaussian}

var ErrUnknownDataset = errors.New("unknown dataset")

func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if strings.EqualFold(string(n), s) {
			return n, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownDataset, "%q", s)
}

// FileName is the on-disk name of a saved dataset.
func (n Name) FileName() string {
	return strings.ToLower(string(n)) + ".json"
}

const (
	LabelNegative = 0
	LabelPositive = 1
)

type Observation struct {
	Features []float64 `json:"features"`
	Label    int       `json:"label"`
	// IsCorrect is only set on classified copies.
	IsCorrect *bool `json:"isCorrect,omitempty"`
}

func (o Observation) IsPositive() bool {
	return o.Label == LabelPositive
}

// Source loads a dataset by name.
type Source interface {
	Load(name Name) ([]Observation, error)
}

// Encode serializes a dataset for the engine, which reads it as JSON.
func Encode(obs []Observation) (string, error) {
	b, err := json.Marshal(obs)
	if err != nil {
		return "", errors.Wrap(err, "encode dataset")
	}
	return string(b), nil
}

func Decode(data []byte) ([]Observation, error) {
	var obs []Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, errors.Wrap(err, "decode dataset")
	}
	for i, o := range obs {
		if o.Label != LabelNegative && o.Label != LabelPositive {
			return nil, errors.Errorf("observation %d has label %d, want 0 or 1", i, o.Label)
		}
		if i > 0 && len(o.Features) != len(obs[0].Features) {
			return nil, errors.Errorf("observation %d has %d features, want %d", i, len(o.Features), len(obs[0].Features))
		}
	}
	return obs, nil
}

// TrainCount is the size of the train block: floor(size * fraction).
func TrainCount(size int, fraction float64) int {
	n := int(math.Floor(float64(size) * fraction))
	if n < 0 {
		return 0
	}
	if n > size {
		return size
	}
	return n
}
