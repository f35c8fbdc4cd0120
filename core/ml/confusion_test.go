package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradlab/core/engine"
)

func TestConfusionMatrixPercentagesSumToOne(t *testing.T) {
	data := observations(1, 0, 1, 0, 1, 1, 0, 0, 1)
	raw := &engine.TrainingResult{Predictions: []float64{0.9, 0.1, 0.8, 0.7, 0.2, 0.6, 0.4, 0.9, 0.1}}

	res, err := Classify(raw, data, 2)
	require.NoError(t, err)
	m := BuildConfusionMatrix(res)

	assert.Equal(t, 7, m.Total())
	sum := m.TruePositives.Percentage + m.TrueNegatives.Percentage +
		m.FalsePositives.Percentage + m.FalseNegatives.Percentage
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 2, m.TruePositives.Count)
	assert.InDelta(t, 2.0/7.0, m.TruePositives.Percentage, 1e-12)
}

func TestConfusionMatrixEmptyTestPartition(t *testing.T) {
	data := observations(1, 0, 1)
	res, err := Classify(&engine.TrainingResult{Predictions: []float64{0.9, 0.1, 0.2}}, data, 3)
	require.NoError(t, err)

	m := BuildConfusionMatrix(res)
	assert.Equal(t, ConfusionMatrix{}, m)
	for _, c := range []Cell{m.TruePositives, m.TrueNegatives, m.FalsePositives, m.FalseNegatives} {
		assert.False(t, math.IsNaN(c.Percentage))
	}
	assert.Equal(t, 0.0, m.Accuracy())
}

func TestConfusionMatrixUsesTestPartitionOnly(t *testing.T) {
	data := observations(1, 1, 1, 0)
	res, err := Classify(&engine.TrainingResult{Predictions: []float64{0.1, 0.1, 0.9, 0.9}}, data, 2)
	require.NoError(t, err)

	m := BuildConfusionMatrix(res)
	assert.Equal(t, 0, m.FalseNegatives.Count)
	assert.Equal(t, Cell{Count: 1, Percentage: 0.5}, m.TruePositives)
	assert.Equal(t, Cell{Count: 1, Percentage: 0.5}, m.FalsePositives)

	train := res.TrainPartition.ConfusionMatrix()
	assert.Equal(t, Cell{Count: 2, Percentage: 1}, train.FalseNegatives)
}
