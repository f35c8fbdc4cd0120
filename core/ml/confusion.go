package ml

type Cell struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type ConfusionMatrix struct {
	TruePositives  Cell `json:"truePositives"`
	TrueNegatives  Cell `json:"trueNegatives"`
	FalsePositives Cell `json:"falsePositives"`
	FalseNegatives Cell `json:"falseNegatives"`
}

// BuildConfusionMatrix summarizes the test partition of r.
func BuildConfusionMatrix(r *ClassifiedTrainingResult) ConfusionMatrix {
	return r.TestPartition.ConfusionMatrix()
}

func (p *PartitionResult) ConfusionMatrix() ConfusionMatrix {
	return ConfusionMatrix{
		TruePositives:  newCell(len(p.TruePositives), p.ObservationCount),
		TrueNegatives:  newCell(len(p.TrueNegatives), p.ObservationCount),
		FalsePositives: newCell(len(p.FalsePositives), p.ObservationCount),
		FalseNegatives: newCell(len(p.FalseNegatives), p.ObservationCount),
	}
}

func newCell(count, total int) Cell {
	if total == 0 {
		return Cell{Count: count}
	}
	return Cell{Count: count, Percentage: float64(count) / float64(total)}
}

// Accuracy is the share of correct predictions.
func (m ConfusionMatrix) Accuracy() float64 {
	return m.TruePositives.Percentage + m.TrueNegatives.Percentage
}

func (m ConfusionMatrix) Total() int {
	return m.TruePositives.Count + m.TrueNegatives.Count + m.FalsePositives.Count + m.FalseNegatives.Count
}
