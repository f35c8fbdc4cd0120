package ml

import "gradlab/core/dataset"

// Type_Class is the class an engine prediction is judged to belong to.
type Type_Class int

const (
	PN Type_Class = dataset.LabelPositive
	NN Type_Class = dataset.LabelNegative
)

// Threshold splits predictions; a prediction equal to it is negative.
const Threshold = 0.5

func Judge(prediction float64) Type_Class {
	if prediction > Threshold {
		return PN
	}
	return NN
}

// IsCorrect reports whether prediction agrees with label.
func IsCorrect(prediction float64, label int) bool {
	return Judge(prediction) == Type_Class(label)
}
