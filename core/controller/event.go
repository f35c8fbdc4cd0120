package controller

import (
	"gradlab/core/ml"
	"gradlab/core/session"
)

type EventType string

const (
	EventUpdate EventType = "Update"
	EventDone   EventType = "Done"
	EventFailed EventType = "Failed"
)

// Event is what display collaborators see: an Update, a Done carrying the
// classified result, or a Failed carrying a message.
type Event struct {
	Type    EventType                    `json:"type"`
	Epoch   int                          `json:"epoch,omitempty"`
	Loss    float64                      `json:"loss,omitempty"`
	Result  *ml.ClassifiedTrainingResult `json:"result,omitempty"`
	Matrix  *ml.ConfusionMatrix          `json:"matrix,omitempty"`
	Message string                       `json:"message,omitempty"`
}

// Display renders controller events. Show is called on the controller's
// delivery goroutine, in order; it should not block for long.
type Display interface {
	Show(ev *Event)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(ev *Event)

func (f DisplayFunc) Show(ev *Event) {
	f(ev)
}

// Recorder keeps finished runs.
type Recorder interface {
	Record(req session.TrainingRequest, res *ml.ClassifiedTrainingResult, matrix ml.ConfusionMatrix) error
}

// State is a point in time copy of the controller for display.
type State struct {
	Running      bool                         `json:"running"`
	Epoch        int                          `json:"epoch"`
	Retries      int                          `json:"retries"`
	Attempts     int                          `json:"attempts"`
	Error        string                       `json:"error,omitempty"`
	SessionID    string                       `json:"sessionId,omitempty"`
	SessionState string                       `json:"sessionState"`
	Request      *session.TrainingRequest     `json:"request,omitempty"`
	Result       *ml.ClassifiedTrainingResult `json:"result,omitempty"`
	Matrix       *ml.ConfusionMatrix          `json:"matrix,omitempty"`
}
