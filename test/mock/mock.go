package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gradlab/core/engine"
)

type MockLog struct {
	Name string
}

func (l *MockLog) Debug(args ...interface{}) {
	fmt.Println(args...)
}
func (l *MockLog) Debugf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func (l *MockLog) Info(args ...interface{}) {
	fmt.Println(args...)
}

func (l *MockLog) Infof(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func (l *MockLog) Warn(args ...interface{}) {
	fmt.Println(args...)
}

func (l *MockLog) Warnf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func (l *MockLog) Error(args ...interface{}) {
	fmt.Println(args...)
}

func (l *MockLog) Errorf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func GetMockLogger(name string) *MockLog {
	return &MockLog{name}
}

// MockEngine is a scripted engine.Binding.
type MockEngine struct {
	// Losses are reported one per epoch, up to the requested epoch count.
	Losses []float64
	// Predictions is returned as is; nil means 0.9 for every observation.
	Predictions []float64
	Err         error
	NilResult   bool
	Panic       bool
	// Gate, if set, blocks the call after the last epoch until closed.
	Gate chan struct{}

	calls int32
}

func (m *MockEngine) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

func (m *MockEngine) RunTraining(datasetJSON string, learningRate float64, numberOfEpochs int,
	hiddenLayerSizes []int, trainCount int, onEpoch engine.EpochFunc) (*engine.TrainingResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.Panic {
		panic("mock engine panic")
	}

	res := &engine.TrainingResult{
		NetworkDimensions: append(append([]int{2}, hiddenLayerSizes...), 1),
	}
	for epoch := 1; epoch <= numberOfEpochs && epoch <= len(m.Losses); epoch++ {
		res.LossPerEpoch = append(res.LossPerEpoch, m.Losses[epoch-1])
		if onEpoch != nil {
			onEpoch(epoch, m.Losses[epoch-1])
		}
	}
	if m.Gate != nil {
		<-m.Gate
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.NilResult {
		return nil, nil
	}

	res.Predictions = m.Predictions
	if res.Predictions == nil {
		res.Predictions = make([]float64, countObservations(datasetJSON))
		for i := range res.Predictions {
			res.Predictions[i] = 0.9
		}
	}
	return res, nil
}

// countObservations counts the top level objects of a JSON array of
// observations without decoding them.
func countObservations(datasetJSON string) int {
	depth, n := 0, 0
	for _, c := range datasetJSON {
		switch c {
		case '{':
			if depth == 1 {
				n++
			}
			depth++
		case '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return n
}

// ReadyLoader hands out b immediately.
func ReadyLoader(b engine.Binding) engine.Loader {
	return func(ctx context.Context) (engine.Binding, error) {
		return b, nil
	}
}

// GatedLoader hands out b once gate is closed and counts load attempts.
type GatedLoader struct {
	Binding engine.Binding
	Gate    chan struct{}
	Err     error

	mutex sync.Mutex
	loads int
}

func NewGatedLoader(b engine.Binding) *GatedLoader {
	return &GatedLoader{Binding: b, Gate: make(chan struct{})}
}

func (g *GatedLoader) Loads() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.loads
}

func (g *GatedLoader) Load(ctx context.Context) (engine.Binding, error) {
	g.mutex.Lock()
	g.loads++
	g.mutex.Unlock()

	select {
	case <-g.Gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Binding, nil
}

// NeverReadyLoader blocks until the owning session is terminated.
func NeverReadyLoader(ctx context.Context) (engine.Binding, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
