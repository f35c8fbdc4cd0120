// Package session runs training requests in a background execution context.
//
// A Session owns its message bus and its engine binding. Requests arrive on
// the request topic and are handled one at a time on that topic's goroutine,
// so the blocking engine call never runs on the caller's goroutine. For every
// request the session publishes zero or more Update messages followed by
// exactly one Done or Failed message.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gradlab/common"
	"gradlab/core/engine"
	"gradlab/core/msgbus"
)

type State int32

const (
	Idle State = iota
	EngineLoading
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case EngineLoading:
		return "EngineLoading"
	case Ready:
		return "Ready"
	}
	return "Unknown"
}

const notReadyMessage = "engine not loaded yet, retry recommended"

type Session struct {
	id     string
	bus    msgbus.MessageBus
	loader engine.Loader
	log    common.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mutex   sync.Mutex
	state   State
	binding engine.Binding // assigned once, on the transition to Ready

	terminated atomic.Bool
	lastEpoch  int
}

func New(loader engine.Loader, log common.Logger) *Session {
	if log == nil {
		log = common.GetLogger(common.MODULE_SESSION)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     uuid.NewString(),
		bus:    msgbus.New(),
		loader: loader,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	s.bus.Register(common.LocalSessionMsg_Request, s)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Attach registers sub for every response the session publishes.
func (s *Session) Attach(sub msgbus.Subscriber) {
	s.bus.Register(common.LocalResponseMsg, sub)
}

// Post hands req to the session and returns immediately.
func (s *Session) Post(req *Request) {
	if s.terminated.Load() {
		return
	}
	s.bus.Publish(s.id, common.LocalSessionMsg_Request, req)
}

// Terminate abandons the session. A training call in flight keeps running
// but nothing it produces is delivered.
func (s *Session) Terminate() {
	if s.terminated.Swap(true) {
		return
	}
	s.cancel()
	s.bus.Reset()
	s.log.Debugf("session[%s] terminated", s.id)
}

func (s *Session) HandleMsgFromMsgBus(msg *msgbus.BusMessage) error {
	req, ok := msg.Msg.(*Request)
	if !ok {
		return fmt.Errorf("session[%s] got unexpected payload %T", s.id, msg.Msg)
	}
	s.handle(req)
	return nil
}

func (s *Session) handle(req *Request) {
	binding, ready := s.readyBinding()
	if !ready {
		s.log.Infof("session[%s] request[%d]: %s", s.id, req.RequestID, notReadyMessage)
		s.publish(common.LocalSessionMsg_Failed, &Failed{
			RequestID: req.RequestID,
			Kind:      EngineNotReady,
			Message:   notReadyMessage,
		})
		return
	}

	s.lastEpoch = 0
	start := time.Now()
	result, err := s.run(binding, req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err == nil && result == nil {
		err = engine.ErrNoResult
	}
	if err != nil {
		s.log.Warnf("session[%s] request[%d] failed after %.1fms: %s", s.id, req.RequestID, elapsed, err)
		s.publish(common.LocalSessionMsg_Failed, &Failed{
			RequestID: req.RequestID,
			Kind:      EngineCallFailed,
			Message:   err.Error(),
		})
		return
	}

	s.log.Infof("session[%s] request[%d] trained %d epochs in %.1fms",
		s.id, req.RequestID, result.NumEpochs(), elapsed)
	s.publish(common.LocalSessionMsg_Done, &Done{
		RequestID:     req.RequestID,
		Result:        result,
		TimeToTrainMs: elapsed,
	})
}

func (s *Session) run(binding engine.Binding, req *Request) (result *engine.TrainingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, errors.Errorf("engine panic: %v", r)
		}
	}()

	tr := req.Request
	return binding.RunTraining(req.DatasetJSON, tr.LearningRate, tr.NumberOfEpochs,
		tr.HiddenLayerSizes, req.TrainCount, func(epoch int, loss float64) {
			if epoch < s.lastEpoch {
				s.log.Warnf("session[%s] dropped out of order epoch %d after %d", s.id, epoch, s.lastEpoch)
				return
			}
			s.lastEpoch = epoch
			s.publish(common.LocalSessionMsg_Update, &Update{
				RequestID: req.RequestID,
				Epoch:     epoch,
				Loss:      loss,
			})
		})
}

// readyBinding returns the binding once loaded. Otherwise it starts the load
// if none is running and reports not ready.
func (s *Session) readyBinding() (engine.Binding, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch s.state {
	case Ready:
		return s.binding, true
	case Idle:
		s.state = EngineLoading
		go s.load()
	}
	return nil, false
}

func (s *Session) load() {
	s.log.Debugf("session[%s] loading engine", s.id)
	binding, err := s.loader(s.ctx)
	if err == nil && binding == nil {
		err = errors.New("loader returned no binding")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err != nil {
		s.state = Idle
		s.log.Errorf("session[%s] engine load failed: %s", s.id, err)
		return
	}
	s.binding = binding
	s.state = Ready
	s.log.Infof("session[%s] engine ready", s.id)
}

func (s *Session) publish(t common.LocalMsgType, payload interface{}) {
	if s.terminated.Load() {
		return
	}
	s.bus.Publish(s.id, t, payload)
}
