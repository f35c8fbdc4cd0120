// Package controller drives compute sessions on behalf of the user.
//
// The Controller owns one session at a time, turns user runs into session
// requests, retries requests the engine could not serve, classifies the
// final result and forwards everything to the registered displays. It never
// blocks on the engine: responses arrive on the session's response topic.
package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gradlab/common"
	"gradlab/core/dataset"
	"gradlab/core/engine"
	"gradlab/core/ml"
	"gradlab/core/msgbus"
	"gradlab/core/session"
)

const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 500 * time.Millisecond
)

var (
	ErrRunInProgress    = errors.New("a training run is already in progress")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrEmptyDataset     = errors.New("dataset is empty")
)

type Config struct {
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() *Config {
	return &Config{MaxRetries: DefaultMaxRetries, RetryDelay: DefaultRetryDelay}
}

type Controller struct {
	cfg      Config
	loader   engine.Loader
	source   dataset.Source
	recorder Recorder
	log      common.Logger

	mutex    sync.Mutex
	displays []Display
	sess     *session.Session
	// generation changes on every Reset and invalidates pending retries
	generation uint64
	lastID     uint64

	current  *session.Request
	request  *session.TrainingRequest
	data     []dataset.Observation
	running  bool
	epoch    int
	retries  int
	attempts int
	lastErr  string
	result   *ml.ClassifiedTrainingResult
	retry    *time.Timer
}

func New(cfg *Config, loader engine.Loader, source dataset.Source, log common.Logger) *Controller {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = common.GetLogger(common.MODULE_CONTROLLER)
	}
	return &Controller{
		cfg:    *cfg,
		loader: loader,
		source: source,
		log:    log,
	}
}

func (c *Controller) AddDisplay(d Display) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.displays = append(c.displays, d)
}

func (c *Controller) SetRecorder(r Recorder) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.recorder = r
}

// Run starts a training run and returns without waiting for it.
func (c *Controller) Run(req session.TrainingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	name, _ := dataset.ParseName(string(req.DatasetName))
	req.DatasetName = name
	req.HiddenLayerSizes = append([]int(nil), req.HiddenLayerSizes...)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.running {
		return ErrRunInProgress
	}

	data, err := c.source.Load(name)
	if err != nil {
		return errors.Wrapf(err, "load dataset %s", name)
	}
	if len(data) == 0 {
		return errors.Wrapf(ErrEmptyDataset, "%s", name)
	}
	datasetJSON, err := dataset.Encode(data)
	if err != nil {
		return err
	}

	c.ensureSession()
	c.clearRun()
	c.request = &req
	c.data = data
	c.running = true
	c.current = &session.Request{
		RequestID:   c.nextID(),
		Request:     req,
		DatasetJSON: datasetJSON,
		TrainCount:  dataset.TrainCount(len(data), req.TrainFraction),
	}
	c.attempts = 1
	c.log.Infof("run request[%d] on %s: lr=%v epochs=%d hidden=%v train=%d/%d",
		c.current.RequestID, name, req.LearningRate, req.NumberOfEpochs,
		req.HiddenLayerSizes, c.current.TrainCount, len(data))
	c.sess.Post(c.current)
	return nil
}

// Reset discards every result and counter and replaces the session, so no
// response of an earlier run can reach a later one.
func (c *Controller) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.generation++
	c.clearRun()
	c.request = nil
	if c.sess != nil {
		c.sess.Terminate()
		c.sess = nil
	}
	c.ensureSession()
	c.log.Infof("controller reset, new session[%s]", c.sess.ID())
}

// Close terminates the session for good.
func (c *Controller) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.generation++
	c.clearRun()
	if c.sess != nil {
		c.sess.Terminate()
		c.sess = nil
	}
}

func (c *Controller) Snapshot() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	st := State{
		Running:      c.running,
		Epoch:        c.epoch,
		Retries:      c.retries,
		Attempts:     c.attempts,
		Error:        c.lastErr,
		SessionState: session.Idle.String(),
		Result:       c.result,
	}
	if c.request != nil {
		req := *c.request
		st.Request = &req
	}
	if c.sess != nil {
		st.SessionID = c.sess.ID()
		st.SessionState = c.sess.State().String()
	}
	if c.result != nil {
		m := ml.BuildConfusionMatrix(c.result)
		st.Matrix = &m
	}
	return st
}

// ConfusionMatrix is derived from the current result on every call.
func (c *Controller) ConfusionMatrix() (ml.ConfusionMatrix, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.result == nil {
		return ml.ConfusionMatrix{}, false
	}
	return ml.BuildConfusionMatrix(c.result), true
}

func (c *Controller) HandleMsgFromMsgBus(msg *msgbus.BusMessage) error {
	ev := c.handle(msg)
	if ev == nil {
		return nil
	}

	c.mutex.Lock()
	displays := make([]Display, len(c.displays))
	copy(displays, c.displays)
	c.mutex.Unlock()
	for _, d := range displays {
		d.Show(ev)
	}
	return nil
}

func (c *Controller) handle(msg *msgbus.BusMessage) *Event {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.sess == nil || msg.ChannelID != c.sess.ID() {
		return nil
	}

	switch m := msg.Msg.(type) {
	case *session.Update:
		if !c.isCurrent(m.RequestID) {
			return nil
		}
		c.epoch = m.Epoch
		return &Event{Type: EventUpdate, Epoch: m.Epoch, Loss: m.Loss}
	case *session.Done:
		if !c.isCurrent(m.RequestID) {
			return nil
		}
		return c.handleDone(m)
	case *session.Failed:
		if !c.isCurrent(m.RequestID) {
			return nil
		}
		return c.handleFailed(m)
	default:
		c.log.Warnf("unexpected %s payload %T", msg.MsgType, msg.Msg)
		return nil
	}
}

func (c *Controller) handleDone(m *session.Done) *Event {
	trainCount := c.current.TrainCount
	c.current = nil
	c.running = false

	res, err := ml.Classify(m.Result, c.data, trainCount)
	if err != nil {
		// not transient, never retried
		c.lastErr = fmt.Sprintf("classify result: %s", err)
		c.log.Errorf("request[%d] %s", m.RequestID, c.lastErr)
		return &Event{Type: EventFailed, Message: c.lastErr}
	}
	res.TimeToTrainMs = m.TimeToTrainMs
	res.DatasetName = c.request.DatasetName
	c.result = res

	matrix := ml.BuildConfusionMatrix(res)
	c.log.Infof("request[%d] done in %.1fms, final loss %.4f, test accuracy %.2f",
		m.RequestID, m.TimeToTrainMs, res.FinalLoss(), matrix.Accuracy())
	if c.recorder != nil {
		if err := c.recorder.Record(*c.request, res, matrix); err != nil {
			c.log.Warnf("record run: %s", err)
		}
	}
	return &Event{Type: EventDone, Result: res, Matrix: &matrix}
}

func (c *Controller) handleFailed(m *session.Failed) *Event {
	if c.retries < c.cfg.MaxRetries {
		c.retries++
		next := *c.current
		next.RequestID = c.nextID()
		c.current = &next
		c.log.Infof("request[%d] failed (%s: %s), retry %d/%d as request[%d] in %s",
			m.RequestID, m.Kind, m.Message, c.retries, c.cfg.MaxRetries, next.RequestID, c.cfg.RetryDelay)

		generation, id := c.generation, next.RequestID
		c.retry = time.AfterFunc(c.cfg.RetryDelay, func() { c.resend(generation, id) })
		return nil
	}

	c.current = nil
	c.running = false
	c.lastErr = errors.Wrapf(ErrRetriesExhausted, "after %d retries: %s", c.retries, m.Message).Error()
	c.log.Errorf("request[%d] %s", m.RequestID, c.lastErr)
	return &Event{Type: EventFailed, Message: c.lastErr}
}

func (c *Controller) resend(generation, id uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if generation != c.generation || !c.isCurrent(id) || c.sess == nil {
		return
	}
	c.attempts++
	c.sess.Post(c.current)
}

func (c *Controller) isCurrent(id uint64) bool {
	return c.current != nil && c.current.RequestID == id
}

func (c *Controller) nextID() uint64 {
	c.lastID++
	return c.lastID
}

func (c *Controller) ensureSession() {
	if c.sess != nil {
		return
	}
	c.sess = session.New(c.loader, c.log)
	c.sess.Attach(c)
}

func (c *Controller) clearRun() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.current = nil
	c.data = nil
	c.running = false
	c.epoch = 0
	c.retries = 0
	c.attempts = 0
	c.lastErr = ""
	c.result = nil
}
