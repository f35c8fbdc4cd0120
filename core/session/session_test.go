package session

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradlab/common"
	"gradlab/core/msgbus"
	"gradlab/test/mock"
)

type collector struct {
	mutex sync.Mutex
	msgs  []*msgbus.BusMessage
}

func (c *collector) HandleMsgFromMsgBus(msg *msgbus.BusMessage) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *collector) all() []*msgbus.BusMessage {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := make([]*msgbus.BusMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *collector) terminals() []*msgbus.BusMessage {
	var out []*msgbus.BusMessage
	for _, m := range c.all() {
		if m.MsgType.IsTerminal() {
			out = append(out, m)
		}
	}
	return out
}

func (c *collector) waitTerminals(t *testing.T, n int) []*msgbus.BusMessage {
	require.Eventually(t, func() bool { return len(c.terminals()) >= n }, 2*time.Second, 2*time.Millisecond)
	return c.all()
}

func newRequest(id uint64, epochs int) *Request {
	return &Request{
		RequestID: id,
		Request: TrainingRequest{
			DatasetName:      "Xor",
			LearningRate:     0.1,
			NumberOfEpochs:   epochs,
			HiddenLayerSizes: []int{3},
			TrainFraction:    0.5,
		},
		DatasetJSON: `[{"features":[0,0],"label":0},{"features":[1,1],"label":1}]`,
		TrainCount:  1,
	}
}

func TestFirstRequestFailsFastWhileEngineLoads(t *testing.T) {
	eng := &mock.MockEngine{Losses: []float64{3, 2, 1}}
	loader := mock.NewGatedLoader(eng)
	s := New(loader.Load, mock.GetMockLogger("session"))
	defer s.Terminate()
	c := &collector{}
	s.Attach(c)

	assert.Equal(t, Idle, s.State())
	s.Post(newRequest(1, 3))
	msgs := c.waitTerminals(t, 1)

	require.Len(t, msgs, 1)
	assert.Equal(t, common.LocalSessionMsg_Failed, msgs[0].MsgType)
	assert.Equal(t, s.ID(), msgs[0].ChannelID)
	failed := msgs[0].Msg.(*Failed)
	assert.Equal(t, uint64(1), failed.RequestID)
	assert.Equal(t, EngineNotReady, failed.Kind)
	assert.Equal(t, EngineLoading, s.State())

	// still loading: fail fast again without a second load
	s.Post(newRequest(2, 3))
	c.waitTerminals(t, 2)
	assert.Equal(t, 1, loader.Loads())
	assert.Equal(t, 0, eng.Calls())

	close(loader.Gate)
	require.Eventually(t, func() bool { return s.State() == Ready }, time.Second, time.Millisecond)

	s.Post(newRequest(3, 3))
	msgs = c.waitTerminals(t, 3)[2:]
	require.Len(t, msgs, 4)
	for i, m := range msgs[:3] {
		require.Equal(t, common.LocalSessionMsg_Update, m.MsgType)
		u := m.Msg.(*Update)
		assert.Equal(t, uint64(3), u.RequestID)
		assert.Equal(t, i+1, u.Epoch)
		assert.Equal(t, float64(3-i), u.Loss)
	}
	require.Equal(t, common.LocalSessionMsg_Done, msgs[3].MsgType)
	done := msgs[3].Msg.(*Done)
	assert.Equal(t, uint64(3), done.RequestID)
	assert.Equal(t, []float64{3, 2, 1}, done.Result.LossPerEpoch)
	assert.Len(t, done.Result.Predictions, 2)
	assert.GreaterOrEqual(t, done.TimeToTrainMs, 0.0)
	assert.Equal(t, 1, loader.Loads())
}

func TestEngineErrorBecomesFailed(t *testing.T) {
	cases := map[string]*mock.MockEngine{
		"error":  {Losses: []float64{1, 0.5}, Err: errors.New("boom")},
		"nil":    {Losses: []float64{1, 0.5}, NilResult: true},
		"panics": {Panic: true},
	}
	for name, eng := range cases {
		t.Run(name, func(t *testing.T) {
			s := New(mock.ReadyLoader(eng), mock.GetMockLogger("session"))
			defer s.Terminate()
			c := &collector{}
			s.Attach(c)

			s.Post(newRequest(1, 2))
			c.waitTerminals(t, 1)
			require.Eventually(t, func() bool { return s.State() == Ready }, time.Second, time.Millisecond)

			s.Post(newRequest(2, 2))
			msgs := c.waitTerminals(t, 2)
			last := msgs[len(msgs)-1]
			require.Equal(t, common.LocalSessionMsg_Failed, last.MsgType)
			f := last.Msg.(*Failed)
			assert.Equal(t, uint64(2), f.RequestID)
			assert.Equal(t, EngineCallFailed, f.Kind)
			assert.NotEmpty(t, f.Message)
			assert.Len(t, c.terminals(), 2)
		})
	}
}

func TestFailedLoadReturnsToIdle(t *testing.T) {
	loader := mock.NewGatedLoader(&mock.MockEngine{})
	loader.Err = errors.New("no engine")
	close(loader.Gate)
	s := New(loader.Load, mock.GetMockLogger("session"))
	defer s.Terminate()
	c := &collector{}
	s.Attach(c)

	s.Post(newRequest(1, 1))
	c.waitTerminals(t, 1)
	require.Eventually(t, func() bool { return s.State() == Idle && loader.Loads() == 1 }, time.Second, time.Millisecond)

	s.Post(newRequest(2, 1))
	c.waitTerminals(t, 2)
	require.Eventually(t, func() bool { return loader.Loads() == 2 }, time.Second, time.Millisecond)
}

func TestTerminateDropsInFlightMessages(t *testing.T) {
	eng := &mock.MockEngine{Losses: []float64{1, 1}, Gate: make(chan struct{})}
	s := New(mock.ReadyLoader(eng), mock.GetMockLogger("session"))
	c := &collector{}
	s.Attach(c)

	s.Post(newRequest(1, 2))
	c.waitTerminals(t, 1)
	require.Eventually(t, func() bool { return s.State() == Ready }, time.Second, time.Millisecond)

	s.Post(newRequest(2, 2))
	require.Eventually(t, func() bool { return len(c.all()) == 3 }, time.Second, time.Millisecond)
	s.Terminate()
	close(eng.Gate)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, c.all(), 3)
	assert.Len(t, c.terminals(), 1)

	s.Post(newRequest(3, 2))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, eng.Calls())
}
