package msgbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradlab/common"
)

type recorder struct {
	mutex sync.Mutex
	msgs  []*BusMessage
}

func (r *recorder) HandleMsgFromMsgBus(msg *BusMessage) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) received() []*BusMessage {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]*BusMessage, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func TestPublishKeepsOrder(t *testing.T) {
	bus := New()
	defer bus.Reset()
	r := &recorder{}
	bus.Register(common.LocalSessionMsg_Update, r)

	for i := 0; i < 500; i++ {
		bus.Publish("s1", common.LocalSessionMsg_Update, i)
	}
	bus.Publish("s1", common.LocalSessionMsg_Done, -1)

	require.Eventually(t, func() bool { return len(r.received()) == 501 }, 2*time.Second, 5*time.Millisecond)
	msgs := r.received()
	for i := 0; i < 500; i++ {
		assert.Equal(t, i, msgs[i].Msg)
		assert.Equal(t, "s1", msgs[i].ChannelID)
	}
	assert.Equal(t, common.LocalSessionMsg_Done, msgs[500].MsgType)
}

func TestTopicsAreSeparatedByFirstClassType(t *testing.T) {
	bus := New()
	defer bus.Reset()
	req := &recorder{}
	resp := &recorder{}
	bus.Register(common.LocalSessionMsg_Request, req)
	bus.Register(common.LocalSessionMsg_Failed, resp)

	bus.Publish("s1", common.LocalSessionMsg_Request, "run")
	bus.Publish("s1", common.LocalSessionMsg_Update, "epoch")

	require.Eventually(t, func() bool { return len(req.received()) == 1 && len(resp.received()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, "run", req.received()[0].Msg)
	assert.Equal(t, "epoch", resp.received()[0].Msg)
}

func TestUnRegisterAndDuplicateRegister(t *testing.T) {
	bus := New()
	defer bus.Reset()
	r := &recorder{}
	bus.Register(common.LocalSessionMsg_Update, r)
	bus.Register(common.LocalSessionMsg_Update, r)

	bus.Publish("s1", common.LocalSessionMsg_Update, 1)
	require.Eventually(t, func() bool { return len(r.received()) == 1 }, time.Second, 5*time.Millisecond)

	bus.UnRegister(common.LocalSessionMsg_Update, r)
	bus.Publish("s1", common.LocalSessionMsg_Update, 2)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, r.received(), 1)
}

func TestPublishAfterResetIsDropped(t *testing.T) {
	bus := New()
	r := &recorder{}
	bus.Register(common.LocalSessionMsg_Update, r)
	bus.Reset()

	assert.NotPanics(t, func() {
		for i := 0; i < 10; i++ {
			bus.Publish("s1", common.LocalSessionMsg_Update, i)
		}
	})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.received())
}

func TestStopReleasesBlockedPublisher(t *testing.T) {
	tp := newTopic(1).(*topicImpl)
	block := make(chan struct{})
	tp.Register(blockingSub(block))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			tp.Publish(&BusMessage{Msg: i})
		}
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	tp.Stop()
	close(block)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after stop")
	}
}

type blockingSub chan struct{}

func (b blockingSub) HandleMsgFromMsgBus(msg *BusMessage) error {
	<-b
	return nil
}
