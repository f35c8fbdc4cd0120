package msgbus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gradlab/common"
)

var defaultTopicSize int = 100

type BusMessage struct {
	MsgType common.LocalMsgType
	// ChannelID tags the sender, a session id on the session buses.
	ChannelID string
	Msg       interface{}
}

type Subscriber interface {
	HandleMsgFromMsgBus(msg *BusMessage) error
}

type MessageBus interface {
	Register(topic common.LocalMsgType, sub Subscriber)
	UnRegister(topic common.LocalMsgType, sub Subscriber)
	Publish(channelID string, t common.LocalMsgType, payload interface{})
	Reset()
}

type Topic interface {
	Register(sub Subscriber)
	UnRegister(sub Subscriber)
	Publish(msg *BusMessage)
	Stop()
}

type topicImpl struct {
	msgChan chan *BusMessage
	subs    atomic.Value //[]Subscriber
	mutex   sync.RWMutex

	// guards stopped against concurrent publishers
	stateMutex sync.RWMutex
	stopped    bool
	stop       chan struct{}
	stopOnce   sync.Once
}

func newTopic(size int) Topic {
	t := &topicImpl{
		msgChan: make(chan *BusMessage, size),
		stop:    make(chan struct{}),
	}
	t.subs.Store([]Subscriber{})
	go t.handlePublish()
	return t
}

func (t *topicImpl) Register(sub Subscriber) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subs := t.subs.Load().([]Subscriber)
	for _, s := range subs {
		if s == sub {
			return
		}
	}
	newSubs := make([]Subscriber, 0, len(subs)+1)
	newSubs = append(newSubs, subs...)
	newSubs = append(newSubs, sub)
	t.subs.Store(newSubs)
}

func (t *topicImpl) UnRegister(sub Subscriber) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subs := t.subs.Load().([]Subscriber)
	for i, s := range subs {
		if s == sub {
			newSubs := make([]Subscriber, 0, len(subs)-1)
			newSubs = append(newSubs, subs[:i]...)
			newSubs = append(newSubs, subs[i+1:]...)
			t.subs.Store(newSubs)
			return
		}
	}
}

// Publish blocks while the topic buffer is full, which keeps the publish order.
// Messages published after Stop are dropped.
func (t *topicImpl) Publish(msg *BusMessage) {
	t.stateMutex.RLock()
	defer t.stateMutex.RUnlock()
	if t.stopped {
		return
	}
	select {
	case t.msgChan <- msg:
	case <-t.stop:
	}
}

func (t *topicImpl) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
		t.stateMutex.Lock()
		t.stopped = true
		t.stateMutex.Unlock()
	})
}

// handlePublish delivers one message at a time to every subscriber, in order.
func (t *topicImpl) handlePublish() {
	for {
		select {
		case <-t.stop:
			return
		case msg := <-t.msgChan:
			subs := t.subs.Load().([]Subscriber)
			for _, sub := range subs {
				select {
				case <-t.stop:
					return
				default:
				}
				if err := sub.HandleMsgFromMsgBus(msg); err != nil {
					fmt.Printf("subscriber failed on msg[%s]: %s\n", msg.MsgType, err)
				}
			}
		}
	}
}

type messageBusImpl struct {
	mutex  sync.Mutex
	topics map[common.LocalMsgType]Topic
}

// New returns an independent bus.
func New() MessageBus {
	return &messageBusImpl{topics: make(map[common.LocalMsgType]Topic)}
}

func (mb *messageBusImpl) Register(topic common.LocalMsgType, sub Subscriber) {
	firstClassTopic := topic.Type()
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	t, ok := mb.topics[firstClassTopic]
	if !ok {
		t = newTopic(defaultTopicSize)
		mb.topics[firstClassTopic] = t
	}
	t.Register(sub)
}

func (mb *messageBusImpl) UnRegister(topic common.LocalMsgType, sub Subscriber) {
	firstClassTopic := topic.Type()
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	if t, ok := mb.topics[firstClassTopic]; ok {
		t.UnRegister(sub)
	}
}

func (mb *messageBusImpl) Publish(channelID string, topic common.LocalMsgType, msg interface{}) {
	firstClassTopic := topic.Type()
	mb.mutex.Lock()
	t, ok := mb.topics[firstClassTopic]
	mb.mutex.Unlock()
	if !ok {
		// nobody listens on this topic
		return
	}
	t.Publish(&BusMessage{MsgType: topic, ChannelID: channelID, Msg: msg})
}

func (mb *messageBusImpl) Reset() {
	mb.mutex.Lock()
	topics := mb.topics
	mb.topics = make(map[common.LocalMsgType]Topic)
	mb.mutex.Unlock()

	for _, t := range topics {
		t.Stop()
	}
}
