package goch

import (
	"fmt"
	"sync"

	"smartpay/mq/mq"

	"github.com/google/uuid"
)

const defaultBufferSize = 16

type subscriber[M any] struct {
	topic uuid.UUID
	ch    chan M
}

// fanOutQueueCore dispatches published messages to every subscriber whose
// topic matches. A single goroutine owns the dispatch loop so subscriber
// channels are only closed while holding the write lock.
type fanOutQueueCore[M mq.TopicProvider] struct {
	publishChan chan M
	bufferSize  int
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*subscriber[M]
	quit        chan struct{}
	stopOnce    sync.Once
}

func newFanOutQueueCore[M mq.TopicProvider](bufferSize int) *fanOutQueueCore[M] {
	core := &fanOutQueueCore[M]{
		publishChan: make(chan M, bufferSize),
		bufferSize:  bufferSize,
		subscribers: make(map[uuid.UUID]*subscriber[M]),
		quit:        make(chan struct{}),
	}
	go core.run()
	return core
}

func (c *fanOutQueueCore[M]) run() {
	for {
		select {
		case msg := <-c.publishChan:
			c.dispatch(msg)
		case <-c.quit:
			c.mu.Lock()
			for id, sub := range c.subscribers {
				close(sub.ch)
				delete(c.subscribers, id)
			}
			c.mu.Unlock()
			return
		}
	}
}

func (c *fanOutQueueCore[M]) dispatch(msg M) {
	topic := msg.GetTopic()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sub := range c.subscribers {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// slow subscriber, drop rather than stall the loop
		}
	}
}

func (c *fanOutQueueCore[M]) Publish(msg M) error {
	select {
	case <-c.quit:
		return ErrQueueStopped
	default:
	}
	select {
	case c.publishChan <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *fanOutQueueCore[M]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error) {
	select {
	case <-c.quit:
		return uuid.Nil, nil, ErrQueueStopped
	default:
	}

	id := uuid.New()
	sub := &subscriber[M]{
		topic: topic,
		ch:    make(chan M, c.bufferSize),
	}

	c.mu.Lock()
	c.subscribers[id] = sub
	c.mu.Unlock()

	return id, sub.ch, nil
}

func (c *fanOutQueueCore[M]) DeSubscribe(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscribers[id]
	if !ok {
		return fmt.Errorf("subscriber with ID %s not found", id)
	}
	delete(c.subscribers, id)
	close(sub.ch)
	return nil
}

// Stop shuts the dispatch loop down and closes all subscriber channels.
func (c *fanOutQueueCore[M]) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
	})
}

// ChannelMessageQueue implements mq.MessageQueue using in-process channels.
type ChannelMessageQueue[M mq.TopicProvider] struct {
	action mq.Action
	core   *fanOutQueueCore[M]
}

// NewChannelMessageQueue creates an in-process queue for one action.
// bufferSize sets both the publish buffer and each subscriber's buffer.
func NewChannelMessageQueue[M mq.TopicProvider](action mq.Action, bufferSize int) *ChannelMessageQueue[M] {
	return &ChannelMessageQueue[M]{
		action: action,
		core:   newFanOutQueueCore[M](bufferSize),
	}
}

func (q *ChannelMessageQueue[M]) GetAction() mq.Action {
	return q.action
}

func (q *ChannelMessageQueue[M]) Publish(msg M) error {
	return q.core.Publish(msg)
}

func (q *ChannelMessageQueue[M]) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan M, error) {
	return q.core.Subscribe(groupID)
}

func (q *ChannelMessageQueue[M]) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

func (q *ChannelMessageQueue[M]) Close() {
	q.core.Stop()
}

// GoChanGroupMessageQueueWrapper bundles in-process queues for every
// message type and the actions each one uses.
type GoChanGroupMessageQueueWrapper struct {
	ExpenseMQArray    [mq.ActionCnt]mq.ExpenseMessageQueue
	MemberMQArray     [mq.ActionCnt]mq.MemberMessageQueue
	SettlementMQArray [mq.ActionCnt]mq.SettlementMessageQueue
	GroupMQArray      [mq.ActionCnt]mq.GroupMessageQueue
}

func (wrapper *GoChanGroupMessageQueueWrapper) GetExpenseMessageQueue(action mq.Action) mq.ExpenseMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.ExpenseMQArray[action]
}

func (wrapper *GoChanGroupMessageQueueWrapper) GetMemberMessageQueue(action mq.Action) mq.MemberMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.MemberMQArray[action]
}

func (wrapper *GoChanGroupMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.SettlementMQArray[action]
}

func (wrapper *GoChanGroupMessageQueueWrapper) GetGroupMessageQueue(action mq.Action) mq.GroupMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.GroupMQArray[action]
}

// NewGoChanGroupMessageQueueWrapper creates the in-process backend.
func NewGoChanGroupMessageQueueWrapper() mq.GroupMessageQueueWrapper {
	wrapper := GoChanGroupMessageQueueWrapper{}
	// expenses are append-only
	wrapper.ExpenseMQArray[mq.ActionCreate] = NewChannelMessageQueue[mq.ExpenseMessage](mq.ActionCreate, defaultBufferSize)
	// members join, they never leave on their own
	wrapper.MemberMQArray[mq.ActionCreate] = NewChannelMessageQueue[mq.MemberMessage](mq.ActionCreate, defaultBufferSize)
	// settlements only ever flip a split to paid
	wrapper.SettlementMQArray[mq.ActionUpdate] = NewChannelMessageQueue[mq.SettlementMessage](mq.ActionUpdate, defaultBufferSize)
	// group info can change or the whole group can go away
	wrapper.GroupMQArray[mq.ActionUpdate] = NewChannelMessageQueue[mq.GroupMessage](mq.ActionUpdate, defaultBufferSize)
	wrapper.GroupMQArray[mq.ActionDelete] = NewChannelMessageQueue[mq.GroupMessage](mq.ActionDelete, defaultBufferSize)

	return &wrapper
}

// --- Error Definitions ---
type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueFull    QueueError = "message queue is full"
	ErrQueueStopped QueueError = "message queue is stopped"
)
