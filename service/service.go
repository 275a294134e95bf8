package service

import (
	"log"

	"smartpay/db/db"
	"smartpay/mq/mq"
)

// GroupService orchestrates the expense ledger: it validates actors,
// delegates math to the ledger package, persists through the store and
// announces changes on the message queues.
type GroupService struct {
	store db.GroupDBWrapper
	mq    mq.GroupMessageQueueWrapper
}

// NewGroupService wires a service. queues may be nil, in which case no
// events are published.
func NewGroupService(store db.GroupDBWrapper, queues mq.GroupMessageQueueWrapper) *GroupService {
	return &GroupService{store: store, mq: queues}
}

// Store exposes the underlying persistence boundary, mostly for the
// transport layer's read paths.
func (s *GroupService) Store() db.GroupDBWrapper {
	return s.store
}

// Queues exposes the message queue wrapper for event streaming endpoints.
func (s *GroupService) Queues() mq.GroupMessageQueueWrapper {
	return s.mq
}

// publish delivery is best effort: a broker hiccup must not fail the
// request that already committed.
func publish[M mq.TopicProvider](queue mq.MessageQueue[M], msg M) {
	if queue == nil {
		return
	}
	if err := queue.Publish(msg); err != nil {
		log.Printf("Failed to publish %T event: %v", msg, err)
	}
}
