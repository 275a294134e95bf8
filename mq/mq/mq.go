package mq

import "github.com/google/uuid"

// TopicProvider is implemented by every message that can be routed to a
// group topic.
type TopicProvider interface {
	GetTopic() uuid.UUID
}

// MessageQueue is the contract every backend implements per message type
// and action. Subscribe registers a listener for one group and returns a
// subscriber ID for later DeSubscribe.
type MessageQueue[M TopicProvider] interface {
	GetAction() Action
	Publish(msg M) error
	Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

type ExpenseMessageQueue = MessageQueue[ExpenseMessage]

type MemberMessageQueue = MessageQueue[MemberMessage]

type SettlementMessageQueue = MessageQueue[SettlementMessage]

type GroupMessageQueue = MessageQueue[GroupMessage]

// GroupMessageQueueWrapper bundles the queues of one backend. Getters
// return nil for action slots a message type does not use.
type GroupMessageQueueWrapper interface {
	GetExpenseMessageQueue(action Action) ExpenseMessageQueue
	GetMemberMessageQueue(action Action) MemberMessageQueue
	GetSettlementMessageQueue(action Action) SettlementMessageQueue
	GetGroupMessageQueue(action Action) GroupMessageQueue
}
