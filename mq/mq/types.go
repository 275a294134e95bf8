package mq

import (
	"time"

	"github.com/google/uuid"
	"github.com/r3labs/diff/v3"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionCnt
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ExpenseMessage announces a newly recorded expense to group listeners.
type ExpenseMessage struct {
	GroupID     uuid.UUID
	ExpenseID   uuid.UUID
	Description string
	Amount      float64
	PaidBy      uuid.UUID
}

func (m ExpenseMessage) GetTopic() uuid.UUID {
	return m.GroupID
}

// MemberMessage announces a member joining a group.
type MemberMessage struct {
	GroupID  uuid.UUID
	MemberID uuid.UUID
	Name     string
	IsAdmin  bool
}

func (m MemberMessage) GetTopic() uuid.UUID {
	return m.GroupID
}

// SettlementMessage announces a split flipped to paid.
type SettlementMessage struct {
	GroupID   uuid.UUID
	SplitID   uuid.UUID
	ExpenseID uuid.UUID
	MemberID  uuid.UUID
	PaidAt    time.Time
}

func (m SettlementMessage) GetTopic() uuid.UUID {
	return m.GroupID
}

// GroupMessage announces a change to the group itself. Changelog carries
// the field-level diff for updates and is empty for deletions.
type GroupMessage struct {
	GroupID   uuid.UUID
	Name      string
	Changelog diff.Changelog
}

func (m GroupMessage) GetTopic() uuid.UUID {
	return m.GroupID
}
