package db

import (
	"time"

	"github.com/google/uuid"

	"smartpay/ledger"
)

// GroupDBWrapper is the persistence boundary of the expense ledger. Lookup
// failures wrap ledger.ErrNotFound, unique violations wrap ledger.ErrConflict,
// everything else is an opaque store error.
type GroupDBWrapper interface {
	// Create
	CreateGroup(info *GroupInfo, creator *ledger.Member) error
	AddMember(member *ledger.Member) error
	CreateExpenseWithSplits(expense *ledger.Expense) error
	// Read
	GetGroupInfo(id uuid.UUID) (*GroupInfo, error)
	GetGroupByTripCode(code string) (*GroupInfo, error)
	ListGroupsForUser(userID string) ([]GroupInfo, error)
	GetMembers(groupID uuid.UUID) ([]ledger.Member, error)
	GetMember(id uuid.UUID) (*ledger.Member, error)
	GetMemberByUser(groupID uuid.UUID, userID string) (*ledger.Member, error)
	GetExpenses(groupID uuid.UUID) ([]ledger.Expense, error)
	GetExpense(id uuid.UUID) (*ledger.Expense, error)
	GetSplit(id uuid.UUID) (*ledger.Split, error)
	// Update
	UpdateGroupInfo(info *GroupInfo) error
	MarkSplitPaid(splitID uuid.UUID, paidAt time.Time) (*ledger.Split, error)
	// Delete
	DeleteGroup(id uuid.UUID) error
}
