package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Threshold for float comparisons
const epsilon = 1e-9

// Tolerance for user supplied money amounts (one cent).
const centTolerance = 0.01

// SplitType selects how an expense is divided among the selected members.
type SplitType string

const (
	SplitTypeEqual  SplitType = "equal"
	SplitTypeCustom SplitType = "custom"
)

// Sentinel errors for the ledger domain. Callers wrap these with context and
// the HTTP layer maps them to status codes.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("already exists")
)

// Member is one person in a trip group.
type Member struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	UserID      string
	Name        string
	PhoneNumber string
	IsAdmin     bool
}

// Expense is a single recorded cost, paid up front by one member.
type Expense struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	Description string
	Amount      float64
	PaidBy      uuid.UUID
	SplitType   SplitType
	ExpenseDate time.Time
	Splits      []Split
}

// Split is one member's share of one expense. The payer's own split starts
// paid; every other split starts pending and is settled later.
type Split struct {
	ID          uuid.UUID
	ExpenseID   uuid.UUID
	MemberID    uuid.UUID
	ShareAmount float64
	IsPaid      bool
	PaidAt      *time.Time
}

// SplitRequest carries everything needed to compute the splits for a new
// expense. CustomShares is only consulted for SplitTypeCustom.
type SplitRequest struct {
	Amount          float64
	PaidBy          uuid.UUID
	SplitType       SplitType
	SelectedMembers []uuid.UUID
	CustomShares    map[uuid.UUID]float64
}

// MemberBalance is the aggregated payment status for one member.
type MemberBalance struct {
	Member       Member
	TotalOwed    float64
	TotalPaid    float64
	PendingCount int
}

// FullySettled reports whether the member has nothing outstanding.
func (b MemberBalance) FullySettled() bool {
	return b.TotalOwed <= epsilon
}

// CashPosition is the net financial movement for one member across all
// outstanding splits of a group.
type CashPosition struct {
	MemberID uuid.UUID
	Owes     float64 // total this member still has to pay out
	Owed     float64 // total this member should receive back
}

// Transfer is one suggested reimbursement payment between two members.
type Transfer struct {
	From   uuid.UUID
	To     uuid.UUID
	Amount float64
}

// shareStrategy computes the per-member share map for a split request.
type shareStrategy func(req SplitRequest) (map[uuid.UUID]float64, error)
