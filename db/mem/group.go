package mem

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	dbt "smartpay/db/db"
	"smartpay/ledger"
)

// inMemoryGroupDBWrapper is an in-memory implementation of dbt.GroupDBWrapper.
// It keeps everything in maps guarded by one RWMutex and hands out copies so
// callers can never mutate the stored state behind its back. Used by the unit
// tests and as a zero-dependency backend for local development.
type inMemoryGroupDBWrapper struct {
	groups    map[uuid.UUID]*dbt.GroupInfo
	codeIndex map[string]uuid.UUID // trip code -> group ID

	members  map[uuid.UUID][]ledger.Member  // group ID -> roster
	expenses map[uuid.UUID][]ledger.Expense // group ID -> expenses with splits

	expenseIndex map[uuid.UUID]uuid.UUID // expense ID -> group ID
	splitIndex   map[uuid.UUID]uuid.UUID // split ID -> expense ID

	mu sync.RWMutex
}

// NewInMemoryGroupDBWrapper creates and returns a new instance of inMemoryGroupDBWrapper.
func NewInMemoryGroupDBWrapper() dbt.GroupDBWrapper {
	return &inMemoryGroupDBWrapper{
		groups:       make(map[uuid.UUID]*dbt.GroupInfo),
		codeIndex:    make(map[string]uuid.UUID),
		members:      make(map[uuid.UUID][]ledger.Member),
		expenses:     make(map[uuid.UUID][]ledger.Expense),
		expenseIndex: make(map[uuid.UUID]uuid.UUID),
		splitIndex:   make(map[uuid.UUID]uuid.UUID),
	}
}

// CreateGroup creates a new group with its creator as admin member.
func (db *inMemoryGroupDBWrapper) CreateGroup(info *dbt.GroupInfo, creator *ledger.Member) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.groups[info.ID]; exists {
		return fmt.Errorf("group with ID %s %w", info.ID, ledger.ErrConflict)
	}
	if _, exists := db.codeIndex[info.TripCode]; exists {
		return fmt.Errorf("trip code %s %w", info.TripCode, ledger.ErrConflict)
	}

	infoCopy := *info
	db.groups[info.ID] = &infoCopy
	db.codeIndex[info.TripCode] = info.ID

	creatorCopy := *creator
	creatorCopy.GroupID = info.ID
	creatorCopy.IsAdmin = true
	db.members[info.ID] = []ledger.Member{creatorCopy}
	db.expenses[info.ID] = []ledger.Expense{}
	return nil
}

// AddMember appends one member to an existing group's roster.
func (db *inMemoryGroupDBWrapper) AddMember(member *ledger.Member) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	roster, exists := db.members[member.GroupID]
	if !exists {
		return fmt.Errorf("group %s for new member %w", member.GroupID, ledger.ErrNotFound)
	}
	for _, existing := range roster {
		if existing.ID == member.ID {
			return fmt.Errorf("member %s %w", member.ID, ledger.ErrConflict)
		}
	}
	db.members[member.GroupID] = append(roster, *member)
	return nil
}

// CreateExpenseWithSplits stores the expense and its splits as one unit. The
// map update cannot partially fail, matching the transactional contract of the
// Postgres implementation.
func (db *inMemoryGroupDBWrapper) CreateExpenseWithSplits(expense *ledger.Expense) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.groups[expense.GroupID]; !exists {
		return fmt.Errorf("group %s for expense %w", expense.GroupID, ledger.ErrNotFound)
	}

	expenseCopy := *expense
	expenseCopy.Splits = make([]ledger.Split, len(expense.Splits))
	copy(expenseCopy.Splits, expense.Splits)

	db.expenses[expense.GroupID] = append(db.expenses[expense.GroupID], expenseCopy)
	db.expenseIndex[expense.ID] = expense.GroupID
	for _, split := range expenseCopy.Splits {
		db.splitIndex[split.ID] = expense.ID
	}
	return nil
}

// GetGroupInfo retrieves group metadata by ID.
func (db *inMemoryGroupDBWrapper) GetGroupInfo(id uuid.UUID) (*dbt.GroupInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	info, exists := db.groups[id]
	if !exists {
		return nil, fmt.Errorf("group %s %w", id, ledger.ErrNotFound)
	}
	infoCopy := *info
	return &infoCopy, nil
}

// GetGroupByTripCode resolves a trip code to its group.
func (db *inMemoryGroupDBWrapper) GetGroupByTripCode(code string) (*dbt.GroupInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	groupID, exists := db.codeIndex[code]
	if !exists {
		return nil, fmt.Errorf("trip code %s %w", code, ledger.ErrNotFound)
	}
	infoCopy := *db.groups[groupID]
	return &infoCopy, nil
}

// ListGroupsForUser returns every group the user is a member of.
func (db *inMemoryGroupDBWrapper) ListGroupsForUser(userID string) ([]dbt.GroupInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var groups []dbt.GroupInfo
	for groupID, roster := range db.members {
		for _, member := range roster {
			if member.UserID == userID {
				groups = append(groups, *db.groups[groupID])
				break
			}
		}
	}
	return groups, nil
}

// GetMembers retrieves a copy of a group's roster.
func (db *inMemoryGroupDBWrapper) GetMembers(groupID uuid.UUID) ([]ledger.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	roster, exists := db.members[groupID]
	if !exists {
		return nil, fmt.Errorf("group %s %w", groupID, ledger.ErrNotFound)
	}
	rosterCopy := make([]ledger.Member, len(roster))
	copy(rosterCopy, roster)
	return rosterCopy, nil
}

// GetMember retrieves one member by ID.
func (db *inMemoryGroupDBWrapper) GetMember(id uuid.UUID) (*ledger.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, roster := range db.members {
		for _, member := range roster {
			if member.ID == id {
				memberCopy := member
				return &memberCopy, nil
			}
		}
	}
	return nil, fmt.Errorf("member %s %w", id, ledger.ErrNotFound)
}

// GetMemberByUser finds the member row of a user inside a group.
func (db *inMemoryGroupDBWrapper) GetMemberByUser(groupID uuid.UUID, userID string) (*ledger.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	roster, exists := db.members[groupID]
	if !exists {
		return nil, fmt.Errorf("group %s %w", groupID, ledger.ErrNotFound)
	}
	for _, member := range roster {
		if member.UserID == userID && userID != "" {
			memberCopy := member
			return &memberCopy, nil
		}
	}
	return nil, fmt.Errorf("user %s in group %s %w", userID, groupID, ledger.ErrNotFound)
}

// GetExpenses retrieves all expenses of a group with splits.
func (db *inMemoryGroupDBWrapper) GetExpenses(groupID uuid.UUID) ([]ledger.Expense, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	expenses, exists := db.expenses[groupID]
	if !exists {
		return nil, fmt.Errorf("group %s %w", groupID, ledger.ErrNotFound)
	}

	expensesCopy := make([]ledger.Expense, len(expenses))
	for i, expense := range expenses {
		expensesCopy[i] = expense
		expensesCopy[i].Splits = make([]ledger.Split, len(expense.Splits))
		copy(expensesCopy[i].Splits, expense.Splits)
	}
	return expensesCopy, nil
}

// GetExpense retrieves one expense with its splits.
func (db *inMemoryGroupDBWrapper) GetExpense(id uuid.UUID) (*ledger.Expense, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	expense := db.findExpense(id)
	if expense == nil {
		return nil, fmt.Errorf("expense %s %w", id, ledger.ErrNotFound)
	}
	expenseCopy := *expense
	expenseCopy.Splits = make([]ledger.Split, len(expense.Splits))
	copy(expenseCopy.Splits, expense.Splits)
	return &expenseCopy, nil
}

// GetSplit retrieves one split by ID.
func (db *inMemoryGroupDBWrapper) GetSplit(id uuid.UUID) (*ledger.Split, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	split := db.findSplit(id)
	if split == nil {
		return nil, fmt.Errorf("split %s %w", id, ledger.ErrNotFound)
	}
	splitCopy := *split
	return &splitCopy, nil
}

// UpdateGroupInfo updates name and description of an existing group.
func (db *inMemoryGroupDBWrapper) UpdateGroupInfo(info *dbt.GroupInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, exists := db.groups[info.ID]
	if !exists {
		return fmt.Errorf("group %s %w", info.ID, ledger.ErrNotFound)
	}
	stored.Name = info.Name
	stored.Description = info.Description
	return nil
}

// MarkSplitPaid flips the split to paid and stamps the settlement time.
func (db *inMemoryGroupDBWrapper) MarkSplitPaid(splitID uuid.UUID, paidAt time.Time) (*ledger.Split, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	split := db.findSplit(splitID)
	if split == nil {
		return nil, fmt.Errorf("split %s %w", splitID, ledger.ErrNotFound)
	}
	split.IsPaid = true
	stamped := paidAt
	split.PaidAt = &stamped

	splitCopy := *split
	return &splitCopy, nil
}

// DeleteGroup removes the group and everything hanging off it.
func (db *inMemoryGroupDBWrapper) DeleteGroup(id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	info, exists := db.groups[id]
	if !exists {
		return fmt.Errorf("group %s %w", id, ledger.ErrNotFound)
	}

	for _, expense := range db.expenses[id] {
		for _, split := range expense.Splits {
			delete(db.splitIndex, split.ID)
		}
		delete(db.expenseIndex, expense.ID)
	}
	delete(db.codeIndex, info.TripCode)
	delete(db.expenses, id)
	delete(db.members, id)
	delete(db.groups, id)
	return nil
}

// findExpense returns a pointer into the stored slice; callers must hold the lock.
func (db *inMemoryGroupDBWrapper) findExpense(id uuid.UUID) *ledger.Expense {
	groupID, exists := db.expenseIndex[id]
	if !exists {
		return nil
	}
	expenses := db.expenses[groupID]
	for i := range expenses {
		if expenses[i].ID == id {
			return &expenses[i]
		}
	}
	return nil
}

// findSplit returns a pointer into the stored slice; callers must hold the lock.
func (db *inMemoryGroupDBWrapper) findSplit(id uuid.UUID) *ledger.Split {
	expenseID, exists := db.splitIndex[id]
	if !exists {
		return nil
	}
	expense := db.findExpense(expenseID)
	if expense == nil {
		return nil
	}
	for i := range expense.Splits {
		if expense.Splits[i].ID == id {
			return &expense.Splits[i]
		}
	}
	return nil
}
