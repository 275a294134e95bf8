package mem_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "smartpay/db/db"
	"smartpay/db/mem"
	"smartpay/ledger"
)

// setupTest creates a fresh wrapper with one group and its admin creator.
func setupTest(t *testing.T) (dbt.GroupDBWrapper, *dbt.GroupInfo, *ledger.Member) {
	t.Helper()
	db := mem.NewInMemoryGroupDBWrapper()

	info := &dbt.GroupInfo{
		ID:        uuid.New(),
		Name:      "Goa Trip",
		CreatedBy: "user-1",
		TripCode:  "AB2CD3",
	}
	creator := &ledger.Member{
		ID:     uuid.New(),
		UserID: "user-1",
		Name:   "Asha",
	}
	require.NoError(t, db.CreateGroup(info, creator))
	creator.GroupID = info.ID
	creator.IsAdmin = true
	return db, info, creator
}

func addExpense(t *testing.T, db dbt.GroupDBWrapper, groupID uuid.UUID, paidBy uuid.UUID, memberIDs []uuid.UUID, amount float64) *ledger.Expense {
	t.Helper()
	expense := &ledger.Expense{
		ID:          uuid.New(),
		GroupID:     groupID,
		Description: "dinner",
		Amount:      amount,
		PaidBy:      paidBy,
		SplitType:   ledger.SplitTypeEqual,
		ExpenseDate: time.Now(),
	}
	share := amount / float64(len(memberIDs))
	for _, memberID := range memberIDs {
		expense.Splits = append(expense.Splits, ledger.Split{
			ID:          uuid.New(),
			ExpenseID:   expense.ID,
			MemberID:    memberID,
			ShareAmount: share,
			IsPaid:      memberID == paidBy,
		})
	}
	require.NoError(t, db.CreateExpenseWithSplits(expense))
	return expense
}

func TestCreateGroup(t *testing.T) {
	db, info, creator := setupTest(t)

	retrieved, err := db.GetGroupInfo(info.ID)
	assert.NoError(t, err)
	assert.Equal(t, info.Name, retrieved.Name)
	assert.Equal(t, info.TripCode, retrieved.TripCode)

	// The creator must be stored as admin.
	members, err := db.GetMembers(info.ID)
	assert.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, creator.ID, members[0].ID)
	assert.True(t, members[0].IsAdmin)

	// Duplicate group ID must fail.
	err = db.CreateGroup(info, creator)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestCreateGroupDuplicateTripCode(t *testing.T) {
	db, info, _ := setupTest(t)

	clash := &dbt.GroupInfo{
		ID:        uuid.New(),
		Name:      "Another Trip",
		CreatedBy: "user-2",
		TripCode:  info.TripCode,
	}
	err := db.CreateGroup(clash, &ledger.Member{ID: uuid.New(), UserID: "user-2", Name: "Ravi"})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestGetGroupByTripCode(t *testing.T) {
	db, info, _ := setupTest(t)

	retrieved, err := db.GetGroupByTripCode(info.TripCode)
	assert.NoError(t, err)
	assert.Equal(t, info.ID, retrieved.ID)

	_, err = db.GetGroupByTripCode("ZZZZZZ")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestAddMember(t *testing.T) {
	db, info, _ := setupTest(t)

	member := &ledger.Member{
		ID:          uuid.New(),
		GroupID:     info.ID,
		UserID:      "user-2",
		Name:        "Ravi",
		PhoneNumber: "+91 98765 43210",
	}
	assert.NoError(t, db.AddMember(member))

	members, err := db.GetMembers(info.ID)
	assert.NoError(t, err)
	assert.Len(t, members, 2)

	// Unknown group must fail.
	orphan := &ledger.Member{ID: uuid.New(), GroupID: uuid.New(), Name: "Nobody"}
	assert.ErrorIs(t, db.AddMember(orphan), ledger.ErrNotFound)
}

func TestGetMemberByUser(t *testing.T) {
	db, info, creator := setupTest(t)

	found, err := db.GetMemberByUser(info.ID, creator.UserID)
	assert.NoError(t, err)
	assert.Equal(t, creator.ID, found.ID)

	_, err = db.GetMemberByUser(info.ID, "stranger")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	// Members added without a user account never match by user ID.
	_, err = db.GetMemberByUser(info.ID, "")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateExpenseWithSplits(t *testing.T) {
	db, info, creator := setupTest(t)

	other := &ledger.Member{ID: uuid.New(), GroupID: info.ID, Name: "Ravi"}
	require.NoError(t, db.AddMember(other))

	expense := addExpense(t, db, info.ID, creator.ID, []uuid.UUID{creator.ID, other.ID}, 200)

	expenses, err := db.GetExpenses(info.ID)
	assert.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, expense.ID, expenses[0].ID)
	assert.Len(t, expenses[0].Splits, 2)

	// Expense for a missing group must fail as one unit.
	bad := &ledger.Expense{ID: uuid.New(), GroupID: uuid.New(), Amount: 10}
	assert.ErrorIs(t, db.CreateExpenseWithSplits(bad), ledger.ErrNotFound)
}

func TestGetExpensesReturnsCopies(t *testing.T) {
	db, info, creator := setupTest(t)
	addExpense(t, db, info.ID, creator.ID, []uuid.UUID{creator.ID}, 50)

	first, err := db.GetExpenses(info.ID)
	require.NoError(t, err)
	first[0].Splits[0].ShareAmount = 9999

	second, err := db.GetExpenses(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, second[0].Splits[0].ShareAmount, "stored state must not be mutable through returned slices")
}

func TestMarkSplitPaid(t *testing.T) {
	db, info, creator := setupTest(t)

	other := &ledger.Member{ID: uuid.New(), GroupID: info.ID, Name: "Ravi"}
	require.NoError(t, db.AddMember(other))
	expense := addExpense(t, db, info.ID, creator.ID, []uuid.UUID{creator.ID, other.ID}, 200)

	var pending ledger.Split
	for _, s := range expense.Splits {
		if !s.IsPaid {
			pending = s
		}
	}

	paidAt := time.Now()
	settled, err := db.MarkSplitPaid(pending.ID, paidAt)
	assert.NoError(t, err)
	assert.True(t, settled.IsPaid)
	require.NotNil(t, settled.PaidAt)
	assert.WithinDuration(t, paidAt, *settled.PaidAt, time.Second)

	// Settling twice leaves the split paid.
	again, err := db.MarkSplitPaid(pending.ID, time.Now())
	assert.NoError(t, err)
	assert.True(t, again.IsPaid)

	_, err = db.MarkSplitPaid(uuid.New(), time.Now())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestUpdateGroupInfo(t *testing.T) {
	db, info, _ := setupTest(t)

	info.Name = "Goa Reunion"
	info.Description = "same beach, new year"
	assert.NoError(t, db.UpdateGroupInfo(info))

	retrieved, err := db.GetGroupInfo(info.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Goa Reunion", retrieved.Name)
	assert.Equal(t, "same beach, new year", retrieved.Description)

	missing := &dbt.GroupInfo{ID: uuid.New(), Name: "nope"}
	assert.ErrorIs(t, db.UpdateGroupInfo(missing), ledger.ErrNotFound)
}

func TestListGroupsForUser(t *testing.T) {
	db, info, creator := setupTest(t)

	second := &dbt.GroupInfo{ID: uuid.New(), Name: "Manali", CreatedBy: creator.UserID, TripCode: "XY7ZW8"}
	require.NoError(t, db.CreateGroup(second, &ledger.Member{ID: uuid.New(), UserID: creator.UserID, Name: "Asha"}))

	groups, err := db.ListGroupsForUser(creator.UserID)
	assert.NoError(t, err)
	assert.Len(t, groups, 2)

	groups, err = db.ListGroupsForUser("stranger")
	assert.NoError(t, err)
	assert.Empty(t, groups)

	ids := map[uuid.UUID]bool{}
	g, _ := db.ListGroupsForUser(creator.UserID)
	for _, gi := range g {
		ids[gi.ID] = true
	}
	assert.True(t, ids[info.ID])
	assert.True(t, ids[second.ID])
}

func TestDeleteGroup(t *testing.T) {
	db, info, creator := setupTest(t)
	expense := addExpense(t, db, info.ID, creator.ID, []uuid.UUID{creator.ID}, 75)

	assert.NoError(t, db.DeleteGroup(info.ID))

	_, err := db.GetGroupInfo(info.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = db.GetExpense(expense.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = db.GetGroupByTripCode(info.TripCode)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	// The code is free for reuse after deletion.
	reuse := &dbt.GroupInfo{ID: uuid.New(), Name: "Again", CreatedBy: "user-9", TripCode: info.TripCode}
	assert.NoError(t, db.CreateGroup(reuse, &ledger.Member{ID: uuid.New(), UserID: "user-9", Name: "Zoya"}))

	assert.ErrorIs(t, db.DeleteGroup(info.ID), ledger.ErrNotFound)
}
