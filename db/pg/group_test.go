package pg

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbt "smartpay/db/db"
	"smartpay/ledger"
)

var testDB *gorm.DB
var groupDB dbt.GroupDBWrapper

// initTest connects to the database configured via DATABASE_URL /
// DATABASE_PASSWORD. Tests are skipped when neither is set so the pure unit
// suites stay runnable without infrastructure.
func initTest(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" && os.Getenv("DATABASE_PASSWORD") == "" {
		t.Skip("no test database configured")
	}

	var err error
	testDB, err = InitPostgresGORM(CreateDSN())
	if err != nil {
		log.Fatalf("Failed to initialize test database: %v", err)
	}
	groupDB = NewGORMGroupDBWrapper(testDB)
}

func cleanupTest() {
	// Delete in reverse foreign key order.
	testDB.Exec("DELETE FROM expense_splits;")
	testDB.Exec("DELETE FROM expenses;")
	testDB.Exec("DELETE FROM group_members;")
	testDB.Exec("DELETE FROM trip_groups;")
	CloseGORM(testDB)
}

func seedGroup(t *testing.T) (*dbt.GroupInfo, *ledger.Member) {
	t.Helper()
	info := &dbt.GroupInfo{
		ID:        uuid.New(),
		Name:      "Integration Trip",
		CreatedBy: "user-int-1",
		TripCode:  "QA2BC3",
	}
	creator := &ledger.Member{
		ID:      uuid.New(),
		GroupID: info.ID,
		UserID:  "user-int-1",
		Name:    "Asha",
		IsAdmin: true,
	}
	require.NoError(t, groupDB.CreateGroup(info, creator))
	return info, creator
}

func TestCreateAndGetGroup(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	info, creator := seedGroup(t)

	retrieved, err := groupDB.GetGroupInfo(info.ID)
	assert.NoError(t, err)
	assert.Equal(t, info.Name, retrieved.Name)
	assert.Equal(t, info.TripCode, retrieved.TripCode)

	members, err := groupDB.GetMembers(info.ID)
	assert.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, creator.ID, members[0].ID)
	assert.True(t, members[0].IsAdmin)

	byCode, err := groupDB.GetGroupByTripCode(info.TripCode)
	assert.NoError(t, err)
	assert.Equal(t, info.ID, byCode.ID)

	_, err = groupDB.GetGroupInfo(uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateGroupDuplicateTripCode(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	info, _ := seedGroup(t)

	clash := &dbt.GroupInfo{
		ID:        uuid.New(),
		Name:      "Clash",
		CreatedBy: "user-int-2",
		TripCode:  info.TripCode,
	}
	err := groupDB.CreateGroup(clash, &ledger.Member{
		ID: uuid.New(), GroupID: clash.ID, UserID: "user-int-2", Name: "Ravi", IsAdmin: true,
	})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	// The failed transaction must not leave the creator member behind.
	_, err = groupDB.GetMemberByUser(clash.ID, "user-int-2")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestExpenseWithSplitsRoundTrip(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	info, creator := seedGroup(t)
	other := &ledger.Member{ID: uuid.New(), GroupID: info.ID, Name: "Ravi"}
	require.NoError(t, groupDB.AddMember(other))

	expense := &ledger.Expense{
		ID:          uuid.New(),
		GroupID:     info.ID,
		Description: "hotel",
		Amount:      300,
		PaidBy:      creator.ID,
		SplitType:   ledger.SplitTypeEqual,
		ExpenseDate: time.Now(),
		Splits: []ledger.Split{
			{ID: uuid.New(), ExpenseID: uuid.Nil, MemberID: creator.ID, ShareAmount: 150, IsPaid: true},
			{ID: uuid.New(), ExpenseID: uuid.Nil, MemberID: other.ID, ShareAmount: 150, IsPaid: false},
		},
	}
	require.NoError(t, groupDB.CreateExpenseWithSplits(expense))

	expenses, err := groupDB.GetExpenses(info.ID)
	assert.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, expense.ID, expenses[0].ID)
	assert.Len(t, expenses[0].Splits, 2)
	assert.Equal(t, ledger.SplitTypeEqual, expenses[0].SplitType)

	single, err := groupDB.GetExpense(expense.ID)
	assert.NoError(t, err)
	assert.Len(t, single.Splits, 2)
}

func TestMarkSplitPaidPersists(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	info, creator := seedGroup(t)
	other := &ledger.Member{ID: uuid.New(), GroupID: info.ID, Name: "Ravi"}
	require.NoError(t, groupDB.AddMember(other))

	pendingID := uuid.New()
	expense := &ledger.Expense{
		ID:          uuid.New(),
		GroupID:     info.ID,
		Description: "taxi",
		Amount:      100,
		PaidBy:      creator.ID,
		SplitType:   ledger.SplitTypeEqual,
		ExpenseDate: time.Now(),
		Splits: []ledger.Split{
			{ID: uuid.New(), MemberID: creator.ID, ShareAmount: 50, IsPaid: true},
			{ID: pendingID, MemberID: other.ID, ShareAmount: 50, IsPaid: false},
		},
	}
	require.NoError(t, groupDB.CreateExpenseWithSplits(expense))

	settled, err := groupDB.MarkSplitPaid(pendingID, time.Now())
	assert.NoError(t, err)
	assert.True(t, settled.IsPaid)
	assert.NotNil(t, settled.PaidAt)

	// A fresh read reflects the mutation.
	fresh, err := groupDB.GetSplit(pendingID)
	assert.NoError(t, err)
	assert.True(t, fresh.IsPaid)

	_, err = groupDB.MarkSplitPaid(uuid.New(), time.Now())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestDeleteGroupCascades(t *testing.T) {
	initTest(t)
	defer cleanupTest()

	info, creator := seedGroup(t)
	expense := &ledger.Expense{
		ID:          uuid.New(),
		GroupID:     info.ID,
		Description: "snacks",
		Amount:      40,
		PaidBy:      creator.ID,
		SplitType:   ledger.SplitTypeEqual,
		ExpenseDate: time.Now(),
		Splits: []ledger.Split{
			{ID: uuid.New(), MemberID: creator.ID, ShareAmount: 40, IsPaid: true},
		},
	}
	require.NoError(t, groupDB.CreateExpenseWithSplits(expense))

	assert.NoError(t, groupDB.DeleteGroup(info.ID))

	_, err := groupDB.GetGroupInfo(info.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = groupDB.GetExpense(expense.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
