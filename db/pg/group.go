package pg

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbt "smartpay/db/db"
	"smartpay/ledger"
)

// GORMGroupDBWrapper is a GORM-based PostgreSQL implementation of dbt.GroupDBWrapper.
type GORMGroupDBWrapper struct {
	db *gorm.DB
}

// NewGORMGroupDBWrapper creates and returns a new instance of GORMGroupDBWrapper.
func NewGORMGroupDBWrapper(db *gorm.DB) dbt.GroupDBWrapper {
	return &GORMGroupDBWrapper{
		db: db,
	}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// CreateGroup inserts the group and its creator as admin member in one
// transaction.
func (pgdb *GORMGroupDBWrapper) CreateGroup(info *dbt.GroupInfo, creator *ledger.Member) error {
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		groupModel := TripGroupModel{
			ID:          info.ID,
			Name:        info.Name,
			Description: info.Description,
			CreatedBy:   info.CreatedBy,
			TripCode:    info.TripCode,
		}
		if result := tx.Create(&groupModel); result.Error != nil {
			return result.Error
		}

		memberModel := GroupMemberModel{
			ID:          creator.ID,
			GroupID:     info.ID,
			UserID:      creator.UserID,
			Name:        creator.Name,
			PhoneNumber: creator.PhoneNumber,
			IsAdmin:     true,
		}
		if result := tx.Create(&memberModel); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("group with ID %s or trip code %s %w", info.ID, info.TripCode, ledger.ErrConflict)
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// AddMember inserts one member row.
func (pgdb *GORMGroupDBWrapper) AddMember(member *ledger.Member) error {
	memberModel := GroupMemberModel{
		ID:          member.ID,
		GroupID:     member.GroupID,
		UserID:      member.UserID,
		Name:        member.Name,
		PhoneNumber: member.PhoneNumber,
		IsAdmin:     member.IsAdmin,
	}
	result := pgdb.db.Create(&memberModel)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "violates foreign key constraint") {
			return fmt.Errorf("group %s for new member %w", member.GroupID, ledger.ErrNotFound)
		}
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("member %s %w", member.ID, ledger.ErrConflict)
		}
		return fmt.Errorf("failed to add member to group %s: %w", member.GroupID, result.Error)
	}
	return nil
}

// CreateExpenseWithSplits persists the expense and all of its splits inside a
// single transaction so callers see one atomic operation.
func (pgdb *GORMGroupDBWrapper) CreateExpenseWithSplits(expense *ledger.Expense) error {
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		expenseModel := ExpenseModel{
			ID:          expense.ID,
			GroupID:     expense.GroupID,
			Description: expense.Description,
			Amount:      expense.Amount,
			PaidBy:      expense.PaidBy,
			SplitType:   string(expense.SplitType),
			ExpenseDate: expense.ExpenseDate,
		}
		if result := tx.Create(&expenseModel); result.Error != nil {
			return result.Error
		}

		splitModels := make([]ExpenseSplitModel, 0, len(expense.Splits))
		for _, split := range expense.Splits {
			splitModels = append(splitModels, ExpenseSplitModel{
				ID:          split.ID,
				ExpenseID:   expense.ID,
				MemberID:    split.MemberID,
				ShareAmount: split.ShareAmount,
				IsPaid:      split.IsPaid,
				PaidAt:      split.PaidAt,
			})
		}
		if result := tx.Create(&splitModels); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "violates foreign key constraint") {
			return fmt.Errorf("group %s for expense %w", expense.GroupID, ledger.ErrNotFound)
		}
		return fmt.Errorf("failed to create expense with splits for group %s: %w", expense.GroupID, err)
	}
	return nil
}

// GetGroupInfo retrieves group metadata by ID.
func (pgdb *GORMGroupDBWrapper) GetGroupInfo(id uuid.UUID) (*dbt.GroupInfo, error) {
	var groupModel TripGroupModel
	result := pgdb.db.First(&groupModel, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("group %s %w", id, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get group %s: %w", id, result.Error)
	}
	return groupInfoFromModel(&groupModel), nil
}

// GetGroupByTripCode resolves a trip code (already uppercased by the caller).
func (pgdb *GORMGroupDBWrapper) GetGroupByTripCode(code string) (*dbt.GroupInfo, error) {
	var groupModel TripGroupModel
	result := pgdb.db.First(&groupModel, "trip_code = ?", code)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trip code %s %w", code, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve trip code %s: %w", code, result.Error)
	}
	return groupInfoFromModel(&groupModel), nil
}

// ListGroupsForUser returns every group the user belongs to.
func (pgdb *GORMGroupDBWrapper) ListGroupsForUser(userID string) ([]dbt.GroupInfo, error) {
	var groupModels []TripGroupModel
	result := pgdb.db.
		Joins("JOIN group_members ON group_members.group_id = trip_groups.id").
		Where("group_members.user_id = ?", userID).
		Order("trip_groups.created_at").
		Find(&groupModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list groups for user %s: %w", userID, result.Error)
	}

	groups := make([]dbt.GroupInfo, 0, len(groupModels))
	for i := range groupModels {
		groups = append(groups, *groupInfoFromModel(&groupModels[i]))
	}
	return groups, nil
}

// GetMembers retrieves the full roster of a group.
func (pgdb *GORMGroupDBWrapper) GetMembers(groupID uuid.UUID) ([]ledger.Member, error) {
	var memberModels []GroupMemberModel
	result := pgdb.db.Where("group_id = ?", groupID).Order("created_at").Find(&memberModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get members for group %s: %w", groupID, result.Error)
	}

	members := make([]ledger.Member, 0, len(memberModels))
	for i := range memberModels {
		members = append(members, *memberFromModel(&memberModels[i]))
	}
	return members, nil
}

// GetMember retrieves one member by ID.
func (pgdb *GORMGroupDBWrapper) GetMember(id uuid.UUID) (*ledger.Member, error) {
	var memberModel GroupMemberModel
	result := pgdb.db.First(&memberModel, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("member %s %w", id, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get member %s: %w", id, result.Error)
	}
	return memberFromModel(&memberModel), nil
}

// GetMemberByUser finds the member row of a user inside a group.
func (pgdb *GORMGroupDBWrapper) GetMemberByUser(groupID uuid.UUID, userID string) (*ledger.Member, error) {
	var memberModel GroupMemberModel
	result := pgdb.db.First(&memberModel, "group_id = ? AND user_id = ?", groupID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s in group %s %w", userID, groupID, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get member of user %s in group %s: %w", userID, groupID, result.Error)
	}
	return memberFromModel(&memberModel), nil
}

// GetExpenses retrieves all expenses of a group with their splits attached.
func (pgdb *GORMGroupDBWrapper) GetExpenses(groupID uuid.UUID) ([]ledger.Expense, error) {
	var expenseModels []ExpenseModel
	result := pgdb.db.Where("group_id = ?", groupID).Order("expense_date DESC").Find(&expenseModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get expenses for group %s: %w", groupID, result.Error)
	}
	if len(expenseModels) == 0 {
		return []ledger.Expense{}, nil
	}

	expenseIDs := make([]uuid.UUID, 0, len(expenseModels))
	for _, em := range expenseModels {
		expenseIDs = append(expenseIDs, em.ID)
	}

	var splitModels []ExpenseSplitModel
	result = pgdb.db.Where("expense_id IN ?", expenseIDs).Find(&splitModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get splits for group %s: %w", groupID, result.Error)
	}

	splitsByExpense := make(map[uuid.UUID][]ledger.Split, len(expenseModels))
	for i := range splitModels {
		split := splitFromModel(&splitModels[i])
		splitsByExpense[split.ExpenseID] = append(splitsByExpense[split.ExpenseID], *split)
	}

	expenses := make([]ledger.Expense, 0, len(expenseModels))
	for i := range expenseModels {
		expense := expenseFromModel(&expenseModels[i])
		expense.Splits = splitsByExpense[expense.ID]
		expenses = append(expenses, *expense)
	}
	return expenses, nil
}

// GetExpense retrieves one expense with its splits.
func (pgdb *GORMGroupDBWrapper) GetExpense(id uuid.UUID) (*ledger.Expense, error) {
	var expenseModel ExpenseModel
	result := pgdb.db.First(&expenseModel, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("expense %s %w", id, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get expense %s: %w", id, result.Error)
	}

	var splitModels []ExpenseSplitModel
	result = pgdb.db.Where("expense_id = ?", id).Find(&splitModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get splits for expense %s: %w", id, result.Error)
	}

	expense := expenseFromModel(&expenseModel)
	for i := range splitModels {
		expense.Splits = append(expense.Splits, *splitFromModel(&splitModels[i]))
	}
	return expense, nil
}

// GetSplit retrieves one split by ID.
func (pgdb *GORMGroupDBWrapper) GetSplit(id uuid.UUID) (*ledger.Split, error) {
	var splitModel ExpenseSplitModel
	result := pgdb.db.First(&splitModel, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("split %s %w", id, ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get split %s: %w", id, result.Error)
	}
	return splitFromModel(&splitModel), nil
}

// UpdateGroupInfo updates name and description of an existing group.
func (pgdb *GORMGroupDBWrapper) UpdateGroupInfo(info *dbt.GroupInfo) error {
	result := pgdb.db.Model(&TripGroupModel{}).
		Where("id = ?", info.ID).
		Updates(map[string]interface{}{
			"name":        info.Name,
			"description": info.Description,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update group %s: %w", info.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("group %s %w", info.ID, ledger.ErrNotFound)
	}
	return nil
}

// MarkSplitPaid flips the split to paid and stamps the settlement time.
// Settling an already settled split only refreshes paid_at.
func (pgdb *GORMGroupDBWrapper) MarkSplitPaid(splitID uuid.UUID, paidAt time.Time) (*ledger.Split, error) {
	result := pgdb.db.Model(&ExpenseSplitModel{}).
		Where("id = ?", splitID).
		Updates(map[string]interface{}{
			"is_paid": true,
			"paid_at": paidAt,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to settle split %s: %w", splitID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("split %s %w", splitID, ledger.ErrNotFound)
	}
	return pgdb.GetSplit(splitID)
}

// DeleteGroup removes the group; members, expenses and splits cascade.
func (pgdb *GORMGroupDBWrapper) DeleteGroup(id uuid.UUID) error {
	result := pgdb.db.Delete(&TripGroupModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete group %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("group %s %w", id, ledger.ErrNotFound)
	}
	return nil
}

func groupInfoFromModel(m *TripGroupModel) *dbt.GroupInfo {
	return &dbt.GroupInfo{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedBy:   m.CreatedBy,
		TripCode:    m.TripCode,
	}
}

func memberFromModel(m *GroupMemberModel) *ledger.Member {
	return &ledger.Member{
		ID:          m.ID,
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		Name:        m.Name,
		PhoneNumber: m.PhoneNumber,
		IsAdmin:     m.IsAdmin,
	}
}

func expenseFromModel(m *ExpenseModel) *ledger.Expense {
	return &ledger.Expense{
		ID:          m.ID,
		GroupID:     m.GroupID,
		Description: m.Description,
		Amount:      m.Amount,
		PaidBy:      m.PaidBy,
		SplitType:   ledger.SplitType(m.SplitType),
		ExpenseDate: m.ExpenseDate,
	}
}

func splitFromModel(m *ExpenseSplitModel) *ledger.Split {
	return &ledger.Split{
		ID:          m.ID,
		ExpenseID:   m.ExpenseID,
		MemberID:    m.MemberID,
		ShareAmount: m.ShareAmount,
		IsPaid:      m.IsPaid,
		PaidAt:      m.PaidAt,
	}
}
