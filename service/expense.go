package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartpay/ledger"
	"smartpay/mq/mq"
)

// CreateExpenseInput carries one expense to be recorded against a group.
// ExpenseDate defaults to now. CustomShares is only consulted for custom
// splits.
type CreateExpenseInput struct {
	GroupID         uuid.UUID
	Description     string
	Amount          float64
	PaidBy          uuid.UUID
	SplitType       ledger.SplitType
	ExpenseDate     time.Time
	SelectedMembers []uuid.UUID
	CustomShares    map[uuid.UUID]float64
}

// CreateExpense records an expense, computes its splits and persists both
// atomically. Any group member may record expenses.
func (s *GroupService) CreateExpense(actorMemberID uuid.UUID, input CreateExpenseInput) (*ledger.Expense, error) {
	if input.Description == "" {
		return nil, fmt.Errorf("%w: expense description is required", ledger.ErrValidation)
	}
	if _, err := s.requireMember(input.GroupID, actorMemberID); err != nil {
		return nil, err
	}

	roster, err := s.store.GetMembers(input.GroupID)
	if err != nil {
		return nil, err
	}

	splits, err := ledger.ComputeSplits(ledger.SplitRequest{
		Amount:          input.Amount,
		PaidBy:          input.PaidBy,
		SplitType:       input.SplitType,
		SelectedMembers: input.SelectedMembers,
		CustomShares:    input.CustomShares,
	}, roster)
	if err != nil {
		return nil, err
	}

	expenseDate := input.ExpenseDate
	if expenseDate.IsZero() {
		expenseDate = time.Now().UTC()
	}

	expense := &ledger.Expense{
		ID:          uuid.New(),
		GroupID:     input.GroupID,
		Description: input.Description,
		Amount:      input.Amount,
		PaidBy:      input.PaidBy,
		SplitType:   input.SplitType,
		ExpenseDate: expenseDate,
		Splits:      splits,
	}
	now := time.Now().UTC()
	for i := range expense.Splits {
		expense.Splits[i].ID = uuid.New()
		expense.Splits[i].ExpenseID = expense.ID
		if expense.Splits[i].IsPaid {
			paidAt := now
			expense.Splits[i].PaidAt = &paidAt
		}
	}

	if err := s.store.CreateExpenseWithSplits(expense); err != nil {
		return nil, err
	}

	if s.mq != nil {
		publish(s.mq.GetExpenseMessageQueue(mq.ActionCreate), mq.ExpenseMessage{
			GroupID:     expense.GroupID,
			ExpenseID:   expense.ID,
			Description: expense.Description,
			Amount:      expense.Amount,
			PaidBy:      expense.PaidBy,
		})
	}
	return expense, nil
}

// Expenses returns a group's expenses with their splits.
func (s *GroupService) Expenses(groupID uuid.UUID) ([]ledger.Expense, error) {
	if _, err := s.store.GetGroupInfo(groupID); err != nil {
		return nil, err
	}
	return s.store.GetExpenses(groupID)
}

// MarkSplitPaid settles one member's share of an expense. Only a group
// admin may confirm payments. Settling an already paid split is a no-op.
func (s *GroupService) MarkSplitPaid(actorMemberID uuid.UUID, splitID uuid.UUID) (*ledger.Split, error) {
	split, err := s.store.GetSplit(splitID)
	if err != nil {
		return nil, err
	}
	expense, err := s.store.GetExpense(split.ExpenseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(expense.GroupID, actorMemberID); err != nil {
		return nil, err
	}

	if split.IsPaid {
		return split, nil
	}

	settled, err := s.store.MarkSplitPaid(splitID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if s.mq != nil && settled.PaidAt != nil {
		publish(s.mq.GetSettlementMessageQueue(mq.ActionUpdate), mq.SettlementMessage{
			GroupID:   expense.GroupID,
			SplitID:   settled.ID,
			ExpenseID: settled.ExpenseID,
			MemberID:  settled.MemberID,
			PaidAt:    *settled.PaidAt,
		})
	}
	return settled, nil
}

// Balances aggregates every member's owed, paid and pending figures.
func (s *GroupService) Balances(groupID uuid.UUID) ([]ledger.MemberBalance, error) {
	if _, err := s.store.GetGroupInfo(groupID); err != nil {
		return nil, err
	}
	members, err := s.store.GetMembers(groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.GetExpenses(groupID)
	if err != nil {
		return nil, err
	}
	return ledger.Summarize(expenses, members), nil
}

// SuggestTransfers plans the minimal reimbursement payments that would
// settle everything currently outstanding.
func (s *GroupService) SuggestTransfers(groupID uuid.UUID) ([]ledger.Transfer, error) {
	if _, err := s.store.GetGroupInfo(groupID); err != nil {
		return nil, err
	}
	expenses, err := s.store.GetExpenses(groupID)
	if err != nil {
		return nil, err
	}
	return ledger.SuggestTransfers(expenses)
}
