package ledger

import (
	"container/list"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// OutstandingPositions folds every unpaid split into a net cash position per
// member: the debtor still owes their share, the expense payer should receive
// it back. Paid splits and the payer's own split are already settled and do
// not move money.
func OutstandingPositions(expenses []Expense) []CashPosition {
	positionMap := make(map[uuid.UUID]*CashPosition)

	getPosition := func(id uuid.UUID) *CashPosition {
		if entry, ok := positionMap[id]; ok {
			return entry
		}
		entry := &CashPosition{MemberID: id}
		positionMap[id] = entry
		return entry
	}

	for _, expense := range expenses {
		for _, split := range expense.Splits {
			if split.IsPaid || split.MemberID == expense.PaidBy {
				continue
			}
			getPosition(split.MemberID).Owes += split.ShareAmount
			getPosition(expense.PaidBy).Owed += split.ShareAmount
		}
	}

	positions := make([]CashPosition, 0, len(positionMap))
	for _, entry := range positionMap {
		positions = append(positions, *entry)
	}
	return positions
}

// NormalizePositions merges duplicate entries per member and cancels Owes
// against Owed so that each position carries only one direction.
func NormalizePositions(positions []CashPosition) []CashPosition {
	merged := make(map[uuid.UUID]*CashPosition)

	for _, pos := range positions {
		if entry, ok := merged[pos.MemberID]; ok {
			entry.Owes += pos.Owes
			entry.Owed += pos.Owed
		} else {
			copied := pos
			merged[pos.MemberID] = &copied
		}
	}

	result := make([]CashPosition, 0, len(merged))
	for _, entry := range merged {
		if entry.Owes > entry.Owed {
			entry.Owes -= entry.Owed
			entry.Owed = 0
		} else {
			entry.Owed -= entry.Owes
			entry.Owes = 0
		}
		if entry.Owes < epsilon {
			entry.Owes = 0
		}
		if entry.Owed < epsilon {
			entry.Owed = 0
		}
		result = append(result, *entry)
	}
	return result
}

// generateQueues puts normalized positions into two sorted queues, debtors and
// creditors, each ordered by amount descending with member ID as tie breaker.
func generateQueues(positions []CashPosition) (*list.List, *list.List) {
	var debtors []CashPosition
	var creditors []CashPosition

	for _, pos := range positions {
		if pos.Owes > epsilon && pos.Owes > pos.Owed {
			debtors = append(debtors, pos)
		} else if pos.Owed > epsilon && pos.Owed > pos.Owes {
			creditors = append(creditors, pos)
		}
	}

	sort.SliceStable(debtors, func(i, j int) bool {
		if debtors[i].Owes == debtors[j].Owes {
			return debtors[i].MemberID.String() < debtors[j].MemberID.String()
		}
		return debtors[i].Owes > debtors[j].Owes
	})
	sort.SliceStable(creditors, func(i, j int) bool {
		if creditors[i].Owed == creditors[j].Owed {
			return creditors[i].MemberID.String() < creditors[j].MemberID.String()
		}
		return creditors[i].Owed > creditors[j].Owed
	})

	debtorQueue := list.New()
	for _, pos := range debtors {
		debtorQueue.PushBack(pos)
	}
	creditorQueue := list.New()
	for _, pos := range creditors {
		creditorQueue.PushBack(pos)
	}
	return debtorQueue, creditorQueue
}

// PlanTransfers converts the outstanding positions of a group into a small
// set of pairwise reimbursements. Each creditor is covered in turn by the
// largest remaining debtors; a debtor larger than the remaining gap is split
// and its remainder pushed back onto the queue. The returned float is the
// total debt left uncovered, which is zero whenever the positions balance.
func PlanTransfers(positions []CashPosition) ([]Transfer, float64, error) {
	normalized := NormalizePositions(positions)
	debtorQueue, creditorQueue := generateQueues(normalized)

	var transfers []Transfer

	for creditorQueue.Len() > 0 {
		creditorElem := creditorQueue.Front()
		creditorQueue.Remove(creditorElem)
		creditor := creditorElem.Value.(CashPosition)

		remaining := creditor.Owed
		for remaining > epsilon && debtorQueue.Len() > 0 {
			debtorElem := debtorQueue.Front()
			debtorQueue.Remove(debtorElem)
			debtor := debtorElem.Value.(CashPosition)

			contribution := debtor.Owes
			if contribution > remaining {
				contribution = remaining
				// Push the leftover back so it can cover the next creditor.
				debtorQueue.PushBack(CashPosition{
					MemberID: debtor.MemberID,
					Owes:     debtor.Owes - remaining,
				})
			}

			transfers = append(transfers, Transfer{
				From:   debtor.MemberID,
				To:     creditor.MemberID,
				Amount: contribution,
			})
			remaining -= contribution
		}

		if remaining > epsilon {
			return nil, remaining, fmt.Errorf("outstanding debts cannot cover %.2f owed to member %s", remaining, creditor.MemberID)
		}
	}

	// Anything still queued on the debtor side is money nobody claims.
	var uncovered float64
	for debtorQueue.Len() > 0 {
		debtorElem := debtorQueue.Front()
		debtorQueue.Remove(debtorElem)
		uncovered += debtorElem.Value.(CashPosition).Owes
	}
	return transfers, uncovered, nil
}

// SuggestTransfers is the one-call form: unpaid splits in, reimbursement plan out.
func SuggestTransfers(expenses []Expense) ([]Transfer, error) {
	transfers, _, err := PlanTransfers(OutstandingPositions(expenses))
	if err != nil {
		return nil, err
	}
	return transfers, nil
}
