package ledger

// Summarize reduces all expenses and their splits into one balance entry per
// member. It is a pure function of its inputs: every read goes back to the
// store, nothing is cached here. A member without any matching split gets a
// zeroed entry.
func Summarize(expenses []Expense, members []Member) []MemberBalance {
	balances := make([]MemberBalance, 0, len(members))
	for _, member := range members {
		balance := MemberBalance{Member: member}
		for _, expense := range expenses {
			for _, split := range expense.Splits {
				if split.MemberID != member.ID {
					continue
				}
				if split.IsPaid {
					balance.TotalPaid += split.ShareAmount
				} else {
					balance.TotalOwed += split.ShareAmount
					balance.PendingCount++
				}
			}
		}
		balances = append(balances, balance)
	}
	return balances
}
