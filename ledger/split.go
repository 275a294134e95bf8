package ledger

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ComputeSplits turns a split request into one Split per selected member.
// roster is the group's current member list; PaidBy must belong to it.
// The split whose member equals PaidBy starts paid, all others start pending.
// PaidBy does not have to be among the selected members; when it is not,
// every produced split starts pending.
func ComputeSplits(req SplitRequest, roster []Member) ([]Split, error) {
	if err := validateRequest(req, roster); err != nil {
		return nil, err
	}

	strategy, err := strategyFor(req.SplitType)
	if err != nil {
		return nil, err
	}

	shares, err := strategy(req)
	if err != nil {
		return nil, err
	}

	splits := make([]Split, 0, len(req.SelectedMembers))
	for _, memberID := range req.SelectedMembers {
		splits = append(splits, Split{
			MemberID:    memberID,
			ShareAmount: shares[memberID],
			IsPaid:      memberID == req.PaidBy,
		})
	}
	return splits, nil
}

func strategyFor(splitType SplitType) (shareStrategy, error) {
	switch splitType {
	case SplitTypeEqual:
		return equalShares, nil
	case SplitTypeCustom:
		return customShares, nil
	default:
		return nil, fmt.Errorf("%w: unknown split type %q", ErrValidation, splitType)
	}
}

func validateRequest(req SplitRequest, roster []Member) error {
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %.2f", ErrValidation, req.Amount)
	}
	if len(req.SelectedMembers) == 0 {
		return fmt.Errorf("%w: at least one member must be selected", ErrValidation)
	}

	known := make(map[uuid.UUID]bool, len(roster))
	for _, m := range roster {
		known[m.ID] = true
	}
	if !known[req.PaidBy] {
		return fmt.Errorf("%w: payer %s is not a group member", ErrValidation, req.PaidBy)
	}

	seen := make(map[uuid.UUID]bool, len(req.SelectedMembers))
	for _, id := range req.SelectedMembers {
		if !known[id] {
			return fmt.Errorf("%w: selected member %s is not a group member", ErrValidation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: member %s selected twice", ErrValidation, id)
		}
		seen[id] = true
	}
	return nil
}

// equalShares gives every selected member, payer included, an identical
// fraction of the total. Plain float division, no remainder redistribution.
func equalShares(req SplitRequest) (map[uuid.UUID]float64, error) {
	share := req.Amount / float64(len(req.SelectedMembers))
	shares := make(map[uuid.UUID]float64, len(req.SelectedMembers))
	for _, id := range req.SelectedMembers {
		shares[id] = share
	}
	return shares, nil
}

// customShares uses caller supplied amounts, defaulting a missing member to
// zero. The shares must add up to the expense amount within one cent.
func customShares(req SplitRequest) (map[uuid.UUID]float64, error) {
	shares := make(map[uuid.UUID]float64, len(req.SelectedMembers))
	total := 0.0
	for _, id := range req.SelectedMembers {
		share := req.CustomShares[id]
		if share < 0 {
			return nil, fmt.Errorf("%w: share for member %s must not be negative", ErrValidation, id)
		}
		shares[id] = share
		total += share
	}
	if math.Abs(total-req.Amount) > centTolerance {
		return nil, fmt.Errorf("%w: custom shares sum to %.2f, expense amount is %.2f", ErrValidation, total, req.Amount)
	}
	return shares, nil
}
