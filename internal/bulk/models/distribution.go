package models

import (
	dErrors "coinledger/pkg/domain-errors"
)

// CalculateDistribution splits total across n recipients. The shares always
// sum to total; the first total%n recipients receive one extra unit.
//
// Weighted distribution has no agreed weighting yet and uses the equal split.
func CalculateDistribution(total int64, n int, kind DistributionType) ([]int64, error) {
	if total < 0 {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonInvalidAmount, "total amount cannot be negative")
	}
	if n < 1 {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonInvalidRecipientCount, "recipient count must be at least 1")
	}
	switch kind {
	case DistributionEqual, DistributionWeighted:
		return equalSplit(total, n), nil
	default:
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonInvalidDistribution, "unknown distribution type: "+string(kind))
	}
}

func equalSplit(total int64, n int) []int64 {
	base := total / int64(n)
	remainder := int(total % int64(n))
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if i < remainder {
			shares[i]++
		}
	}
	return shares
}
