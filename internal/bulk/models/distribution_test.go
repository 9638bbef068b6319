package models

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "coinledger/pkg/domain-errors"
)

func TestCalculateDistribution(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		n     int
		kind  DistributionType
		want  []int64
	}{
		{name: "remainder goes to the first recipients", total: 1000, n: 3, kind: DistributionEqual, want: []int64{334, 333, 333}},
		{name: "even split", total: 900, n: 3, kind: DistributionEqual, want: []int64{300, 300, 300}},
		{name: "single recipient", total: 7, n: 1, kind: DistributionEqual, want: []int64{7}},
		{name: "fewer coins than recipients", total: 2, n: 5, kind: DistributionEqual, want: []int64{1, 1, 0, 0, 0}},
		{name: "zero total", total: 0, n: 3, kind: DistributionEqual, want: []int64{0, 0, 0}},
		{name: "weighted uses equal split", total: 10, n: 4, kind: DistributionWeighted, want: []int64{3, 3, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateDistribution(tt.total, tt.n, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateDistributionRejectsBadInput(t *testing.T) {
	_, err := CalculateDistribution(-1, 3, DistributionEqual)
	assert.True(t, dErrors.HasReason(err, ReasonInvalidAmount))

	_, err = CalculateDistribution(100, 0, DistributionEqual)
	assert.True(t, dErrors.HasReason(err, ReasonInvalidRecipientCount))

	_, err = CalculateDistribution(100, 3, DistributionType("lottery"))
	assert.True(t, dErrors.HasReason(err, ReasonInvalidDistribution))
}

func TestCalculateDistributionSumsExactly(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))
	for range 1000 {
		total := r.Int64N(MaxTotalAmount + 1)
		n := r.IntN(MaxRecipientCount) + 1

		shares, err := CalculateDistribution(total, n, DistributionEqual)
		require.NoError(t, err)
		require.Len(t, shares, n)

		var sum int64
		for i, share := range shares {
			sum += share
			if i > 0 {
				require.LessOrEqual(t, share, shares[i-1], "shares are non-increasing")
			}
		}
		require.Equal(t, total, sum, "total=%d n=%d", total, n)
		require.LessOrEqual(t, shares[0]-shares[n-1], int64(1))
	}
}
