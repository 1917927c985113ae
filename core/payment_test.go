package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicAmount(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int
		want     uint64
	}{
		{"1", 0, 1},
		{"1", 6, 1_000_000},
		{"12.5", 6, 12_500_000},
		{"0.000001", 6, 1},
		{"2.000000", 6, 2_000_000},
		{"0.5", 9, 500_000_000},
	}
	for _, tt := range tests {
		got, err := AtomicAmount(tt.amount, tt.decimals)
		require.NoError(t, err, "amount %s decimals %d", tt.amount, tt.decimals)
		assert.Equal(t, tt.want, got, "amount %s decimals %d", tt.amount, tt.decimals)
	}
}

func TestAtomicAmountRejections(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
	}{
		{"zero", "0", 6},
		{"negative", "-1", 6},
		{"not a number", "ten", 6},
		{"empty", "", 6},
		{"excess precision", "0.0000001", 6},
		{"overflow", "99999999999999999999", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AtomicAmount(tt.amount, tt.decimals)
			assert.ErrorIs(t, err, ErrInvalidIntent)
		})
	}
}

func TestChallengeMessageIsDeterministic(t *testing.T) {
	assert.Equal(t, ChallengeMessage("abc"), ChallengeMessage("abc"))
	assert.NotEqual(t, ChallengeMessage("abc"), ChallengeMessage("abd"))
}
