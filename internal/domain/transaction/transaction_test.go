package transaction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMicro(t *testing.T) {
	testCases := []struct {
		in   string
		want int64
	}{
		{"5", 5_000_000},
		{"0.1", 100_000},
		{"0.000001", 1},
		{"0.0000001", 0},
		{"1.2345678", 1_234_567},
		{"1e-7", 0},
		{"0", 0},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ToMicro(decimal.RequireFromString(tc.in)))
		})
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "5", FormatUnits(5_000_000))
	assert.Equal(t, "0.1", FormatUnits(100_000))
	assert.Equal(t, "0.000001", FormatUnits(1))
	assert.Equal(t, "4.998", FormatUnits(4_998_000))
}

func TestTransaction_Lifecycle(t *testing.T) {
	t.Run("ConfirmedPath", func(t *testing.T) {
		tx := New(KindTip, 1, "alice", 5_000_000, "hello", Origin{EventID: "m1"})
		assert.Equal(t, StateCreated, tx.State)

		require.NoError(t, tx.MarkValidated())
		now := time.Now()
		require.NoError(t, tx.MarkSubmitted("TXID", now))
		assert.Equal(t, "TXID", tx.ChainTxID)
		require.NotNil(t, tx.SubmittedAt)

		require.NoError(t, tx.MarkConfirmed(42, now.Add(time.Second)))
		assert.Equal(t, StateConfirmed, tx.State)
		assert.Equal(t, uint64(42), tx.ConfirmedRound)
		assert.True(t, tx.State.Terminal())
	})

	t.Run("RejectedPath", func(t *testing.T) {
		tx := New(KindWithdraw, 1, "alice", 1, "", Origin{})
		require.NoError(t, tx.MarkValidated())
		require.NoError(t, tx.MarkSubmitted("TXID", time.Now()))
		require.NoError(t, tx.MarkRejected("overspend"))
		assert.Equal(t, StateRejected, tx.State)
		assert.Equal(t, "overspend", tx.FailureReason)
	})

	t.Run("UnconfirmedPath", func(t *testing.T) {
		tx := New(KindWithdraw, 1, "alice", 1, "", Origin{})
		require.NoError(t, tx.MarkValidated())
		require.NoError(t, tx.MarkSubmitted("TXID", time.Now()))
		require.NoError(t, tx.MarkUnconfirmed())
		assert.Equal(t, StateUnconfirmed, tx.State)
	})

	t.Run("NoStateIsSkipped", func(t *testing.T) {
		tx := New(KindTip, 1, "alice", 1, "", Origin{})
		assert.ErrorIs(t, tx.MarkSubmitted("TXID", time.Now()), ErrInvalidTransition)
		assert.ErrorIs(t, tx.MarkConfirmed(1, time.Now()), ErrInvalidTransition)
		assert.ErrorIs(t, tx.MarkRejected("x"), ErrInvalidTransition)
		assert.Equal(t, StateCreated, tx.State)
	})

	t.Run("TerminalStatesAreFinal", func(t *testing.T) {
		tx := New(KindTip, 1, "alice", 1, "", Origin{})
		require.NoError(t, tx.MarkValidated())
		require.NoError(t, tx.MarkSubmitted("TXID", time.Now()))
		require.NoError(t, tx.MarkConfirmed(1, time.Now()))
		assert.ErrorIs(t, tx.MarkRejected("late"), ErrInvalidTransition)
		assert.ErrorIs(t, tx.MarkValidated(), ErrInvalidTransition)
	})

	t.Run("EmptyChainTxID", func(t *testing.T) {
		tx := New(KindTip, 1, "alice", 1, "", Origin{})
		require.NoError(t, tx.MarkValidated())
		assert.Error(t, tx.MarkSubmitted("", time.Now()))
		assert.Equal(t, StateValidated, tx.State)
	})
}

func TestResult(t *testing.T) {
	tx := New(KindTip, 1, "alice", 1, "", Origin{})
	ok := Submitted(tx)
	assert.False(t, ok.IsRejected())
	assert.Same(t, tx, ok.Submitted)

	rej := Rejected(Rejection{Reason: ReasonInsufficientFunds, Amount: 5, Required: 7, Available: 6})
	assert.True(t, rej.IsRejected())
	assert.Nil(t, rej.Submitted)
	assert.Equal(t, int64(6), rej.Rejection.Available)
}
