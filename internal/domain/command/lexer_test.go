package command

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLex_Messages(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		subject string
		want    Command
	}{
		{"Tip", "tip 5 bob hello there", "", Tip{Amount: dec("5"), Receiver: "bob", Note: "hello there"}},
		{"TipUppercaseVerb", "TIP 0.5 Bob", "", Tip{Amount: dec("0.5"), Receiver: "bob"}},
		{"TipUserPrefix", "tip 1 /u/Bob", "", Tip{Amount: dec("1"), Receiver: "bob"}},
		{"TipAnonymous", "tip 1 bob", "Anonymous", Tip{Amount: dec("1"), Receiver: "bob", Anonymous: true}},
		{"TipExponent", "tip 1e-7 bob", "", Tip{Amount: dec("1e-7"), Receiver: "bob"}},
		{"WithdrawAmount", "withdraw 2.5 ADDR note", "", Withdraw{Amount: dec("2.5"), Destination: "ADDR", Note: "note"}},
		{"WithdrawAll", "withdraw ALL ADDR", "", Withdraw{All: true, Destination: "ADDR"}},
		{"Wallet", "Wallet", "", WalletQuery{}},
		{"ChannelList", "subreddit list", "", ChannelAdmin{Action: ChannelList}},
		{"ChannelAdd", "subreddit add r/AlgoTips", "", ChannelAdmin{Action: ChannelAdd, Channel: "algotips"}},
		{"ChannelRemove", "subreddit REMOVE algotips", "", ChannelAdmin{Action: ChannelRemove, Channel: "algotips"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Lex(Input{Body: tc.body, Subject: tc.subject})
			require.NoError(t, err)
			if tip, ok := tc.want.(Tip); ok {
				gotTip, ok := got.(Tip)
				require.True(t, ok)
				assert.True(t, tip.Amount.Equal(gotTip.Amount))
				tip.Amount, gotTip.Amount = decimal.Zero, decimal.Zero
				assert.Equal(t, tip, gotTip)
				return
			}
			if w, ok := tc.want.(Withdraw); ok {
				gotW, ok := got.(Withdraw)
				require.True(t, ok)
				assert.True(t, w.Amount.Equal(gotW.Amount))
				w.Amount, gotW.Amount = decimal.Zero, decimal.Zero
				assert.Equal(t, w, gotW)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLex_InvalidMessages(t *testing.T) {
	bodies := []string{
		"",
		"hello bot",
		"tip",
		"tip 5",
		"tip -5 bob",
		"tip five bob",
		"tip NaN bob",
		"withdraw",
		"withdraw 5",
		"withdraw -1 ADDR",
		"wallet please",
		"subreddit",
		"subreddit list extra",
		"subreddit add",
		"subreddit add a b",
		"subreddit rename a",
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			_, err := Lex(Input{Body: body})
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
			assert.Equal(t, KindInvalidCommand, perr.Kind)
			assert.Equal(t, body, perr.Text)
		})
	}
}

func TestLex_Comments(t *testing.T) {
	prefixes := []string{"!atip"}

	t.Run("TipToParentAuthor", func(t *testing.T) {
		got, err := Lex(Input{Body: "!ATIP 1.5 great post", IsComment: true, ParentAuthor: "Bob", Prefixes: prefixes})
		require.NoError(t, err)
		tip := got.(Tip)
		assert.True(t, dec("1.5").Equal(tip.Amount))
		assert.Equal(t, "bob", tip.Receiver)
		assert.Equal(t, "great post", tip.Note)
		assert.False(t, tip.Anonymous)
	})

	t.Run("MissingAmount", func(t *testing.T) {
		_, err := Lex(Input{Body: "!atip", IsComment: true, ParentAuthor: "bob", Prefixes: prefixes})
		assert.ErrorIs(t, err, &ParseError{Kind: KindInvalidCommand})
	})

	t.Run("NoParentAuthor", func(t *testing.T) {
		_, err := Lex(Input{Body: "!atip 1", IsComment: true, Prefixes: prefixes})
		assert.ErrorIs(t, err, &ParseError{Kind: KindInvalidCommand})
	})

	t.Run("MessageVerbsAreNotCommentCommands", func(t *testing.T) {
		_, err := Lex(Input{Body: "withdraw 1 ADDR", IsComment: true, ParentAuthor: "bob", Prefixes: prefixes})
		assert.ErrorIs(t, err, &ParseError{Kind: KindInvalidCommand})
	})
}

func TestIsInvocation(t *testing.T) {
	prefixes := []string{"!atip", "!algo"}
	assert.True(t, IsInvocation("!atip 1", prefixes))
	assert.True(t, IsInvocation("  !ALGO 1", prefixes))
	assert.False(t, IsInvocation("thanks !atip 1", prefixes))
	assert.False(t, IsInvocation("", prefixes))
}

func TestParseError(t *testing.T) {
	err := &ParseError{Kind: KindUnknownIdentity, Text: "tip 1 ghost", Subject: "ghost"}
	assert.EqualError(t, err, "UNKNOWN_IDENTITY: ghost")
	assert.ErrorIs(t, err, &ParseError{Kind: KindUnknownIdentity})
	assert.NotErrorIs(t, err, &ParseError{Kind: KindInvalidAddress})
	assert.ErrorIs(t, err, &ParseError{})
}
