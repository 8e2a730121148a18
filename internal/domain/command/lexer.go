package command

import (
	"strings"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/channel"
	"github.com/shopspring/decimal"
)

// Input is everything the lexer needs from an event
type Input struct {
	Body         string
	Subject      string // message subject, empty for comments
	IsComment    bool
	ParentAuthor string   // comment receiver
	Prefixes     []string // lowercased comment invocation prefixes
}

// IsInvocation reports whether a comment body starts with one of the prefixes
func IsInvocation(body string, prefixes []string) bool {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return false
	}
	first := strings.ToLower(fields[0])
	for _, p := range prefixes {
		if first == p {
			return true
		}
	}
	return false
}

// Lex parses event text into a command without consulting any collaborator.
// Identities and channels come back normalized; addresses are returned verbatim.
func Lex(in Input) (Command, error) {
	fields := strings.Fields(in.Body)
	if in.IsComment {
		return lexComment(in, fields)
	}
	if len(fields) == 0 {
		return nil, invalid(in.Body)
	}

	switch strings.ToLower(fields[0]) {
	case "tip":
		return lexTip(in, fields[1:])
	case "withdraw":
		return lexWithdraw(in, fields[1:])
	case "wallet":
		if len(fields) != 1 {
			return nil, invalid(in.Body)
		}
		return WalletQuery{}, nil
	case "subreddit":
		return lexChannelAdmin(in, fields[1:])
	default:
		return nil, invalid(in.Body)
	}
}

// lexComment handles "<prefix> <amount> [note...]" addressed to the parent author
func lexComment(in Input, fields []string) (Command, error) {
	if !IsInvocation(in.Body, in.Prefixes) || len(fields) < 2 {
		return nil, invalid(in.Body)
	}
	amount, ok := parseAmount(fields[1])
	if !ok {
		return nil, invalid(in.Body)
	}
	receiver := account.NormalizeIdentity(in.ParentAuthor)
	if receiver == "" {
		return nil, invalid(in.Body)
	}
	return Tip{
		Amount:   amount,
		Receiver: receiver,
		Note:     strings.Join(fields[2:], " "),
	}, nil
}

func lexTip(in Input, args []string) (Command, error) {
	if len(args) < 2 {
		return nil, invalid(in.Body)
	}
	amount, ok := parseAmount(args[0])
	if !ok {
		return nil, invalid(in.Body)
	}
	receiver := account.NormalizeIdentity(args[1])
	if receiver == "" {
		return nil, invalid(in.Body)
	}
	return Tip{
		Amount:    amount,
		Receiver:  receiver,
		Note:      strings.Join(args[2:], " "),
		Anonymous: strings.EqualFold(strings.TrimSpace(in.Subject), "anonymous"),
	}, nil
}

func lexWithdraw(in Input, args []string) (Command, error) {
	if len(args) < 2 {
		return nil, invalid(in.Body)
	}
	w := Withdraw{
		Destination: args[1],
		Note:        strings.Join(args[2:], " "),
	}
	if strings.EqualFold(args[0], "all") {
		w.All = true
		return w, nil
	}
	amount, ok := parseAmount(args[0])
	if !ok {
		return nil, invalid(in.Body)
	}
	w.Amount = amount
	return w, nil
}

func lexChannelAdmin(in Input, args []string) (Command, error) {
	if len(args) == 0 {
		return nil, invalid(in.Body)
	}
	action := ChannelAction(strings.ToLower(args[0]))
	switch action {
	case ChannelList:
		if len(args) != 1 {
			return nil, invalid(in.Body)
		}
		return ChannelAdmin{Action: ChannelList}, nil
	case ChannelAdd, ChannelRemove:
		if len(args) != 2 {
			return nil, invalid(in.Body)
		}
		name := channel.Normalize(args[1])
		if name == "" {
			return nil, invalid(in.Body)
		}
		return ChannelAdmin{Action: action, Channel: name}, nil
	default:
		return nil, invalid(in.Body)
	}
}

// parseAmount accepts non-negative decimal numbers, including exponent notation
func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}
