// Package command defines the operations users can request and the pure lexer that
// turns event text into them.
package command

import (
	"github.com/shopspring/decimal"
)

// Command is one of Tip, Withdraw, WalletQuery or ChannelAdmin
type Command interface {
	isCommand()
}

// Tip transfers Amount units from the author to Receiver
type Tip struct {
	Amount    decimal.Decimal
	Receiver  string
	Note      string
	Anonymous bool
}

// Withdraw moves Amount units, or the whole balance when All is set, to an external address
type Withdraw struct {
	Amount      decimal.Decimal
	All         bool
	Destination string
	Note        string
}

// WalletQuery asks for the author's address and balance
type WalletQuery struct{}

// ChannelAction is the verb of a channel administration command
type ChannelAction string

const (
	ChannelAdd    ChannelAction = "add"
	ChannelRemove ChannelAction = "remove"
	ChannelList   ChannelAction = "list"
)

// ChannelAdmin edits or lists the channel allow-list
type ChannelAdmin struct {
	Action  ChannelAction
	Channel string
}

func (Tip) isCommand()          {}
func (Withdraw) isCommand()     {}
func (WalletQuery) isCommand()  {}
func (ChannelAdmin) isCommand() {}
