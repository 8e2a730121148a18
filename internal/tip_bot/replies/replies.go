// Package replies renders the text the bot posts back to the platform.
package replies

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/custodial-tipbot/internal/domain/command"
	"github.com/custodial-tipbot/internal/domain/transaction"
)

// Message is a rendered notification. Subject is only used for direct messages.
type Message struct {
	Subject string
	Body    string
}

const genericFailure = "Something went wrong while processing your request. Nothing was sent; please try again later."

const templates = `
{{define "welcome.subject"}}Your {{.Bot}} wallet{{end}}
{{define "welcome"}}Wallet created for {{.Identity}}.

Address: {{.Address}}

Send funds to this address to start tipping. Keep at least {{units .Reserve}} in the wallet; the chain requires it.{{end}}

{{define "no_wallet.subject"}}Wallet created{{end}}
{{define "no_wallet"}}You did not have a wallet yet, so one was created for you at {{.Address}}. Fund it and send your command again.{{end}}

{{define "wallet"}}Address: {{.Address}}

Balance: {{units .Balance}}{{end}}

{{define "parse_error.subject"}}Could not process your command{{end}}
{{define "parse_error"}}{{with .Err}}{{if eq .Kind "UNKNOWN_IDENTITY"}}User {{.Subject}} does not exist.
{{- else if eq .Kind "INVALID_ADDRESS"}}{{.Subject}} is not a valid address.
{{- else if eq .Kind "UNKNOWN_CHANNEL"}}Channel {{.Subject}} does not exist.
{{- else if eq .Kind "NOT_MODERATOR"}}Only moderators of {{.Subject}} can change whether the bot runs there.
{{- else}}Could not understand "{{.Text}}". Commands are: tip <amount> <user> [note], withdraw <amount|all> <address> [note], wallet, subreddit <add|remove|list> [name].{{end}}{{end}}{{end}}

{{define "rejection.subject"}}{{if eq .Kind "TIP"}}Tip{{else}}Withdrawal{{end}} not sent{{end}}
{{define "rejection"}}{{with .Rejection}}{{if eq .Reason "ZERO_AMOUNT"}}The amount must be at least {{units .Required}}.
{{- else if eq .Reason "INSUFFICIENT_FUNDS"}}Insufficient funds: this needs {{units .Required}} including the fee and reserve, your wallet holds {{units .Available}}.
{{- else}}The receiving wallet is empty, so the first transfer to it must be at least {{units .Required}}; you sent {{units .Amount}}.{{end}}{{end}}{{end}}

{{define "tip_sent.subject"}}Tip confirmed{{end}}
{{define "tip_sent"}}Tipped {{.Tx.ReceiverIdentity}} for {{units .Tx.Amount}} (fee {{units .Tx.Fee}}).

Transaction: {{.Tx.ChainTxID}}{{end}}

{{define "tip_received.subject"}}You received a tip{{end}}
{{define "tip_received"}}{{if .Tx.Anonymous}}Someone{{else}}{{.Tx.SenderIdentity}}{{end}} tipped you {{units .Tx.Amount}}.{{with .Tx.Note}}

Note: {{.}}{{end}}

Transaction: {{.Tx.ChainTxID}}{{end}}

{{define "tip_comment"}}{{if .Tx.Anonymous}}Someone{{else}}{{.Tx.SenderIdentity}}{{end}} tipped {{.Tx.ReceiverIdentity}} {{units .Tx.Amount}}.{{end}}

{{define "withdraw_sent"}}Withdrew {{units .Tx.Amount}} to {{.Tx.Destination}} (fee {{units .Tx.Fee}}){{if .Tx.CloseAccount}} and closed the wallet{{end}}.

Transaction: {{.Tx.ChainTxID}}{{end}}

{{define "tx_failed.subject"}}{{if eq .Tx.Kind "TIP"}}Tip{{else}}Withdrawal{{end}} failed{{end}}
{{define "tx_failed"}}Your {{if eq .Tx.Kind "TIP"}}tip of {{units .Tx.Amount}} to {{.Tx.ReceiverIdentity}}{{else}}withdrawal of {{units .Tx.Amount}} to {{.Tx.Destination}}{{end}} did not go through: {{.Tx.FailureReason}}.

Transaction: {{.Tx.ChainTxID}}{{end}}

{{define "channel_added"}}The bot now answers in {{.Channel}}.{{end}}
{{define "channel_removed"}}The bot no longer answers in {{.Channel}}.{{end}}
{{define "channel_list"}}{{if .Channels}}The bot answers in: {{join .Channels ", "}}.{{else}}The bot is not enabled in any channel.{{end}}{{end}}
`

// Renderer renders every reply from one parsed template set
type Renderer struct {
	tmpl    *template.Template
	botName string
	reserve int64
}

// NewRenderer parses the reply templates. reserve is quoted in the welcome message.
func NewRenderer(botName string, reserve int64) (*Renderer, error) {
	tmpl, err := template.New("replies").Funcs(template.FuncMap{
		"units": transaction.FormatUnits,
		"join":  strings.Join,
	}).Option("missingkey=error").Parse(templates)
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, botName: botName, reserve: reserve}, nil
}

func (r *Renderer) render(name string, data any) string {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return genericFailure
	}
	return strings.TrimSpace(buf.String())
}

func (r *Renderer) message(name string, data any) Message {
	return Message{Subject: r.render(name+".subject", data), Body: r.render(name, data)}
}

func (r *Renderer) Welcome(identity, address string) Message {
	return r.message("welcome", map[string]any{
		"Bot": r.botName, "Identity": identity, "Address": address, "Reserve": r.reserve,
	})
}

func (r *Renderer) NoWallet(address string) Message {
	return r.message("no_wallet", map[string]any{"Address": address})
}

func (r *Renderer) Wallet(address string, balance int64) string {
	return r.render("wallet", map[string]any{"Address": address, "Balance": balance})
}

func (r *Renderer) ParseError(err *command.ParseError) Message {
	return r.message("parse_error", map[string]any{"Err": err})
}

func (r *Renderer) Rejection(kind transaction.Kind, rej transaction.Rejection) Message {
	return r.message("rejection", map[string]any{"Kind": kind, "Rejection": rej})
}

func (r *Renderer) TipSent(tx *transaction.Transaction) Message {
	return r.message("tip_sent", map[string]any{"Tx": tx})
}

func (r *Renderer) TipReceived(tx *transaction.Transaction) Message {
	return r.message("tip_received", map[string]any{"Tx": tx})
}

func (r *Renderer) TipComment(tx *transaction.Transaction) string {
	return r.render("tip_comment", map[string]any{"Tx": tx})
}

func (r *Renderer) WithdrawSent(tx *transaction.Transaction) string {
	return r.render("withdraw_sent", map[string]any{"Tx": tx})
}

func (r *Renderer) TransactionFailed(tx *transaction.Transaction) Message {
	return r.message("tx_failed", map[string]any{"Tx": tx})
}

func (r *Renderer) ChannelAdded(name string) string {
	return r.render("channel_added", map[string]any{"Channel": name})
}

func (r *Renderer) ChannelRemoved(name string) string {
	return r.render("channel_removed", map[string]any{"Channel": name})
}

func (r *Renderer) ChannelList(names []string) string {
	return r.render("channel_list", map[string]any{"Channels": names})
}

// GenericFailure is sent when an event could not be handled for an unexpected reason
func (r *Renderer) GenericFailure() Message {
	return Message{Subject: "Request failed", Body: genericFailure}
}
