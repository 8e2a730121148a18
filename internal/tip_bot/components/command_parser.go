package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/command"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/tip_bot/service"
)

// AddressValidator checks destination addresses against the chain's address scheme
type AddressValidator interface {
	ValidAddress(addr string) bool
}

type CommandParserImpl struct {
	directory service.Directory
	addresses AddressValidator
	prefixes  []string
	logger    *slog.Logger
}

func NewCommandParser(directory service.Directory, addresses AddressValidator, prefixes []string, logger *slog.Logger) service.CommandParser {
	return &CommandParserImpl{
		directory: directory,
		addresses: addresses,
		prefixes:  prefixes,
		logger:    logger,
	}
}

// Parse lexes the event text and then applies the checks that need collaborators.
// Rejections are *command.ParseError; any other error means a collaborator failed.
func (p *CommandParserImpl) Parse(ctx context.Context, ev event.Event) (command.Command, error) {
	in := command.Input{Body: ev.Text()}
	switch e := ev.(type) {
	case *event.Comment:
		in.IsComment = true
		in.ParentAuthor = e.ParentAuthor
		in.Prefixes = p.prefixes
	case *event.Message:
		in.Subject = e.Subject
	}

	cmd, err := command.Lex(in)
	if err != nil {
		return nil, err
	}

	author := account.NormalizeIdentity(ev.AuthorName())

	switch c := cmd.(type) {
	case command.Tip:
		if c.Receiver == author {
			return nil, &command.ParseError{Kind: command.KindInvalidCommand, Text: ev.Text()}
		}
		// comment receivers are the parent post's author and known to exist
		if in.IsComment {
			return c, nil
		}
		exists, err := p.directory.IdentityExists(ctx, c.Receiver)
		if err != nil {
			return nil, fmt.Errorf("failed to verify identity %s: %w", c.Receiver, err)
		}
		if !exists {
			return nil, &command.ParseError{Kind: command.KindUnknownIdentity, Text: ev.Text(), Subject: c.Receiver}
		}

	case command.Withdraw:
		if !p.addresses.ValidAddress(c.Destination) {
			return nil, &command.ParseError{Kind: command.KindInvalidAddress, Text: ev.Text(), Subject: c.Destination}
		}

	case command.ChannelAdmin:
		if c.Action == command.ChannelList {
			return c, nil
		}
		exists, err := p.directory.ChannelExists(ctx, c.Channel)
		if err != nil {
			return nil, fmt.Errorf("failed to verify channel %s: %w", c.Channel, err)
		}
		if !exists {
			return nil, &command.ParseError{Kind: command.KindUnknownChannel, Text: ev.Text(), Subject: c.Channel}
		}
		moderator, err := p.directory.IsModerator(ctx, author, c.Channel)
		if err != nil {
			return nil, fmt.Errorf("failed to check moderators of %s: %w", c.Channel, err)
		}
		if !moderator {
			p.logger.Info("Channel change refused for non-moderator", "author", author, "channel", c.Channel)
			return nil, &command.ParseError{Kind: command.KindNotModerator, Text: ev.Text(), Subject: c.Channel}
		}
	}

	return cmd, nil
}
