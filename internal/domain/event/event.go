// Package event models inbound platform events and the surfaces that deliver and
// answer them.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind names an event variant on the wire
type Kind string

const (
	KindComment Kind = "comment"
	KindMessage Kind = "message"
)

// Event is either a *Comment or a *Message
type Event interface {
	EventID() string
	EventKind() Kind
	AuthorName() string
	Text() string
	isEvent()
}

// Comment is a public post that mentions the bot; the tip receiver is the parent author
type Comment struct {
	ID           string
	Author       string
	Body         string
	ParentAuthor string
	Channel      string
	CreatedAt    time.Time
}

func (c *Comment) EventID() string    { return c.ID }
func (c *Comment) EventKind() Kind    { return KindComment }
func (c *Comment) AuthorName() string { return c.Author }
func (c *Comment) Text() string       { return c.Body }
func (*Comment) isEvent()             {}

// Message is a private message addressed to the bot
type Message struct {
	ID        string
	Author    string
	Subject   string
	Body      string
	CreatedAt time.Time
}

func (m *Message) EventID() string    { return m.ID }
func (m *Message) EventKind() Kind    { return KindMessage }
func (m *Message) AuthorName() string { return m.Author }
func (m *Message) Text() string       { return m.Body }
func (*Message) isEvent()             {}

var ErrUnknownEventKind = errors.New("unknown event kind")

// Envelope is the JSON shape the platform bridge publishes
type Envelope struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Author       string    `json:"author"`
	Body         string    `json:"body"`
	Subject      string    `json:"subject,omitempty"`
	ParentAuthor string    `json:"parent_author,omitempty"`
	Channel      string    `json:"channel,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Decode parses a bridge payload into an event variant
func Decode(payload []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	return env.ToEvent()
}

// ToEvent converts the envelope into its variant
func (e Envelope) ToEvent() (Event, error) {
	if e.ID == "" {
		return nil, errors.New("event id is required")
	}
	if e.Author == "" {
		return nil, errors.New("event author is required")
	}
	switch e.Kind {
	case KindComment:
		return &Comment{
			ID:           e.ID,
			Author:       e.Author,
			Body:         e.Body,
			ParentAuthor: e.ParentAuthor,
			Channel:      e.Channel,
			CreatedAt:    e.CreatedAt,
		}, nil
	case KindMessage:
		return &Message{
			ID:        e.ID,
			Author:    e.Author,
			Subject:   e.Subject,
			Body:      e.Body,
			CreatedAt: e.CreatedAt,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
}

// Encode renders an event back into its wire envelope
func Encode(ev Event) ([]byte, error) {
	var env Envelope
	switch e := ev.(type) {
	case *Comment:
		env = Envelope{ID: e.ID, Kind: KindComment, Author: e.Author, Body: e.Body,
			ParentAuthor: e.ParentAuthor, Channel: e.Channel, CreatedAt: e.CreatedAt}
	case *Message:
		env = Envelope{ID: e.ID, Kind: KindMessage, Author: e.Author, Body: e.Body,
			Subject: e.Subject, CreatedAt: e.CreatedAt}
	default:
		return nil, ErrUnknownEventKind
	}
	return json.Marshal(env)
}
