package command

import "fmt"

// ErrorKind classifies why event text did not yield an executable command
type ErrorKind string

const (
	KindInvalidCommand  ErrorKind = "INVALID_COMMAND"
	KindUnknownIdentity ErrorKind = "UNKNOWN_IDENTITY"
	KindInvalidAddress  ErrorKind = "INVALID_ADDRESS"
	KindUnknownChannel  ErrorKind = "UNKNOWN_CHANNEL"
	KindNotModerator    ErrorKind = "NOT_MODERATOR"
)

// ParseError carries the offending input so the reply can quote it back
type ParseError struct {
	Kind    ErrorKind
	Text    string
	Subject string // identity, address or channel that failed a check
}

func (e *ParseError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("%s: %q", e.Kind, e.Text)
}

// Is matches any ParseError of the same kind
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

func invalid(text string) *ParseError {
	return &ParseError{Kind: KindInvalidCommand, Text: text}
}
