package channel

import (
	"context"
	"strings"
)

// Repository manages the allow-list of channels whose comments the bot answers
type Repository interface {
	Add(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	Contains(ctx context.Context, name string) (bool, error)
}

// Normalize lowercases a channel name and strips the "r/" forms users type
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "/")
	return strings.TrimPrefix(name, "r/")
}
