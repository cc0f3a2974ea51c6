// Package noop provides a publisher that discards every message.
package noop

import "context"

// Publisher accepts publishes and drops them.
type Publisher struct{}

// New returns a noop Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish discards the payload and returns an empty ID.
func (Publisher) Publish(_ context.Context, _ string, _ any) (string, error) {
	return "", nil
}
