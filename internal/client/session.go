package client

import (
	"context"
)

// Session is the facade surface consumed by outer layers.
type Session interface {
	Executor
	ServerSummary(ctx context.Context) Summary
	PlayerSummary(ctx context.Context, name string) (Summary, error)
	ResolveAction(ctx context.Context, domain, action, params string) (string, error)
	Disconnect() error
}

var _ Session = (*Client)(nil)

// OpenFunc returns a connected Session for one unit of work.
type OpenFunc func(ctx context.Context) (Session, error)

// Opener returns an OpenFunc that connects a fresh Client on every call.
func Opener(opts Options) OpenFunc {
	return func(ctx context.Context) (Session, error) {
		c := New(opts)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// WithSession opens a session, runs fn, and always disconnects.
func WithSession(ctx context.Context, open OpenFunc, fn func(Session) error) error {
	s, err := open(ctx)
	if err != nil {
		return err
	}
	defer s.Disconnect()
	return fn(s)
}
