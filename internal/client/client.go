// Package client is the facade over the remote console: connect, run
// commands, fetch composite server and player summaries, and resolve
// plugin actions.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/actions"
	"github.com/energizer-project/craftcon/internal/rcon"
)

var (
	// ErrNotConnected is returned when a command is issued before Connect.
	ErrNotConnected = errors.New("not connected")

	// ErrEmptyPlayerName is returned by PlayerSummary for a blank name.
	ErrEmptyPlayerName = errors.New("player name is required")
)

// Executor runs a single console command.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// Client owns at most one authenticated connection. A Client must not be
// shared between unrelated logical requests; see Opener.
type Client struct {
	opts   Options
	logger zerolog.Logger

	mu   sync.Mutex
	conn *rcon.Conn
}

// New creates a disconnected client.
func New(opts Options) *Client {
	return &Client{
		opts:   opts,
		logger: log.With().Str("component", "client").Str("addr", opts.Addr()).Logger(),
	}
}

// Options returns the options the client was created with.
func (c *Client) Options() Options {
	return c.opts
}

// Connect dials and authenticates. Calling Connect on a live client is a
// no-op; a client whose connection failed is dialed afresh.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	if err := c.opts.Validate(); err != nil {
		return err
	}
	reassembler, _ := rcon.ReassemblerByName(c.opts.Reassembly)

	start := time.Now()
	conn, err := rcon.Dial(ctx, c.opts.Addr(), c.opts.timeout(), rcon.WithReassembler(reassembler))
	if err != nil {
		recordConnect(err)
		return err
	}

	if err := conn.Authenticate(ctx, c.opts.Password); err != nil {
		recordConnect(err)
		conn.Close()
		return err
	}

	recordConnect(nil)
	c.conn = conn
	c.logger.Debug().Dur("duration", time.Since(start)).Msg("connected and authenticated")
	return nil
}

// Disconnect closes the connection. It is safe to call repeatedly.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the client holds a usable connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Client) current() (*rcon.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// Execute runs one command. A transport failure leaves the client
// disconnected; the caller decides whether to Connect again.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	conn, err := c.current()
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := conn.Execute(ctx, command)
	recordCommand(start, err)
	if err != nil {
		c.logger.Debug().Err(err).Str("command", command).Msg("command failed")
		return "", err
	}
	return out, nil
}

// ServerSummary runs ServerQueries. Every key is always present.
func (c *Client) ServerSummary(ctx context.Context) Summary {
	return Summarize(ctx, c, ServerQueries)
}

// PlayerSummary runs PlayerQueries for name. Every key is always present.
func (c *Client) PlayerSummary(ctx context.Context, name string) (Summary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyPlayerName
	}
	return Summarize(ctx, c, PlayerQueries(name)), nil
}

// ResolveAction resolves a plugin action and executes the resulting command.
func (c *Client) ResolveAction(ctx context.Context, domain, action, params string) (string, error) {
	command, err := actions.ResolveNamed(domain, action, params)
	if err != nil {
		return "", err
	}
	out, err := c.Execute(ctx, command)
	if err != nil {
		return "", fmt.Errorf("%s: %w", command, err)
	}
	return out, nil
}
