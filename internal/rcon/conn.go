// Package rcon implements the remote console client: a single authenticated
// TCP connection to a game server and the command dispatcher that runs
// on top of it.
package rcon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/protocol"
)

// DefaultTimeout applies when a zero timeout is passed to Dial.
const DefaultTimeout = 10 * time.Second

// Conn is one remote console session. It is created by Dial, must be
// authenticated exactly once, and becomes permanently unusable after Close
// or after any I/O error.
//
// Execute holds an internal lock for the whole exchange, so at most one
// command is in flight per Conn.
type Conn struct {
	mu sync.Mutex

	conn    net.Conn
	reader  *bufio.Reader
	addr    string
	timeout time.Duration
	logger  zerolog.Logger

	reassembler Reassembler

	nextID        int32
	authenticated bool
	closed        bool
}

// Option configures a Conn.
type Option func(*Conn)

// WithReassembler replaces the strategy used to collect command replies.
func WithReassembler(r Reassembler) Option {
	return func(c *Conn) {
		if r != nil {
			c.reassembler = r
		}
	}
}

// Dial opens a TCP connection to addr. The timeout bounds the dial and is
// kept as the default deadline for authentication and every command.
func Dial(ctx context.Context, addr string, timeout time.Duration, opts ...Option) (*Conn, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDial, addr, err)
	}

	c := newConn(nc, addr, timeout, opts...)
	c.logger.Debug().Msg("connected")
	return c, nil
}

func newConn(nc net.Conn, addr string, timeout time.Duration, opts ...Option) *Conn {
	c := &Conn{
		conn:        nc,
		reader:      bufio.NewReader(nc),
		addr:        addr,
		timeout:     timeout,
		reassembler: SentinelReassembler{},
		nextID:      1,
		logger:      log.With().Str("component", "rcon").Str("addr", addr).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate logs in with the console password. It may only succeed once;
// any failure closes the connection.
func (c *Conn) Authenticate(ctx context.Context, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	if c.authenticated {
		return nil
	}

	stop := c.armDeadline(ctx)
	defer stop()

	id := c.allocateID()
	if err := c.writePacket(id, protocol.TypeAuth, password); err != nil {
		return c.fail(fmt.Errorf("%w: %w", ErrAuthFailed, err))
	}

	for {
		pkt, err := c.readPacket()
		if err != nil {
			if isTimeout(err) {
				return c.fail(fmt.Errorf("%w: no response within %s", ErrAuthFailed, c.timeout))
			}
			return c.fail(fmt.Errorf("%w: %w", ErrAuthFailed, err))
		}

		switch {
		case pkt.RequestID == protocol.AuthFailedID:
			return c.fail(ErrAuthRejected)

		case pkt.RequestID != id:
			return c.fail(fmt.Errorf("%w: unexpected request id %d (sent %d)", ErrAuthFailed, pkt.RequestID, id))

		case pkt.Type == protocol.TypeResponseValue && len(pkt.Payload) == 0:
			// Some servers send an empty value packet ahead of the auth response.
			continue

		case pkt.Type != protocol.TypeAuthResponse:
			return c.fail(fmt.Errorf("%w: unexpected packet type %d", ErrAuthFailed, pkt.Type))
		}

		c.authenticated = true
		c.logger.Debug().Int32("request_id", id).Msg("authenticated")
		return nil
	}
}

// Execute runs one command and returns its complete textual reply.
// A timeout or I/O error closes the connection; partial output is discarded.
func (c *Conn) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrConnClosed
	}
	if !c.authenticated {
		return "", ErrNotAuthenticated
	}

	stop := c.armDeadline(ctx)
	defer stop()

	start := time.Now()
	resp, err := c.reassembler.Reassemble(transport{c}, command)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrInvalidPayload):
			// Nothing was written; the session is still usable.
			return "", err
		case isTimeout(err):
			if ctx.Err() != nil {
				return "", c.fail(fmt.Errorf("%w: %w", ErrCommandTimeout, ctx.Err()))
			}
			return "", c.fail(fmt.Errorf("%w after %s", ErrCommandTimeout, c.timeout))
		default:
			return "", c.fail(err)
		}
	}

	c.logger.Trace().
		Str("command", command).
		Int("response_len", len(resp)).
		Dur("duration", time.Since(start)).
		Msg("command executed")

	return resp, nil
}

// Close releases the socket. Closing twice, or closing a Conn that failed,
// is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

// IsClosed returns whether the connection has reached its terminal state.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsAuthenticated returns whether the login handshake succeeded.
func (c *Conn) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Addr returns the address the connection was dialed with.
func (c *Conn) Addr() string {
	return c.addr
}

func (c *Conn) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.authenticated = false
	c.logger.Debug().Msg("connection closed")
	return c.conn.Close()
}

// fail moves the connection into its terminal state and returns err.
func (c *Conn) fail(err error) error {
	c.closeLocked()
	c.logger.Warn().Err(err).Msg("connection invalidated")
	return err
}

// armDeadline applies the per-call deadline (the earlier of the configured
// timeout and the context deadline) and interrupts blocked I/O if ctx is
// cancelled. The returned func must be called when the call completes.
func (c *Conn) armDeadline(ctx context.Context) func() {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		c.conn.SetDeadline(time.Time{})
	}
}

// allocateID returns the next request id. Ids stay strictly positive so they
// can never collide with the -1 rejection marker.
func (c *Conn) allocateID() int32 {
	id := c.nextID
	if c.nextID == math.MaxInt32 {
		c.nextID = 1
	} else {
		c.nextID++
	}
	return id
}

func (c *Conn) writePacket(id int32, typ protocol.PacketType, payload string) error {
	if err := protocol.WritePacket(c.conn, id, typ, payload); err != nil {
		return err
	}
	c.logger.Trace().Int32("request_id", id).Int32("type", int32(typ)).Int("len", len(payload)).Msg("packet sent")
	return nil
}

func (c *Conn) readPacket() (protocol.Packet, error) {
	pkt, err := protocol.ReadPacket(c.reader)
	if err != nil {
		return pkt, err
	}
	c.logger.Trace().Int32("request_id", pkt.RequestID).Int32("type", int32(pkt.Type)).Int("len", len(pkt.Payload)).Msg("packet received")
	return pkt, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// transport exposes the framing primitives of a locked Conn to a Reassembler.
type transport struct {
	c *Conn
}

func (t transport) NextRequestID() int32 {
	return t.c.allocateID()
}

func (t transport) Send(id int32, typ protocol.PacketType, payload string) error {
	return t.c.writePacket(id, typ, payload)
}

func (t transport) Receive() (protocol.Packet, error) {
	return t.c.readPacket()
}

func (t transport) Logger() *zerolog.Logger {
	return &t.c.logger
}
