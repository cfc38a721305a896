package rcon

import (
	"errors"
	"fmt"
)

var (
	// ErrDial is returned when the TCP connection cannot be established.
	ErrDial = errors.New("dial failed")

	// ErrAuthFailed is returned for any failed login, including protocol
	// violations during the handshake.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrAuthRejected means the server answered the login with request id -1
	// (wrong password). It matches ErrAuthFailed with errors.Is.
	ErrAuthRejected = fmt.Errorf("%w: rejected", ErrAuthFailed)

	// ErrNotAuthenticated is returned when a command is issued before login.
	ErrNotAuthenticated = errors.New("connection is not authenticated")

	// ErrCommandTimeout is returned when the end of a reply does not arrive
	// before the deadline. The connection is closed when this happens.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrConnClosed is returned when a closed connection is used.
	ErrConnClosed = errors.New("connection is closed")
)
