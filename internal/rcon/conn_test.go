package rcon

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"testing"
	"time"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func TestAuthenticateSuccess(t *testing.T) {
	p := newFakePeer(t, "secret").start()
	c := dialAuthed(t, p, time.Second)

	if !c.IsAuthenticated() {
		t.Fatal("expected authenticated connection")
	}
	if c.Addr() != p.addr() {
		t.Errorf("Addr() = %q, want %q", c.Addr(), p.addr())
	}
}

func TestAuthenticateSkipsEmptyValuePacket(t *testing.T) {
	p := newFakePeer(t, "secret")
	p.emptyValueBeforeAuth = true
	p.start()

	c := dialAuthed(t, p, time.Second)

	got, err := c.Execute(testContext(t), "list")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "ok: list" {
		t.Fatalf("Execute = %q", got)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	p := newFakePeer(t, "secret").start()

	c, err := Dial(testContext(t), p.addr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	err = c.Authenticate(testContext(t), "wrong")
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("rejection should match ErrAuthFailed, got %v", err)
	}
	if !c.IsClosed() {
		t.Fatal("connection should be closed after a failed login")
	}

	if _, err := c.Execute(testContext(t), "list"); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed after rejection, got %v", err)
	}
	if len(p.received()) != 0 {
		t.Fatalf("peer received commands after rejected login: %v", p.received())
	}
}

func TestAuthenticateUnexpectedID(t *testing.T) {
	p := newFakePeer(t, "secret")
	p.authReply = func(id int32) int32 { return id + 100 }
	p.start()

	c, err := Dial(testContext(t), p.addr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	err = c.Authenticate(testContext(t), "secret")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if errors.Is(err, ErrAuthRejected) {
		t.Fatal("protocol violation must not be reported as a password rejection")
	}
	if !c.IsClosed() {
		t.Fatal("connection should be closed")
	}
}

func TestAuthenticateTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// Accept but never answer.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	c, err := Dial(testContext(t), ln.Addr().String(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.Authenticate(testContext(t), "secret"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if !c.IsClosed() {
		t.Fatal("connection should be closed")
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(testContext(t), addr, time.Second)
	if !errors.Is(err, ErrDial) {
		t.Fatalf("expected ErrDial, got %v", err)
	}
}

func TestExecuteBeforeAuthenticate(t *testing.T) {
	p := newFakePeer(t, "secret").start()

	c, err := Dial(testContext(t), p.addr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Execute(testContext(t), "list"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestExecuteFragmentedReply(t *testing.T) {
	full := strings.Repeat("abcdefghij", 500) // 5000 characters

	p := newFakePeer(t, "secret")
	p.respond = func(cmd string) []string {
		return []string{full[:2000], full[2000:4000], full[4000:]}
	}
	p.start()

	c := dialAuthed(t, p, time.Second)

	got, err := c.Execute(testContext(t), "data get entity Bob Inventory")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(got) != 5000 {
		t.Fatalf("len = %d, want 5000", len(got))
	}
	if got != full {
		t.Fatal("reassembled reply differs from the original")
	}
}

func TestExecuteEmptyCommand(t *testing.T) {
	p := newFakePeer(t, "secret").start()
	c := dialAuthed(t, p, time.Second)

	got, err := c.Execute(testContext(t), "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "" {
		t.Fatalf("Execute(\"\") = %q, want empty", got)
	}
	if c.IsClosed() {
		t.Fatal("connection should stay open")
	}
}

func TestExecuteSequentialOrdering(t *testing.T) {
	p := newFakePeer(t, "secret")
	p.respond = func(cmd string) []string {
		if cmd == "a" {
			time.Sleep(150 * time.Millisecond)
		}
		return []string{"reply-" + cmd}
	}
	p.start()

	c := dialAuthed(t, p, 2*time.Second)

	for _, cmd := range []string{"a", "b", "a", "b"} {
		got, err := c.Execute(testContext(t), cmd)
		if err != nil {
			t.Fatalf("execute %q: %v", cmd, err)
		}
		if got != "reply-"+cmd {
			t.Fatalf("Execute(%q) = %q", cmd, got)
		}
	}
}

func TestExecuteConcurrentCallersAreSerialised(t *testing.T) {
	p := newFakePeer(t, "secret")
	p.respond = func(cmd string) []string {
		return []string{"reply-", cmd}
	}
	p.start()

	c := dialAuthed(t, p, 2*time.Second)

	cmds := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	errs := make(chan error, len(cmds))
	for _, cmd := range cmds {
		cmd := cmd
		go func() {
			got, err := c.Execute(context.Background(), cmd)
			if err == nil && got != "reply-"+cmd {
				err = errors.New("mismatched reply " + got + " for " + cmd)
			}
			errs <- err
		}()
	}

	for range cmds {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
}

func TestExecuteDiscardsStalePackets(t *testing.T) {
	p := newFakePeer(t, "secret")
	p.doubleSentinelEcho = true
	p.start()

	c := dialAuthed(t, p, time.Second)

	for _, cmd := range []string{"first", "second", "third"} {
		got, err := c.Execute(testContext(t), cmd)
		if err != nil {
			t.Fatalf("execute %q: %v", cmd, err)
		}
		if got != "ok: "+cmd {
			t.Fatalf("Execute(%q) = %q", cmd, got)
		}
	}
}

func TestExecuteTimeoutClosesConnection(t *testing.T) {
	p := newFakePeer(t, "secret")
	p.dropSentinel = true
	p.start()

	timeout := 200 * time.Millisecond
	c := dialAuthed(t, p, timeout)

	start := time.Now()
	got, err := c.Execute(testContext(t), "list")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("expected ErrCommandTimeout, got %v", err)
	}
	if got != "" {
		t.Fatalf("partial output leaked: %q", got)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Fatalf("timeout took %s, want about %s", elapsed, timeout)
	}
	if !c.IsClosed() {
		t.Fatal("connection should be closed after a timeout")
	}

	if _, err := c.Execute(testContext(t), "list"); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed on reuse, got %v", err)
	}
}

func TestExecuteContextCancelled(t *testing.T) {
	p := newFakePeer(t, "secret")
	p.dropSentinel = true
	p.start()

	c := dialAuthed(t, p, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Execute(ctx, "list")
	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("expected ErrCommandTimeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("context deadline was not honoured")
	}
	if !c.IsClosed() {
		t.Fatal("connection should be closed")
	}
}

func TestExecuteRejectsNULWithoutClosing(t *testing.T) {
	p := newFakePeer(t, "secret").start()
	c := dialAuthed(t, p, time.Second)

	if _, err := c.Execute(testContext(t), "say a\x00b"); err == nil {
		t.Fatal("expected an error for a NUL byte")
	}
	if c.IsClosed() {
		t.Fatal("an unencodable command should not close the connection")
	}

	got, err := c.Execute(testContext(t), "list")
	if err != nil || got != "ok: list" {
		t.Fatalf("Execute after rejected payload = %q, %v", got, err)
	}
}

func TestSinglePacketReassembler(t *testing.T) {
	p := newFakePeer(t, "secret").start()
	c := dialAuthed(t, p, time.Second, WithReassembler(SinglePacketReassembler{}))

	got, err := c.Execute(testContext(t), "version")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "ok: version" {
		t.Fatalf("Execute = %q", got)
	}
}

func TestReassemblerByName(t *testing.T) {
	tests := []struct {
		name    string
		want    Reassembler
		wantErr bool
	}{
		{"", SentinelReassembler{}, false},
		{"sentinel", SentinelReassembler{}, false},
		{"single", SinglePacketReassembler{}, false},
		{"bogus", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReassemblerByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %T, want %T", got, tt.want)
			}
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := newFakePeer(t, "secret").start()
	c := dialAuthed(t, p, time.Second)

	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !c.IsClosed() {
		t.Fatal("expected closed")
	}
}

func TestRequestIDsStayPositive(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	c := newConn(client, "pipe", time.Second)
	defer c.Close()

	c.nextID = math.MaxInt32 - 1
	want := []int32{math.MaxInt32 - 1, math.MaxInt32, 1, 2}
	for i, w := range want {
		if got := c.allocateID(); got != w {
			t.Fatalf("id %d = %d, want %d", i, got, w)
		}
	}
}
