package rcon

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/energizer-project/craftcon/internal/protocol"
)

// fakePeer is a minimal in-process remote console server.
type fakePeer struct {
	t        *testing.T
	ln       net.Listener
	password string

	// respond returns the reply fragments for a non-empty command.
	respond func(cmd string) []string

	// authReply overrides the request id echoed to a login; nil echoes it back.
	authReply func(id int32) int32

	emptyValueBeforeAuth bool
	dropSentinel         bool
	doubleSentinelEcho   bool

	mu       sync.Mutex
	commands []string
	wg       sync.WaitGroup
}

func newFakePeer(t *testing.T, password string) *fakePeer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	p := &fakePeer{
		t:        t,
		ln:       ln,
		password: password,
		respond:  func(cmd string) []string { return []string{"ok: " + cmd} },
	}
	t.Cleanup(p.close)
	return p
}

// start must be called after the peer's behaviour has been configured.
func (p *fakePeer) start() *fakePeer {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			conn, err := p.ln.Accept()
			if err != nil {
				return
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.serve(conn)
			}()
		}
	}()
	return p
}

func (p *fakePeer) addr() string {
	return p.ln.Addr().String()
}

func (p *fakePeer) close() {
	p.ln.Close()
	p.wg.Wait()
}

func (p *fakePeer) received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

func (p *fakePeer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		pkt, err := protocol.ReadPacket(r)
		if err != nil {
			return
		}

		switch pkt.Type {
		case protocol.TypeAuth:
			id := pkt.RequestID
			if string(pkt.Payload) != p.password {
				id = protocol.AuthFailedID
			}
			if p.authReply != nil {
				id = p.authReply(pkt.RequestID)
			}
			if p.emptyValueBeforeAuth {
				protocol.WritePacket(conn, pkt.RequestID, protocol.TypeResponseValue, "")
			}
			protocol.WritePacket(conn, id, protocol.TypeAuthResponse, "")

		case protocol.TypeExecCommand:
			cmd := string(pkt.Payload)
			if cmd == "" {
				if p.dropSentinel {
					continue
				}
				protocol.WritePacket(conn, pkt.RequestID, protocol.TypeResponseValue, "")
				if p.doubleSentinelEcho {
					protocol.WritePacket(conn, pkt.RequestID, protocol.TypeResponseValue, "\x01")
				}
				continue
			}

			p.mu.Lock()
			p.commands = append(p.commands, cmd)
			p.mu.Unlock()

			for _, fragment := range p.respond(cmd) {
				if err := protocol.WritePacket(conn, pkt.RequestID, protocol.TypeResponseValue, fragment); err != nil {
					return
				}
			}
		}
	}
}

// dialAuthed connects to the peer and logs in with the peer's password.
func dialAuthed(t *testing.T, p *fakePeer, timeout time.Duration, opts ...Option) *Conn {
	t.Helper()

	c, err := Dial(testContext(t), p.addr(), timeout, opts...)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.Authenticate(testContext(t), p.password); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return c
}
