package rcon

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/energizer-project/craftcon/internal/protocol"
)

// Transport is the framing surface a Reassembler drives. It is only valid
// for the duration of one Reassemble call, while the Conn is locked.
type Transport interface {
	NextRequestID() int32
	Send(id int32, typ protocol.PacketType, payload string) error
	Receive() (protocol.Packet, error)
	Logger() *zerolog.Logger
}

// Reassembler sends one command and collects its complete reply. It exists
// so peers that describe their own fragment boundaries can swap out the
// sentinel probe.
type Reassembler interface {
	Reassemble(t Transport, command string) (string, error)
}

// SentinelReassembler follows every command with an empty ExecCommand under
// a second request id. The server answers strictly in order, so every value
// packet carrying the command's id that arrives before the sentinel's echo
// belongs to the command's reply, however many fragments it was split into.
type SentinelReassembler struct{}

// Reassemble implements Reassembler.
func (SentinelReassembler) Reassemble(t Transport, command string) (string, error) {
	id := t.NextRequestID()
	if err := t.Send(id, protocol.TypeExecCommand, command); err != nil {
		return "", err
	}

	sentinel := t.NextRequestID()
	if err := t.Send(sentinel, protocol.TypeExecCommand, ""); err != nil {
		return "", err
	}

	var (
		buf       bytes.Buffer
		fragments int
	)
	for {
		pkt, err := t.Receive()
		if err != nil {
			return "", err
		}

		switch pkt.RequestID {
		case id:
			if pkt.Type != protocol.TypeResponseValue {
				return "", fmt.Errorf("%w: unexpected packet type %d in reply", protocol.ErrMalformedFrame, pkt.Type)
			}
			buf.Write(pkt.Payload)
			fragments++

		case sentinel:
			if fragments > 1 {
				t.Logger().Debug().
					Int32("request_id", id).
					Int("fragments", fragments).
					Int("len", buf.Len()).
					Msg("reassembled fragmented reply")
			}
			return buf.String(), nil

		case protocol.AuthFailedID:
			return "", ErrNotAuthenticated

		default:
			// Late echo of an earlier exchange.
			t.Logger().Trace().
				Int32("request_id", pkt.RequestID).
				Int32("expected", id).
				Msg("discarding stale packet")
		}
	}
}

// SinglePacketReassembler treats the first value packet carrying the
// command's id as the whole reply. Use it only with peers that never split
// responses.
type SinglePacketReassembler struct{}

// Reassemble implements Reassembler.
func (SinglePacketReassembler) Reassemble(t Transport, command string) (string, error) {
	id := t.NextRequestID()
	if err := t.Send(id, protocol.TypeExecCommand, command); err != nil {
		return "", err
	}

	for {
		pkt, err := t.Receive()
		if err != nil {
			return "", err
		}

		switch pkt.RequestID {
		case id:
			if pkt.Type != protocol.TypeResponseValue {
				return "", fmt.Errorf("%w: unexpected packet type %d in reply", protocol.ErrMalformedFrame, pkt.Type)
			}
			return string(pkt.Payload), nil
		case protocol.AuthFailedID:
			return "", ErrNotAuthenticated
		default:
			t.Logger().Trace().Int32("request_id", pkt.RequestID).Msg("discarding stale packet")
		}
	}
}

// ReassemblerByName maps a configuration value to a strategy.
func ReassemblerByName(name string) (Reassembler, error) {
	switch name {
	case "", "sentinel":
		return SentinelReassembler{}, nil
	case "single":
		return SinglePacketReassembler{}, nil
	default:
		return nil, fmt.Errorf("unknown reassembly strategy %q", name)
	}
}
