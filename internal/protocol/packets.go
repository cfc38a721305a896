// Package protocol implements the binary frame format spoken by the game
// server's remote console. Every frame is little-endian:
//
//	[size:4][request_id:4][type:4][payload...][0x00][0x00]
//
// where size counts every byte after itself.
package protocol

import "fmt"

// PacketType identifies the purpose of a frame.
type PacketType int32

// Frame types. ExecCommand and AuthResponse share a wire value; which one is
// meant depends on the direction of the frame.
const (
	TypeResponseValue PacketType = 0 // Command output (server -> client)
	TypeExecCommand   PacketType = 2 // Run a command (client -> server)
	TypeAuthResponse  PacketType = 2 // Result of an auth attempt (server -> client)
	TypeAuth          PacketType = 3 // Login with the console password (client -> server)
)

// AuthFailedID is the request id the server echoes when a login is rejected.
const AuthFailedID int32 = -1

const (
	// SizeFieldLength is the size of the length prefix in bytes.
	SizeFieldLength = 4

	// HeaderLength covers the request id and type fields.
	HeaderLength = 8

	// TrailerLength covers the payload NUL and the terminating NUL.
	TrailerLength = 2

	// MinPacketSize is the smallest legal value of the size field (empty payload).
	MinPacketSize = HeaderLength + TrailerLength

	// MaxPacketSize bounds the size field accepted from a peer.
	MaxPacketSize = 64 * 1024
)

// Packet is one decoded frame.
type Packet struct {
	RequestID int32
	Type      PacketType
	Payload   []byte
}

// Size returns the value of the frame's size field.
func (p Packet) Size() int32 {
	return int32(HeaderLength + len(p.Payload) + TrailerLength)
}

// String renders the packet for debug logging.
func (p Packet) String() string {
	return fmt.Sprintf("Packet[id=%d type=%d payload=%d bytes]", p.RequestID, p.Type, len(p.Payload))
}
