package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrMalformedFrame is returned when a peer sends a frame that violates
	// the size bounds or is not properly terminated.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrInvalidPayload is returned when a payload cannot be represented on
	// the wire (embedded NUL bytes or oversized).
	ErrInvalidPayload = errors.New("invalid payload")
)

// Encode produces the complete wire frame for a packet.
func Encode(requestID int32, typ PacketType, payload string) ([]byte, error) {
	if strings.IndexByte(payload, 0) >= 0 {
		return nil, fmt.Errorf("%w: payload contains a NUL byte", ErrInvalidPayload)
	}
	if HeaderLength+len(payload)+TrailerLength > MaxPacketSize {
		return nil, fmt.Errorf("%w: payload too large: %d bytes (max %d)",
			ErrInvalidPayload, len(payload), MaxPacketSize-MinPacketSize)
	}

	b := NewPacketBuilder()
	b.WriteInt32(requestID)
	b.WriteInt32(int32(typ))
	b.WriteNullString(payload)
	b.WriteUint8(0)
	return b.BuildWithLength(), nil
}

// ReadPacket reads exactly one frame from r, blocking until the number of
// bytes announced by the size prefix has arrived.
func ReadPacket(r io.Reader) (Packet, error) {
	var sizeBuf [SizeFieldLength]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return Packet{}, fmt.Errorf("failed to read packet size: %w", err)
	}

	size := int32(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < MinPacketSize {
		return Packet{}, fmt.Errorf("%w: declared size %d below minimum %d", ErrMalformedFrame, size, MinPacketSize)
	}
	if size > MaxPacketSize {
		return Packet{}, fmt.Errorf("%w: declared size %d exceeds maximum %d", ErrMalformedFrame, size, MaxPacketSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, fmt.Errorf("failed to read packet body (%d bytes): %w", size, err)
	}

	return Decode(body)
}

// Decode parses a frame body (everything after the size prefix).
func Decode(body []byte) (Packet, error) {
	if len(body) < MinPacketSize {
		return Packet{}, fmt.Errorf("%w: body of %d bytes is too short", ErrMalformedFrame, len(body))
	}

	end := len(body) - TrailerLength
	if body[end] != 0 || body[end+1] != 0 {
		return Packet{}, fmt.Errorf("%w: missing NUL terminator", ErrMalformedFrame)
	}

	payload := make([]byte, end-HeaderLength)
	copy(payload, body[HeaderLength:end])

	return Packet{
		RequestID: int32(binary.LittleEndian.Uint32(body[0:4])),
		Type:      PacketType(int32(binary.LittleEndian.Uint32(body[4:8]))),
		Payload:   payload,
	}, nil
}

// WritePacket encodes a packet and writes it to w in a single call.
func WritePacket(w io.Writer, requestID int32, typ PacketType, payload string) error {
	data, err := Encode(requestID, typ, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}
