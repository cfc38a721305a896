package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PacketBuilder assembles a frame body field by field.
type PacketBuilder struct {
	buf bytes.Buffer
}

// NewPacketBuilder creates a new PacketBuilder.
func NewPacketBuilder() *PacketBuilder {
	return &PacketBuilder{}
}

// Reset clears the builder for reuse.
func (b *PacketBuilder) Reset() {
	b.buf.Reset()
}

// WriteInt32 writes an int32 in little-endian order.
func (b *PacketBuilder) WriteInt32(v int32) *PacketBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	b.buf.Write(tmp[:])
	return b
}

// WriteNullString writes a null-terminated string.
func (b *PacketBuilder) WriteNullString(s string) *PacketBuilder {
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
	return b
}

// WriteUint8 writes a single byte.
func (b *PacketBuilder) WriteUint8(v byte) *PacketBuilder {
	b.buf.WriteByte(v)
	return b
}

// Len returns the current size of the body being built.
func (b *PacketBuilder) Len() int {
	return b.buf.Len()
}

// BuildWithLength returns the body prefixed by its 4-byte LE length.
func (b *PacketBuilder) BuildWithLength() []byte {
	data := b.buf.Bytes()
	result := make([]byte, SizeFieldLength+len(data))
	binary.LittleEndian.PutUint32(result[:SizeFieldLength], uint32(len(data)))
	copy(result[SizeFieldLength:], data)
	return result
}

// String returns a hex dump of the current body for debugging.
func (b *PacketBuilder) String() string {
	data := b.buf.Bytes()
	return fmt.Sprintf("PacketBuilder[%d bytes]: %x", len(data), data)
}
