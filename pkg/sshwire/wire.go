// Package sshwire implements the binary primitives of the SSH wire
// protocol (RFC 4251 section 5) used by public key and certificate blobs.
package sshwire

import (
	"encoding/binary"
	"math/big"
)

// Buffer accumulates wire-encoded fields in order. The zero value is
// ready to use. None of the append operations can fail; callers are
// responsible for passing well-formed values.
type Buffer struct {
	data []byte
}

// Uint32 appends a 4-byte big-endian integer.
func (b *Buffer) Uint32(v uint32) {
	b.data = binary.BigEndian.AppendUint32(b.data, v)
}

// Uint64 appends an 8-byte big-endian integer.
func (b *Buffer) Uint64(v uint64) {
	b.data = binary.BigEndian.AppendUint64(b.data, v)
}

// String appends the SSH "string" primitive: a uint32 length prefix
// followed by the raw bytes. SSH uses it for text identifiers and
// binary blobs alike.
func (b *Buffer) String(s []byte) {
	b.Uint32(uint32(len(s)))
	b.data = append(b.data, s...)
}

// Mpint appends the SSH "mpint" primitive for a non-negative integer:
// a big-endian two's-complement magnitude with exactly one leading zero
// byte when the top bit of the first byte would otherwise mark the
// value negative. Zero encodes as the empty string.
func (b *Buffer) Mpint(n *big.Int) {
	m := n.Bytes()
	if len(m) > 0 && m[0]&0x80 != 0 {
		m = append([]byte{0}, m...)
	}
	b.String(m)
}

// Bytes returns the encoded byte sequence. The buffer must not be
// appended to afterwards.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes encoded so far.
func (b *Buffer) Len() int {
	return len(b.data)
}
