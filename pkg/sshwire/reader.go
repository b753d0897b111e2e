package sshwire

import (
	"encoding/binary"
	"errors"
	"math/big"
)

// ErrShortBuffer indicates a field extends past the end of the buffer.
var ErrShortBuffer = errors.New("sshwire: short buffer")

// Reader consumes wire-encoded fields from a byte slice, the inverse of
// Buffer. It does not copy; returned slices alias the input.
type Reader struct {
	rest []byte
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{rest: data}
}

// Uint32 reads a 4-byte big-endian integer.
func (r *Reader) Uint32() (uint32, error) {
	if len(r.rest) < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(r.rest)
	r.rest = r.rest[4:]
	return v, nil
}

// Uint64 reads an 8-byte big-endian integer.
func (r *Reader) Uint64() (uint64, error) {
	if len(r.rest) < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint64(r.rest)
	r.rest = r.rest[8:]
	return v, nil
}

// String reads a length-prefixed byte string.
func (r *Reader) String() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if uint64(len(r.rest)) < uint64(n) {
		return nil, ErrShortBuffer
	}
	s := r.rest[:n]
	r.rest = r.rest[n:]
	return s, nil
}

// Mpint reads an mpint and returns it as a non-negative integer.
func (r *Reader) Mpint() (*big.Int, error) {
	s, err := r.String()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(s), nil
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.rest)
}
