// Package spki decodes DER SubjectPublicKeyInfo documents carrying RSA
// public keys, the form returned by KMS GetPublicKey.
//
// Only the RSA schema is supported, so the decoder is a small
// recursive-descent reader over the byte slice rather than a general
// ASN.1 library: SEQUENCE { SEQUENCE { OID, NULL }, BIT STRING {
// SEQUENCE { INTEGER modulus, INTEGER exponent } } }.
package spki

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
)

// ErrMalformedKey indicates the input is not a valid DER
// SubjectPublicKeyInfo for an RSA key.
var ErrMalformedKey = errors.New("spki: malformed key")

// DER tags used by the RSA SubjectPublicKeyInfo schema.
const (
	tagInteger   = 0x02
	tagBitString = 0x03
	tagOID       = 0x06
	tagSequence  = 0x30
)

// oidRSAEncryption is the DER contents of OID 1.2.840.113549.1.1.1.
var oidRSAEncryption = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01}

// RSAPublicKey holds the decoded modulus and public exponent.
type RSAPublicKey struct {
	N *big.Int
	E *big.Int
}

// ModulusLen returns the modulus size in bytes, the length of a raw
// RSA signature made with this key.
func (k *RSAPublicKey) ModulusLen() int {
	return (k.N.BitLen() + 7) / 8
}

// ParseRSA decodes a DER SubjectPublicKeyInfo and extracts the RSA
// modulus and exponent. It is a pure function of its input; any
// structural problem, a non-RSA algorithm identifier, or an
// implausible key (even modulus, exponent not odd and > 1) returns an
// error wrapping ErrMalformedKey.
func ParseRSA(der []byte) (*RSAPublicKey, error) {
	outer := &reader{rest: der}
	body, err := outer.element(tagSequence)
	if err != nil {
		return nil, fmt.Errorf("%w: outer structure: %v", ErrMalformedKey, err)
	}
	if outer.len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes after SubjectPublicKeyInfo", ErrMalformedKey)
	}

	alg, err := body.element(tagSequence)
	if err != nil {
		return nil, fmt.Errorf("%w: algorithm identifier: %v", ErrMalformedKey, err)
	}
	oid, err := alg.element(tagOID)
	if err != nil {
		return nil, fmt.Errorf("%w: algorithm OID: %v", ErrMalformedKey, err)
	}
	if !bytes.Equal(oid.rest, oidRSAEncryption) {
		return nil, fmt.Errorf("%w: algorithm is not rsaEncryption", ErrMalformedKey)
	}
	// The NULL parameters that follow the OID carry no information.

	bits, err := body.element(tagBitString)
	if err != nil {
		return nil, fmt.Errorf("%w: subjectPublicKey: %v", ErrMalformedKey, err)
	}
	if bits.len() == 0 || bits.rest[0] != 0 {
		return nil, fmt.Errorf("%w: subjectPublicKey has unused bits", ErrMalformedKey)
	}

	// The BIT STRING payload is itself DER: PKCS#1 RSAPublicKey.
	inner := &reader{rest: bits.rest[1:]}
	seq, err := inner.element(tagSequence)
	if err != nil {
		return nil, fmt.Errorf("%w: RSAPublicKey: %v", ErrMalformedKey, err)
	}
	if inner.len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes after RSAPublicKey", ErrMalformedKey)
	}

	n, err := seq.integer()
	if err != nil {
		return nil, fmt.Errorf("%w: modulus: %v", ErrMalformedKey, err)
	}
	e, err := seq.integer()
	if err != nil {
		return nil, fmt.Errorf("%w: exponent: %v", ErrMalformedKey, err)
	}
	if seq.len() != 0 {
		return nil, fmt.Errorf("%w: RSAPublicKey has more than two fields", ErrMalformedKey)
	}

	if n.Bit(0) != 1 {
		return nil, fmt.Errorf("%w: modulus is even", ErrMalformedKey)
	}
	if e.Bit(0) != 1 || e.Cmp(big.NewInt(1)) <= 0 {
		return nil, fmt.Errorf("%w: exponent is not an odd integer > 1", ErrMalformedKey)
	}

	return &RSAPublicKey{N: n, E: e}, nil
}

// reader walks DER elements in a byte slice.
type reader struct {
	rest []byte
}

func (r *reader) len() int {
	return len(r.rest)
}

// element consumes one TLV with the expected tag and returns a reader
// over its contents.
func (r *reader) element(tag byte) (*reader, error) {
	if len(r.rest) < 2 {
		return nil, errors.New("truncated element header")
	}
	if r.rest[0] != tag {
		return nil, fmt.Errorf("tag 0x%02x, want 0x%02x", r.rest[0], tag)
	}

	length, headerLen, err := derLength(r.rest[1:])
	if err != nil {
		return nil, err
	}
	start := 1 + headerLen
	end := start + length
	if end > len(r.rest) || end < start {
		return nil, errors.New("element length exceeds input")
	}

	contents := r.rest[start:end]
	r.rest = r.rest[end:]
	return &reader{rest: contents}, nil
}

// integer consumes an INTEGER element and returns its non-negative
// value. Negative values never occur in RSA keys and are rejected.
func (r *reader) integer() (*big.Int, error) {
	el, err := r.element(tagInteger)
	if err != nil {
		return nil, err
	}
	if el.len() == 0 {
		return nil, errors.New("empty INTEGER")
	}
	if el.rest[0]&0x80 != 0 {
		return nil, errors.New("negative INTEGER")
	}
	return new(big.Int).SetBytes(el.rest), nil
}

// derLength decodes a DER length octet sequence, returning the length
// and the number of octets it occupied. Indefinite lengths and lengths
// wider than 4 octets are rejected.
func derLength(b []byte) (length, size int, err error) {
	if len(b) == 0 {
		return 0, 0, errors.New("missing length")
	}
	first := b[0]
	if first < 0x80 {
		return int(first), 1, nil
	}
	n := int(first & 0x7f)
	if n == 0 || n > 4 {
		return 0, 0, fmt.Errorf("unsupported length form 0x%02x", first)
	}
	if len(b) < 1+n {
		return 0, 0, errors.New("truncated length")
	}
	for _, c := range b[1 : 1+n] {
		length = length<<8 | int(c)
	}
	if length < 0 {
		return 0, 0, errors.New("length overflow")
	}
	return length, 1 + n, nil
}
