// Package sshca builds and signs OpenSSH user certificates with a CA
// key that is held by a remote signing service. The package never sees
// private key material: it assembles the certificate wire format
// locally and delegates the one signature to an Oracle.
package sshca

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/nmelo/sshca/pkg/spki"
	"github.com/nmelo/sshca/pkg/sshwire"
)

// Algorithm identifiers from the SSH protocol.
const (
	KeyAlgoRSA      = "ssh-rsa"
	KeyAlgoED25519  = "ssh-ed25519"
	CertAlgoED25519 = "ssh-ed25519-cert-v01@openssh.com"

	// SigAlgoRSASHA256 identifies RSA PKCS#1 v1.5 over SHA-256.
	// The legacy SHA-1 "ssh-rsa" signature algorithm is deliberately
	// not supported.
	SigAlgoRSASHA256 = "rsa-sha2-256"
)

// Oracle obtains an RSA PKCS#1 v1.5 signature over a SHA-256 digest
// from whatever holds the CA private key. Implementations must not
// retry on failure: the bridge surfaces every error to the caller.
type Oracle interface {
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// CA is a certificate authority whose RSA public half is known locally
// and whose private half is reachable only through an Oracle.
type CA struct {
	// Rand supplies certificate nonces. Defaults to crypto/rand.Reader;
	// tests may substitute a fixed source.
	Rand io.Reader

	oracle     Oracle
	keyBlob    []byte
	modulusLen int
	comment    string
}

// New derives a CA from the DER SubjectPublicKeyInfo of its RSA key.
// comment becomes the trailing token of the authorized_keys line,
// conventionally the KMS key id.
func New(der []byte, oracle Oracle, comment string) (*CA, error) {
	key, err := spki.ParseRSA(der)
	if err != nil {
		return nil, err
	}

	// SSH RSA public key blob: exponent precedes modulus.
	var b sshwire.Buffer
	b.String([]byte(KeyAlgoRSA))
	b.Mpint(key.E)
	b.Mpint(key.N)

	return &CA{
		Rand:       rand.Reader,
		oracle:     oracle,
		keyBlob:    b.Bytes(),
		modulusLen: key.ModulusLen(),
		comment:    comment,
	}, nil
}

// PublicKeyBlob returns a copy of the wire-encoded ssh-rsa public key
// blob, the exact bytes embedded in every certificate's signature_key
// field.
func (ca *CA) PublicKeyBlob() []byte {
	return append([]byte(nil), ca.keyBlob...)
}

// AuthorizedKey returns the CA public key as a single authorized_keys
// line: "ssh-rsa <base64> <comment>".
func (ca *CA) AuthorizedKey() string {
	line := KeyAlgoRSA + " " + base64.StdEncoding.EncodeToString(ca.keyBlob)
	if ca.comment != "" {
		line += " " + ca.comment
	}
	return line
}

// CertAuthorityLine returns the CA public key in authorized_keys
// cert-authority form, accepting only certificates issued to the given
// principal.
func (ca *CA) CertAuthorityLine(principal string) string {
	return fmt.Sprintf("cert-authority,principals=%q %s", principal, ca.AuthorizedKey())
}

// signPreamble hashes the unsigned certificate bytes, obtains the raw
// RSA signature from the oracle, and appends the rsa-sha2-256 signature
// blob, yielding the completed certificate.
//
// A signature whose length differs from the modulus length is a strong
// indicator of a wrong key type or a corrupted response, so it is
// rejected rather than passed through.
func (ca *CA) signPreamble(ctx context.Context, preamble []byte) ([]byte, error) {
	digest := sha256.Sum256(preamble)
	sig, err := ca.oracle.SignDigest(ctx, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningUnavailable, err)
	}
	if len(sig) != ca.modulusLen {
		return nil, fmt.Errorf("%w: signature is %d bytes, want %d",
			ErrSigningUnavailable, len(sig), ca.modulusLen)
	}

	var blob sshwire.Buffer
	blob.String([]byte(SigAlgoRSASHA256))
	blob.String(sig)

	var tail sshwire.Buffer
	tail.String(blob.Bytes())

	cert := make([]byte, 0, len(preamble)+tail.Len())
	cert = append(cert, preamble...)
	cert = append(cert, tail.Bytes()...)
	return cert, nil
}
