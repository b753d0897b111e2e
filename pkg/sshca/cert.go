package sshca

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/nmelo/sshca/pkg/sshwire"
)

// Certificate types from the OpenSSH certkeys protocol.
const (
	UserCert uint32 = 1
	HostCert uint32 = 2
)

// DefaultValidity is the horizon applied when CertOptions leaves
// ValidBefore unset.
const DefaultValidity = 24 * time.Hour

// nonceSize is the nonce length OpenSSH uses in certificates.
const nonceSize = 32

// CertOptions control the per-certificate fields. Zero values get the
// single-user defaults: no principals, no extensions, a validity window
// starting now and ending DefaultValidity later.
type CertOptions struct {
	// KeyID is the certificate's key_id field, shown in sshd logs.
	KeyID string

	// Principals limits the login names the certificate is valid for.
	// Empty means unrestricted, acceptable here because possession of
	// the CA key is already gated by the remote signing authorization.
	Principals []string

	// Extensions are flag extensions such as "permit-pty". See
	// StandardExtensions.
	Extensions []string

	ValidAfter  time.Time
	ValidBefore time.Time
}

// StandardExtensions returns the extensions OpenSSH grants user
// certificates by default.
func StandardExtensions() []string {
	return []string{
		"permit-X11-forwarding",
		"permit-agent-forwarding",
		"permit-port-forwarding",
		"permit-pty",
		"permit-user-rc",
	}
}

// SignAuthorizedKey parses an authorized_keys line, requires it to
// carry an Ed25519 key, and returns the signed certificate as an
// authorized_keys line, preserving the subject key's comment.
func (ca *CA) SignAuthorizedKey(ctx context.Context, line []byte, opts CertOptions) (string, error) {
	pub, comment, _, _, err := ssh.ParseAuthorizedKey(line)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSubjectKey, err)
	}
	if pub.Type() != KeyAlgoED25519 {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSubjectKey, pub.Type())
	}

	cryptoPub, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return "", fmt.Errorf("%w: key does not expose raw bytes", ErrInvalidSubjectKey)
	}
	edKey, ok := cryptoPub.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return "", fmt.Errorf("%w: key is not ed25519", ErrInvalidSubjectKey)
	}

	blob, err := ca.SignKey(ctx, edKey, opts)
	if err != nil {
		return "", err
	}

	out := CertAlgoED25519 + " " + base64.StdEncoding.EncodeToString(blob)
	if comment != "" {
		out += " " + comment
	}
	return out, nil
}

// SignKey builds and signs a user certificate for a raw 32-byte
// Ed25519 public key and returns the certificate blob.
func (ca *CA) SignKey(ctx context.Context, subjectKey []byte, opts CertOptions) ([]byte, error) {
	rng := ca.Rand
	if rng == nil {
		rng = rand.Reader
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rng, nonce); err != nil {
		return nil, fmt.Errorf("sshca: reading nonce: %w", err)
	}

	preamble, err := ca.buildPreamble(nonce, subjectKey, opts)
	if err != nil {
		return nil, err
	}
	return ca.signPreamble(ctx, preamble)
}

// buildPreamble assembles the unsigned certificate: the exact byte
// sequence the CA signature is computed over, which is everything in
// the final blob up to the signature field.
func (ca *CA) buildPreamble(nonce, subjectKey []byte, opts CertOptions) ([]byte, error) {
	if len(subjectKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d",
			ErrInvalidSubjectKey, len(subjectKey), ed25519.PublicKeySize)
	}

	validAfter := opts.ValidAfter
	if validAfter.IsZero() {
		validAfter = time.Now()
	}
	validBefore := opts.ValidBefore
	if validBefore.IsZero() {
		validBefore = validAfter.Add(DefaultValidity)
	}
	after, before := validAfter.Unix(), validBefore.Unix()
	if after > before {
		return nil, fmt.Errorf("%w: valid_after %d > valid_before %d",
			ErrInvalidValidityWindow, after, before)
	}

	var b sshwire.Buffer
	b.String([]byte(CertAlgoED25519))
	b.String(nonce)
	b.String(subjectKey)
	b.Uint64(0) // serial: a single-user CA tracks none
	b.Uint32(UserCert)
	b.String([]byte(opts.KeyID))
	b.String(packStrings(opts.Principals))
	b.Uint64(uint64(after))
	b.Uint64(uint64(before))
	b.String(nil) // critical options
	b.String(packExtensions(opts.Extensions))
	b.String(nil) // reserved
	b.String(ca.keyBlob)
	return b.Bytes(), nil
}

// packStrings encodes a name list as back-to-back strings, the packed
// form used by the valid_principals field.
func packStrings(names []string) []byte {
	var b sshwire.Buffer
	for _, n := range names {
		b.String([]byte(n))
	}
	return b.Bytes()
}

// packExtensions encodes flag extensions as (name, empty data) pairs.
// sshd requires the pairs in lexical order with unique names, so
// duplicates collapse to one tuple.
func packExtensions(names []string) []byte {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var b sshwire.Buffer
	for i, n := range sorted {
		if i > 0 && n == sorted[i-1] {
			continue
		}
		b.String([]byte(n))
		b.String(nil)
	}
	return b.Bytes()
}
