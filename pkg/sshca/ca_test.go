package sshca

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/nmelo/sshca/pkg/spki"
)

// testOracle signs with a local RSA key, standing in for KMS. Fixed
// sig or err take precedence when set.
type testOracle struct {
	key *rsa.PrivateKey
	sig []byte
	err error
}

func (o *testOracle) SignDigest(_ context.Context, digest []byte) ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	if o.sig != nil {
		return o.sig, nil
	}
	return rsa.SignPKCS1v15(rand.Reader, o.key, crypto.SHA256, digest)
}

var (
	rsaKeyOnce sync.Once
	rsaKey     *rsa.PrivateKey
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	rsaKeyOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generating test RSA key: %v", err)
		}
	})
	return rsaKey
}

func testCA(t *testing.T) (*CA, *rsa.PrivateKey) {
	t.Helper()
	key := testRSAKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	ca, err := New(der, &testOracle{key: key}, "alias/test")
	require.NoError(t, err)
	return ca, key
}

func subjectLine(t *testing.T, comment string) ([]byte, ed25519.PublicKey) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		line += " " + comment
	}
	return []byte(line), pub
}

func TestAuthorizedKeyMatchesReference(t *testing.T) {
	ca, key := testCA(t)

	sshPub, err := ssh.NewPublicKey(&key.PublicKey)
	require.NoError(t, err)
	want := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " alias/test"

	assert.Equal(t, want, ca.AuthorizedKey())
	assert.Equal(t, sshPub.Marshal(), ca.PublicKeyBlob())
}

// TestAuthorizedKeyGolden pins the exponent-before-modulus blob layout
// to fixed bytes for a key small enough to base64 by hand.
func TestAuthorizedKeyGolden(t *testing.T) {
	der, err := x509.MarshalPKIXPublicKey(&rsa.PublicKey{N: big.NewInt(0xc39fab), E: 65537})
	require.NoError(t, err)

	ca, err := New(der, nil, "")
	require.NoError(t, err)

	assert.Equal(t, "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAAABADDn6s=", ca.AuthorizedKey())
}

func TestCertAuthorityLine(t *testing.T) {
	ca, _ := testCA(t)

	line := ca.CertAuthorityLine("alice")
	assert.True(t, strings.HasPrefix(line, `cert-authority,principals="alice" ssh-rsa `), "got %q", line)
	assert.True(t, strings.HasSuffix(line, " alias/test"))
}

func TestNewRejectsMalformedSPKI(t *testing.T) {
	_, err := New([]byte("junk"), nil, "")
	assert.ErrorIs(t, err, spki.ErrMalformedKey)
}

func TestSignEndToEnd(t *testing.T) {
	ca, key := testCA(t)
	line, subjectPub := subjectLine(t, "alice@laptop")

	now := time.Now()
	certLine, err := ca.SignAuthorizedKey(context.Background(), line, CertOptions{
		KeyID:       "alice",
		Principals:  []string{"alice"},
		Extensions:  StandardExtensions(),
		ValidAfter:  now,
		ValidBefore: now.Add(8 * time.Hour),
	})
	require.NoError(t, err)

	pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(certLine))
	require.NoError(t, err, "certificate line must parse as an authorized key")
	assert.Equal(t, "alice@laptop", comment, "subject comment preserved")

	cert, ok := pub.(*ssh.Certificate)
	require.True(t, ok, "parsed key is not a certificate")

	assert.Equal(t, CertAlgoED25519, cert.Type())
	assert.Equal(t, uint64(0), cert.Serial)
	assert.Equal(t, UserCert, cert.CertType)
	assert.Equal(t, "alice", cert.KeyId)
	assert.Equal(t, []string{"alice"}, cert.ValidPrincipals)
	assert.Equal(t, uint64(now.Unix()), cert.ValidAfter)
	assert.Equal(t, uint64(now.Add(8*time.Hour).Unix()), cert.ValidBefore)
	assert.Empty(t, cert.CriticalOptions)
	assert.Len(t, cert.Permissions.Extensions, 5)
	assert.Contains(t, cert.Permissions.Extensions, "permit-pty")

	subjectSSH, err := ssh.NewPublicKey(subjectPub)
	require.NoError(t, err)
	assert.Equal(t, subjectSSH.Marshal(), cert.Key.Marshal(), "certified key mismatch")

	caSSH, err := ssh.NewPublicKey(&key.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, caSSH.Marshal(), cert.SignatureKey.Marshal(), "signature_key must be the exact CA blob")
	assert.Equal(t, SigAlgoRSASHA256, cert.Signature.Format)

	// The authoritative check: OpenSSH's own verifier accepts the
	// hand-built certificate, signature included.
	var checker ssh.CertChecker
	assert.NoError(t, checker.CheckCert("alice", cert), "certificate failed OpenSSH verification")
}

func TestSignDeterministicWithFixedNonce(t *testing.T) {
	ca, _ := testCA(t)
	_, subjectPub := subjectLine(t, "")

	nonce := bytes.Repeat([]byte{0x42}, 64) // two signings' worth
	opts := CertOptions{
		KeyID:       "alice",
		ValidAfter:  time.Unix(1000, 0),
		ValidBefore: time.Unix(2000, 0),
	}

	ca.Rand = bytes.NewReader(nonce)
	first, err := ca.SignKey(context.Background(), subjectPub, opts)
	require.NoError(t, err)

	second, err := ca.SignKey(context.Background(), subjectPub, opts)
	require.NoError(t, err)

	// PKCS#1 v1.5 is deterministic, so identical nonces mean identical
	// certificates.
	assert.Equal(t, first, second)
}

func TestSignOracleError(t *testing.T) {
	key := testRSAKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	boom := errors.New("kms: access denied")
	ca, err := New(der, &testOracle{err: boom}, "")
	require.NoError(t, err)

	_, subjectPub := subjectLine(t, "")
	_, err = ca.SignKey(context.Background(), subjectPub, CertOptions{KeyID: "alice"})
	assert.ErrorIs(t, err, ErrSigningUnavailable)
	assert.ErrorIs(t, err, boom, "the oracle error must stay reachable through the chain")
}

func TestSignRejectsWrongLengthSignature(t *testing.T) {
	key := testRSAKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	// A 64-byte signature from a 2048-bit key means the remote key is
	// not the RSA key we derived the public blob from.
	ca, err := New(der, &testOracle{sig: make([]byte, 64)}, "")
	require.NoError(t, err)

	_, subjectPub := subjectLine(t, "")
	_, err = ca.SignKey(context.Background(), subjectPub, CertOptions{KeyID: "alice"})
	assert.ErrorIs(t, err, ErrSigningUnavailable)
}
