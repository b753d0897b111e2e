// Package kmssign implements the sshca signing oracle on top of AWS
// KMS asymmetric keys. Only public key DER and signature bytes cross
// the wire; the CA private key never leaves KMS.
package kmssign

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// api is the slice of the KMS client used here, narrow enough for test
// stubs.
type api interface {
	GetPublicKey(ctx context.Context, in *kms.GetPublicKeyInput, opts ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, in *kms.SignInput, opts ...func(*kms.Options)) (*kms.SignOutput, error)
}

// Client signs digests with an asymmetric KMS key.
type Client struct {
	kms   api
	keyID string
}

// New loads the default AWS configuration (environment, shared config,
// instance metadata) and returns a Client for the given KMS key id,
// ARN, or alias.
func New(ctx context.Context, keyID string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("kmssign: loading aws config: %w", err)
	}
	return &Client{kms: kms.NewFromConfig(cfg), keyID: keyID}, nil
}

// KeyID returns the key reference this client signs with.
func (c *Client) KeyID() string {
	return c.keyID
}

// PublicKeyDER fetches the key's public half as DER
// SubjectPublicKeyInfo bytes.
func (c *Client) PublicKeyDER(ctx context.Context) ([]byte, error) {
	out, err := c.kms.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(c.keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("kmssign: get public key %s: %w", c.keyID, err)
	}
	if len(out.PublicKey) == 0 {
		return nil, fmt.Errorf("kmssign: get public key %s: response missing public key", c.keyID)
	}
	return out.PublicKey, nil
}

// SignDigest submits a precomputed SHA-256 digest and returns the raw
// RSA signature. The signing algorithm is fixed to RSASSA PKCS#1 v1.5
// over SHA-256: the SSH rsa-sha2-256 signature format is defined over
// PKCS#1 v1.5, so PSS must never be requested. Errors are surfaced to
// the caller without retrying; a Sign call is not assumed idempotent.
func (c *Client) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	out, err := c.kms.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(c.keyID),
		Message:          digest,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecRsassaPkcs1V15Sha256,
	})
	if err != nil {
		return nil, fmt.Errorf("kmssign: sign with %s: %w", c.keyID, err)
	}
	if len(out.Signature) == 0 {
		return nil, fmt.Errorf("kmssign: sign with %s: response missing signature", c.keyID)
	}
	return out.Signature, nil
}
