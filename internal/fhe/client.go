package fhe

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"geoseal/internal/attest"
	id "geoseal/pkg/domain"
)

// Ciphertext is one encryption result: the opaque bytes, the handle derived
// from them, and the well-formedness proof binding them to context and owner.
type Ciphertext struct {
	Handle id.Handle
	Bytes  []byte
	Proof  []byte
}

// Client is the encryption backend capability. Real deployments wrap the
// vendor gateway; dev and tests use MockClient with configurable latency to
// mimic real-world calls.
type Client interface {
	Init(ctx context.Context) error
	Encrypt(ctx context.Context, target id.ContextID, owner id.OwnerID, plaintext int64) (*Ciphertext, error)
}

const nonceLen = 24

// MockClient is an in-process encryption backend. It seals values with a
// process-local secretbox key and attests them under a generated keypair, so
// the full register/reveal round trip runs without external services. The
// embedded dev authority shares this client to decrypt.
type MockClient struct {
	InitDelay time.Duration
	Latency   time.Duration
	// InitErr, when set, fails every Init call with that error.
	InitErr error

	key    [32]byte
	signer *attest.Signer
	pub    ed25519.PublicKey
}

// NewMockClient generates the dev key material and returns a ready-to-init
// client.
func NewMockClient() (*MockClient, error) {
	pub, priv, err := attest.GenerateKey()
	if err != nil {
		return nil, err
	}

	c := &MockClient{
		signer: attest.NewSigner(priv),
		pub:    pub,
	}
	if _, err := io.ReadFull(rand.Reader, c.key[:]); err != nil {
		return nil, fmt.Errorf("could not generate cipher key: %w", err)
	}
	return c, nil
}

// PublicKey returns the attestation key the ledger keyring must trust.
func (c *MockClient) PublicKey() ed25519.PublicKey { return c.pub }

// Signer returns the attestation signer. The embedded dev authority signs its
// reveal attestations with the same key.
func (c *MockClient) Signer() *attest.Signer { return c.signer }

// Init simulates the backend readiness wait.
func (c *MockClient) Init(ctx context.Context) error {
	if err := wait(ctx, c.InitDelay); err != nil {
		return err
	}
	return c.InitErr
}

// Encrypt seals the plaintext under a fresh nonce and attests the result.
// Output differs on every call even for equal plaintext.
func (c *MockClient) Encrypt(ctx context.Context, target id.ContextID, owner id.OwnerID, plaintext int64) (*Ciphertext, error) {
	if err := wait(ctx, c.Latency); err != nil {
		return nil, err
	}

	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("could not generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], attest.EncodeValue(plaintext), &nonce, &c.key)

	handle := attest.HandleFor(sealed)
	proof := c.signer.AttestInput(target, owner, handle, sealed)
	return &Ciphertext{Handle: handle, Bytes: sealed, Proof: proof}, nil
}

// Decrypt opens a ciphertext produced by this client. Only the embedded dev
// authority calls it; production decryption happens inside the external
// committee.
func (c *MockClient) Decrypt(sealed []byte) (int64, error) {
	if len(sealed) < nonceLen+secretbox.Overhead {
		return 0, fmt.Errorf("ciphertext too short: %d bytes", len(sealed))
	}

	var nonce [nonceLen]byte
	copy(nonce[:], sealed[:nonceLen])
	plain, ok := secretbox.Open(nil, sealed[nonceLen:], &nonce, &c.key)
	if !ok {
		return 0, fmt.Errorf("could not open ciphertext")
	}
	return attest.DecodeValue(plain)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
