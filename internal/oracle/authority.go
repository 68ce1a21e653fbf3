package oracle

import (
	"context"
	"fmt"
	"time"

	"geoseal/internal/attest"
	id "geoseal/pkg/domain"
)

// Decryption is the authority's answer for one handle: the clear value and
// the proof binding it to that handle under the registry context.
type Decryption struct {
	Value int64
	Proof []byte
}

// Authority is the external decryption capability. One call covers a batch of
// handles; the response carries a per-handle authenticity proof.
type Authority interface {
	Decrypt(ctx context.Context, target id.ContextID, handles []id.Handle) (map[id.Handle]Decryption, error)
}

// Cipher opens ciphertexts sealed by the dev encryption backend.
type Cipher interface {
	Decrypt(sealed []byte) (int64, error)
}

// CiphertextResolver fetches the stored ciphertext for a handle. The ledger's
// handle lookup satisfies it.
type CiphertextResolver func(ctx context.Context, handle id.Handle) ([]byte, error)

// MockAuthority is an in-process decryption authority. It resolves handles
// against the ledger, opens ciphertexts with the dev cipher, and attests the
// results, with a configurable latency to mimic the committee round trip.
type MockAuthority struct {
	Latency time.Duration
	// BadProof corrupts every proof so local validation fails.
	BadProof bool
	// OmitHandle drops the first requested handle from the response.
	OmitHandle bool

	cipher  Cipher
	signer  *attest.Signer
	resolve CiphertextResolver
}

// NewMockAuthority constructs a dev authority sharing the encryption
// backend's cipher and attestation key.
func NewMockAuthority(cipher Cipher, signer *attest.Signer, resolve CiphertextResolver) *MockAuthority {
	return &MockAuthority{
		cipher:  cipher,
		signer:  signer,
		resolve: resolve,
	}
}

// Decrypt resolves, opens, and attests each requested handle.
func (a *MockAuthority) Decrypt(ctx context.Context, target id.ContextID, handles []id.Handle) (map[id.Handle]Decryption, error) {
	if a.Latency > 0 {
		t := time.NewTimer(a.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	out := make(map[id.Handle]Decryption, len(handles))
	for i, handle := range handles {
		if a.OmitHandle && i == 0 {
			continue
		}

		sealed, err := a.resolve(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("resolve handle %q: %w", handle, err)
		}
		value, err := a.cipher.Decrypt(sealed)
		if err != nil {
			return nil, fmt.Errorf("decrypt handle %q: %w", handle, err)
		}

		proof := a.signer.AttestReveal(target, handle, value)
		if a.BadProof {
			proof[len(proof)-1] ^= 0x01
		}
		out[handle] = Decryption{Value: value, Proof: proof}
	}
	return out, nil
}
