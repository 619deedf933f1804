package controlplane

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/lucas-de-lima/payment-gateway/internal/resolver"
)

// Authenticator verifies a signed PurgeRequest against a cached
// ed25519 key resolver (internal/keys + internal/resolver, adapted
// from the teacher — see DESIGN.md).
type Authenticator struct {
	resolver *resolver.CachingKeyResolver
}

// NewAuthenticator builds an Authenticator over a key resolver.
func NewAuthenticator(r *resolver.CachingKeyResolver) *Authenticator {
	return &Authenticator{resolver: r}
}

// Verify checks req.Signature over "<nonce>:<timestamp>" under
// req.KID's registered public key.
func (a *Authenticator) Verify(ctx context.Context, req *PurgeRequest) error {
	pub, err := a.resolver.Resolve(ctx, req.KID)
	if err != nil {
		return fmt.Errorf("controlplane auth: %w", err)
	}

	message := signedMessage(req.Nonce, req.Timestamp)

	if !ed25519.Verify(pub, message, req.Signature) {
		return fmt.Errorf("controlplane auth: invalid signature for kid %q", req.KID)
	}

	return nil
}

// signedMessage is the canonical byte form signed/verified for a
// PurgeRequest.
func signedMessage(nonce string, timestamp int64) []byte {
	return fmt.Appendf(nil, "%s:%d", nonce, timestamp)
}

// Sign produces the signature an operator tool attaches to a
// PurgeRequest, given the private key material in an
// internal/keys.Store.
func Sign(sign func(kid string, message []byte) ([]byte, error), kid, nonce string, timestamp int64) ([]byte, error) {
	return sign(kid, signedMessage(nonce, timestamp))
}
