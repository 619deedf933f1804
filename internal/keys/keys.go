// Package keys loads the ed25519 key material used to authenticate
// operator requests to the control plane (internal/controlplane).
// Adapted from the teacher's internal/keys/key_manager.go, now
// actually consulted by a caller (see DESIGN.md).
package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// Config is one key entry in the keys file.
type Config struct {
	KID        string `json:"kid"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// Store holds every loaded key, indexed by kid.
type Store struct {
	PublicKeys  map[string]ed25519.PublicKey
	PrivateKeys map[string]ed25519.PrivateKey
}

// LoadFromFile reads and decodes a keys file of the shape
// {"keys": [{"kid", "publicKey", "privateKey"}, ...]}.
func LoadFromFile(path string) (*Store, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: read %s: %w", path, err)
	}

	var doc struct {
		Keys []Config `json:"keys"`
	}
	if err := json.Unmarshal(file, &doc); err != nil {
		return nil, fmt.Errorf("keys: decode %s: %w", path, err)
	}

	store := &Store{
		PublicKeys:  make(map[string]ed25519.PublicKey),
		PrivateKeys: make(map[string]ed25519.PrivateKey),
	}

	for _, k := range doc.Keys {
		pub, err := base64.StdEncoding.DecodeString(k.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("keys: decode public key for kid %s: %w", k.KID, err)
		}
		store.PublicKeys[k.KID] = ed25519.PublicKey(pub)

		if k.PrivateKey != "" {
			priv, err := base64.StdEncoding.DecodeString(k.PrivateKey)
			if err != nil {
				return nil, fmt.Errorf("keys: decode private key for kid %s: %w", k.KID, err)
			}
			store.PrivateKeys[k.KID] = ed25519.PrivateKey(priv)
		}
	}

	return store, nil
}

// Verify checks sig over message using the public key registered
// under kid.
func (s *Store) Verify(kid string, message, sig []byte) (bool, error) {
	pub, ok := s.PublicKeys[kid]
	if !ok {
		return false, fmt.Errorf("keys: unknown kid %q", kid)
	}
	return ed25519.Verify(pub, message, sig), nil
}

// Sign signs message with the private key registered under kid, for
// operator tooling (and tests) that need to produce a control-plane
// token.
func (s *Store) Sign(kid string, message []byte) ([]byte, error) {
	priv, ok := s.PrivateKeys[kid]
	if !ok {
		return nil, fmt.Errorf("keys: no private key for kid %q", kid)
	}
	return ed25519.Sign(priv, message), nil
}
