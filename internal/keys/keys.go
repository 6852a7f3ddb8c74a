// Package keys implements the handshake key exchange: X25519 agreement plus
// symmetric sealing of memo payloads with the derived secret.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sealedPrefix marks an encrypted memo payload on the wire.
const sealedPrefix = "WHISPER__"

// Ring holds one exchanger per node sending identity. The remembrancer is a
// secondary address with its own key.
type Ring struct {
	Node         *Exchanger
	Remembrancer *Exchanger
}

// Exchanger holds the node's long-lived exchange key for one sending role.
type Exchanger struct {
	priv *ecdh.PrivateKey
}

// Generate creates a fresh X25519 exchanger.
func Generate() (*Exchanger, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Exchanger{priv: priv}, nil
}

// LoadOrCreate reads the key file at path, generating and persisting a new
// key when none exists.
func LoadOrCreate(path string) (*Exchanger, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", path, err)
		}
		priv, err := ecdh.X25519().NewPrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", path, err)
		}
		return &Exchanger{priv: priv}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	ex, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(ex.priv.Bytes())), 0o600); err != nil {
		return nil, err
	}
	return ex, nil
}

// PublicKey returns the hex form of the exchanger's public key, the payload
// a handshake memo carries.
func (e *Exchanger) PublicKey() string {
	return hex.EncodeToString(e.priv.PublicKey().Bytes())
}

// ParsePublicKey validates a counterparty public key from a handshake memo.
func ParsePublicKey(raw string) (*ecdh.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("public key is not hex: %w", err)
	}
	pub, err := ecdh.X25519().NewPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid exchange key: %w", err)
	}
	return pub, nil
}

// sharedKey derives the symmetric key for a counterparty.
func (e *Exchanger) sharedKey(peer *ecdh.PublicKey) ([]byte, error) {
	secret, err := e.priv.ECDH(peer)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(secret)
	return sum[:], nil
}

// Seal encrypts text for the counterparty and returns the prefixed wire form.
func (e *Exchanger) Seal(text string, peer *ecdh.PublicKey) (string, error) {
	key, err := e.sharedKey(peer)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(text), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a prefixed wire payload from the counterparty.
func (e *Exchanger) Open(payload string, peer *ecdh.PublicKey) (string, error) {
	if !strings.HasPrefix(payload, sealedPrefix) {
		return "", errors.New("payload is not sealed")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(payload, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("sealed payload: %w", err)
	}
	key, err := e.sharedKey(peer)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("sealed payload too short")
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed payload: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether a payload carries the sealed prefix.
func IsSealed(payload string) bool {
	return strings.HasPrefix(payload, sealedPrefix)
}
