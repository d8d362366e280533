package keyring

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Wrap asymmetrically encrypts data under the account's own public key and
// base64-encodes the result (spec §4.3 "wrap(bytes) → base64(asym_encrypt(bytes))").
// Open must have succeeded before calling this.
func (k *Keyring) Wrap(data []byte) (string, error) {
	if k.pub == nil {
		return "", fmt.Errorf("keyring: not open")
	}

	return WrapFor(k.pub, data)
}

// WrapFor asymmetrically encrypts data under an arbitrary recipient public
// key, used for share participants when set_key's optional user is set
// (spec §4.1 set_key, §3 "wrapped under the account's public key and the
// public key of every share participant").
func WrapFor(recipient *rsa.PublicKey, data []byte) (string, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipient, data, nil)
	if err != nil {
		return "", fmt.Errorf("keyring: wrapping: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Unwrap decodes and decrypts a wrapped value using the account's private
// key (spec §4.3 "unwrap(b64) → bytes using the private key under the
// passphrase").
func (k *Keyring) Unwrap(wrapped string) ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("keyring: not open")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("keyring: decoding wrapped value: %w", err)
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, k.priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("keyring: unwrapping: %w", err)
	}

	return plaintext, nil
}

// PublicKey returns the account's public key. Open must have succeeded.
func (k *Keyring) PublicKey() *rsa.PublicKey {
	return k.pub
}
