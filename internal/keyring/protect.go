package keyring

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// Scrypt parameters for deriving a symmetric key from the configuration
// passphrase (spec §3 "Keyring... protected by the configuration
// passphrase"). N=2^15 keeps local key unlock under a second while staying
// memory-hard.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 24
)

// protect seals the DER-encoded private key under a key derived from
// passphrase, producing a self-contained blob: salt || nonce || ciphertext.
func protect(priv *rsa.PrivateKey, passphrase string) ([]byte, error) {
	der := encodePrivateKeyDER(priv)

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nil, der, &nonce, &key)

	out := make([]byte, 0, saltLen+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)

	return out, nil
}

// unprotect reverses protect, returning the decoded private key.
func unprotect(blob []byte, passphrase string) (*rsa.PrivateKey, error) {
	if len(blob) < saltLen+24 {
		return nil, fmt.Errorf("keyring: protected blob too short")
	}

	salt := blob[:saltLen]
	var nonce [24]byte
	copy(nonce[:], blob[saltLen:saltLen+24])
	sealed := blob[saltLen+24:]

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	der, ok := secretbox.Open(nil, sealed, &nonce, &key)
	if !ok {
		return nil, fmt.Errorf("keyring: wrong passphrase or corrupted keyring")
	}

	return decodePrivateKeyDER(der)
}

func deriveKey(passphrase string, salt []byte) ([32]byte, error) {
	var key [32]byte

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return key, fmt.Errorf("deriving key from passphrase: %w", err)
	}

	copy(key[:], derived)

	return key, nil
}
