package keyring

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
)

// rsaKeyBits is the asymmetric key size mandated by spec §3/§4.3.
const rsaKeyBits = 2048

// generateKeyPair creates a new 2048-bit RSA key pair from a cryptographic
// source (spec §4.3 step 2).
func generateKeyPair() (*rsa.PublicKey, *rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generating RSA key: %w", err)
	}

	return &priv.PublicKey, priv, nil
}

// encodePublicKey renders a public key as base64 DER — the "ASCII-armored
// minus headers" wire form spec §6.1 describes for the user record.
func encodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshaling public key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(der), nil
}

// encodePrivateKey renders a private key as base64 DER, matching
// encodePublicKey's wire convention.
func encodePrivateKey(priv *rsa.PrivateKey) (string, error) {
	der := x509.MarshalPKCS1PrivateKey(priv)
	return base64.StdEncoding.EncodeToString(der), nil
}

// decodeKeyPair parses the wire form produced by encodePublicKey/encodePrivateKey.
func decodeKeyPair(publicKeyB64, privateKeyB64 string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	pubDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKeyB64))
	if err != nil {
		return nil, nil, fmt.Errorf("decoding public key: %w", err)
	}

	parsedPub, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing public key: %w", err)
	}

	pub, ok := parsedPub.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not RSA")
	}

	privDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(privateKeyB64))
	if err != nil {
		return nil, nil, fmt.Errorf("decoding private key: %w", err)
	}

	priv, err := x509.ParsePKCS1PrivateKey(privDER)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing private key: %w", err)
	}

	return pub, priv, nil
}

// normalizeASCII strips whitespace so two renderings of the same key
// compare equal regardless of incidental formatting (spec §4.3 step 4).
func normalizeASCII(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// encodePrivateKeyDER and decodePrivateKeyDER are the raw-bytes counterparts
// of encodePrivateKey/decodeKeyPair, used for local at-rest storage where no
// further text encoding is needed (protect.go seals the raw DER directly).
func encodePrivateKeyDER(priv *rsa.PrivateKey) []byte {
	return x509.MarshalPKCS1PrivateKey(priv)
}

func decodePrivateKeyDER(der []byte) (*rsa.PrivateKey, error) {
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return priv, nil
}

// KeyHash returns a short fingerprint of a public key, useful for logging
// without printing the full key material.
func KeyHash(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(der)

	return base64.RawStdEncoding.EncodeToString(sum[:8])
}
