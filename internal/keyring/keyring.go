// Package keyring implements the per-account asymmetric key pair and AES
// folder key lifecycle (C4): generation, passphrase-protected storage,
// wrap/unwrap against the remote user record, and the streaming
// encrypt/decrypt pipeline for encrypted folders (spec §3, §4.3).
package keyring

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/loxsync/agent/internal/remote"
)

// UserClient is the subset of the remote client a Keyring needs. Defined
// at the consumer per "accept interfaces, return structs".
type UserClient interface {
	GetUserInfo(ctx context.Context, name string) (remote.UserInfo, error)
	SetUserInfo(ctx context.Context, publicKey, privateKey string) error
}

// Keyring holds the per-account asymmetric key pair, opened lazily the
// first time an encrypted path is encountered (spec §4.3).
type Keyring struct {
	account    string
	dir        string // parent directory of the .pub/.sec files, forced owner-only on open
	passphrase string
	client     UserClient
	logger     *slog.Logger

	open  singleflight.Group // ensures at-most-once concurrent Open per instance
	ready bool
	pub   *rsa.PublicKey
	priv  *rsa.PrivateKey
}

// New constructs a Keyring cheaply; no I/O or network calls happen until
// Open is called (spec §4.3 "deferred open").
func New(account, dir, passphrase string, client UserClient, logger *slog.Logger) *Keyring {
	if logger == nil {
		logger = slog.Default()
	}

	return &Keyring{
		account:    account,
		dir:        dir,
		passphrase: passphrase,
		client:     client,
		logger:     logger,
	}
}

// pubPath and secPath are the on-disk keyring files (spec §6.2).
func (k *Keyring) pubPath() string { return filepath.Join(k.dir, "."+k.account+".pub") }
func (k *Keyring) secPath() string { return filepath.Join(k.dir, "."+k.account+".sec") }

// Open performs the first-use key reconciliation described in spec §4.3.
// Concurrent callers collapse onto a single execution (at-most-once key
// material generation per account across concurrent starts, spec §1).
func (k *Keyring) Open(ctx context.Context) error {
	_, err, _ := k.open.Do("open", func() (any, error) {
		if k.ready {
			return nil, nil
		}

		if err := k.openLocked(ctx); err != nil {
			return nil, err
		}

		k.ready = true

		return nil, nil
	})

	return err
}

func (k *Keyring) openLocked(ctx context.Context) error {
	if err := enforceOwnerOnly(k.dir); err != nil {
		return fmt.Errorf("keyring: %w", err)
	}

	info, err := k.client.GetUserInfo(ctx, "")
	if err != nil {
		return fmt.Errorf("keyring: fetching remote user record: %w", err)
	}

	localPub, localPriv, localErr := loadLocal(k.secPath(), k.pubPath(), k.passphrase)
	haveLocal := localErr == nil

	switch {
	case info.PrivateKey == "" && !haveLocal:
		return k.generateAndPublish(ctx)
	case info.PrivateKey != "" && !haveLocal:
		return k.importFromRemote(info)
	case info.PrivateKey != "" && haveLocal:
		k.pub, k.priv = localPub, localPriv

		return k.compareAgainstRemote(info)
	default: // info.PrivateKey == "" && haveLocal
		// Remote key missing but local present: republish ours, matching
		// the reinstall contract (spec §3 invariant 4) without generating
		// a second key pair.
		k.pub, k.priv = localPub, localPriv

		return k.publish(ctx)
	}
}

func (k *Keyring) generateAndPublish(ctx context.Context) error {
	k.logger.Info("no remote or local private key, generating new key pair", slog.String("account", k.account))

	pub, priv, err := generateKeyPair()
	if err != nil {
		return fmt.Errorf("keyring: generating key pair: %w", err)
	}

	k.pub, k.priv = pub, priv

	if err := saveLocal(k.secPath(), k.pubPath(), k.pub, k.priv, k.passphrase); err != nil {
		return fmt.Errorf("keyring: saving key pair: %w", err)
	}

	return k.publish(ctx)
}

func (k *Keyring) publish(ctx context.Context) error {
	pubPEM, err := encodePublicKey(k.pub)
	if err != nil {
		return fmt.Errorf("keyring: encoding public key: %w", err)
	}

	privPEM, err := encodePrivateKey(k.priv)
	if err != nil {
		return fmt.Errorf("keyring: encoding private key: %w", err)
	}

	if err := k.client.SetUserInfo(ctx, pubPEM, privPEM); err != nil {
		return fmt.Errorf("keyring: uploading key pair: %w", err)
	}

	return nil
}

func (k *Keyring) importFromRemote(info remote.UserInfo) error {
	k.logger.Info("importing key pair from remote user record", slog.String("account", k.account))

	pub, priv, err := decodeKeyPair(info.PublicKey, info.PrivateKey)
	if err != nil {
		return fmt.Errorf("keyring: decoding remote key pair: %w", err)
	}

	k.pub, k.priv = pub, priv

	return saveLocal(k.secPath(), k.pubPath(), k.pub, k.priv, k.passphrase)
}

// compareAgainstRemote implements spec §4.3 step 4: a normalized ASCII
// rendering comparison that only warns on mismatch, never overwrites
// either side. This lenient handling is unsafe in general but is kept
// verbatim per spec.md §9's "Keyring mismatch handling" note,
// which documents — but does not mandate — a stricter alternative.
func (k *Keyring) compareAgainstRemote(info remote.UserInfo) error {
	localPriv, err := encodePrivateKey(k.priv)
	if err != nil {
		return fmt.Errorf("keyring: encoding local private key for comparison: %w", err)
	}

	if normalizeASCII(localPriv) != normalizeASCII(info.PrivateKey) {
		k.logger.Warn("local and remote private keys differ",
			slog.String("account", k.account),
		)
	}

	return nil
}

// enforceOwnerOnly forces the keyring's parent directory to owner-only
// access on every open (spec §3 "Keyring").
func enforceOwnerOnly(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating keyring directory: %w", err)
	}

	return os.Chmod(dir, 0o700)
}
