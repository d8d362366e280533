package keyring

import (
	"crypto/rsa"
	"fmt"
	"os"
)

// localKeyPerm matches the teacher's atomic-write convention (write to a
// temp file, fsync, chmod, rename) so a crash never leaves a half-written
// keyring file.
const localKeyPerm = 0o600

func saveLocal(secPath, pubPath string, pub *rsa.PublicKey, priv *rsa.PrivateKey, passphrase string) error {
	sealed, err := protect(priv, passphrase)
	if err != nil {
		return fmt.Errorf("protecting private key: %w", err)
	}

	if err := atomicWrite(secPath, sealed, localKeyPerm); err != nil {
		return fmt.Errorf("writing %s: %w", secPath, err)
	}

	pubWire, err := encodePublicKey(pub)
	if err != nil {
		return fmt.Errorf("encoding public key: %w", err)
	}

	if err := atomicWrite(pubPath, []byte(pubWire), localKeyPerm); err != nil {
		return fmt.Errorf("writing %s: %w", pubPath, err)
	}

	return nil
}

func loadLocal(secPath, pubPath, passphrase string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	sealed, err := os.ReadFile(secPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", secPath, err)
	}

	priv, err := unprotect(sealed, passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("unlocking %s: %w", secPath, err)
	}

	return &priv.PublicKey, priv, nil
}

// atomicWrite writes data to a temp file in the same directory as path,
// fsyncs it, sets perm, then renames over path, so a crash never leaves a
// half-written file at path.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	succeeded := false

	defer func() {
		if !succeeded {
			os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmp, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
