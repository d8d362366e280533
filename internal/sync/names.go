package sync

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
)

// Temporary-file prefixes recognized during directory listing (spec §6.3,
// invariant 5). A local entry whose base name starts with one of these is
// a stale leftover from an interrupted transfer, never a user file.
const (
	prefixDownload = ".download_"
	prefixEncrypt  = ".encrypt_"
	prefixDecrypt  = ".decrypt_"
)

// conflictSuffixPattern matches a trailing "_conflict_<hex6>" immediately
// before the extension, so a repeat conflict collapses the stem instead of
// growing it indefinitely (spec §6.3, testable property 6).
var conflictSuffixPattern = regexp.MustCompile(`_conflict_[0-9a-f]{6}$`)

// hexSuffix returns six random lowercase hex characters, the randomness
// budget every temp/conflict name in this package spends.
func hexSuffix() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("sync: generating random suffix: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// tempName builds the `.{state}_<hex6>.<basename><ext>` sibling name spec
// §6.3 describes for download/encrypt/decrypt staging files.
func tempName(state, base string) (string, error) {
	suffix, err := hexSuffix()
	if err != nil {
		return "", err
	}

	return "." + state + "_" + suffix + "." + base, nil
}

func downloadTempName(base string) (string, error) { return tempName("download", base) }
func encryptTempName(base string) (string, error)   { return tempName("encrypt", base) }
func decryptTempName(base string) (string, error)   { return tempName("decrypt", base) }

// isStaleTemp reports whether name is a leftover temp sibling that the
// reconciler should delete during listing rather than treat as user data.
func isStaleTemp(name string) bool {
	return hasAnyPrefix(name, prefixDownload, prefixEncrypt, prefixDecrypt)
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}

	return false
}

// conflictName builds `<base>_conflict_<hex6><ext>`. If base already ends
// in a `_conflict_<hex6>` suffix, that suffix is stripped first so repeated
// conflicts on the same file never grow the stem (idempotent collapsing,
// testable property 6).
func conflictName(name string) (string, error) {
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	stem = conflictSuffixPattern.ReplaceAllString(stem, "")

	suffix, err := hexSuffix()
	if err != nil {
		return "", err
	}

	return stem + "_conflict_" + suffix + ext, nil
}
