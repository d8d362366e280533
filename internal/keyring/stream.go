package keyring

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// folderKeyLen and folderIVLen size the AES-256 key and IV generated per
// encrypted folder (spec §4.3 "new_folder_key").
const (
	folderKeyLen = 32
	folderIVLen  = aes.BlockSize

	streamChunkSize = 64 * 1024
)

// FolderKey is the symmetric material protecting one encrypted folder's
// file contents. Key and IV travel wrapped (Wrap/Unwrap) through the
// remote per-folder key endpoint, never in the clear (spec §3, §4.3).
type FolderKey struct {
	Key [folderKeyLen]byte
	IV  [folderIVLen]byte
}

// NewFolderKey generates fresh, random key material for a newly created
// encrypted folder.
func NewFolderKey() (FolderKey, error) {
	var fk FolderKey

	if _, err := io.ReadFull(rand.Reader, fk.Key[:]); err != nil {
		return fk, fmt.Errorf("keyring: generating folder key: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, fk.IV[:]); err != nil {
		return fk, fmt.Errorf("keyring: generating folder iv: %w", err)
	}

	return fk, nil
}

// EncryptFile streams src through AES-CBC under key/iv into dst in
// streamChunkSize chunks. Only the final chunk, and only when its length
// is not already a multiple of the AES block size, is padded — with N
// bytes of value N — matching original_source's _aes_pad/_aes_encrypt,
// which pads the file to a block multiple before encrypting rather than
// unconditionally PKCS7-padding every call.
func EncryptFile(fk FolderKey, dst io.Writer, src io.Reader) error {
	block, err := aes.NewCipher(fk.Key[:])
	if err != nil {
		return fmt.Errorf("keyring: constructing cipher: %w", err)
	}

	encrypter := cipher.NewCBCEncrypter(block, fk.IV[:])
	buf := make([]byte, streamChunkSize)

	for {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			chunk := buf[:n]
			if rem := len(chunk) % aes.BlockSize; rem != 0 {
				pad := aes.BlockSize - rem
				chunk = append(chunk, bytes.Repeat([]byte{byte(pad)}, pad)...)
			}

			out := make([]byte, len(chunk))
			encrypter.CryptBlocks(out, chunk)

			if _, err := dst.Write(out); err != nil {
				return fmt.Errorf("keyring: writing ciphertext: %w", err)
			}
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}

		if readErr != nil {
			return fmt.Errorf("keyring: reading plaintext: %w", readErr)
		}
	}
}

// DecryptFile streams src through AES-CBC under key/iv into dst. It does
// not strip the chunk-boundary padding EncryptFile added — callers that
// need the exact original length must track it themselves, matching
// original_source's _aes_decrypt which never removes padding either.
func DecryptFile(fk FolderKey, dst io.Writer, src io.Reader) error {
	block, err := aes.NewCipher(fk.Key[:])
	if err != nil {
		return fmt.Errorf("keyring: constructing cipher: %w", err)
	}

	decrypter := cipher.NewCBCDecrypter(block, fk.IV[:])
	buf := make([]byte, streamChunkSize)

	for {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			chunk := buf[:n]
			if len(chunk)%aes.BlockSize != 0 {
				return fmt.Errorf("keyring: ciphertext chunk not a multiple of the block size")
			}

			out := make([]byte, len(chunk))
			decrypter.CryptBlocks(out, chunk)

			if _, err := dst.Write(out); err != nil {
				return fmt.Errorf("keyring: writing plaintext: %w", err)
			}
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}

		if readErr != nil {
			return fmt.Errorf("keyring: reading ciphertext: %w", readErr)
		}
	}
}
