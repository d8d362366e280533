package sync

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/loxsync/agent/internal/cache"
	"github.com/loxsync/agent/internal/keyring"
)

// download implements spec §4.6 "download": fetch remote metadata; if a
// directory, create the local directory (if missing) and walk; otherwise
// fetch bytes into a `.download_` sibling, decrypt through a `.decrypt_`
// sibling if the path is encrypted, rename over the target, set mtime, and
// write the cache entry last.
func (e *Executor) download(ctx context.Context, queue *Queue, p Path) error {
	meta, err := e.client.Meta(ctx, p.Name)
	if err != nil {
		return fmt.Errorf("sync: fetching metadata for download of %s: %w", p.Name, err)
	}

	if meta == nil {
		return fmt.Errorf("sync: download of %s requested but remote reports absent", p.Name)
	}

	if meta.IsDir {
		return e.downloadDirectory(ctx, queue, p, meta.HasKeys)
	}

	return e.downloadFile(ctx, p, meta.Size, meta.ModifiedAt.UTC().Truncate(time.Second))
}

func (e *Executor) downloadDirectory(ctx context.Context, queue *Queue, p Path, hasKeys bool) error {
	fsPath := localFSPath(e.localRoot, p)

	if err := os.MkdirAll(fsPath, 0o755); err != nil {
		return fmt.Errorf("sync: creating local directory %s: %w", p.Name, err)
	}

	if hasKeys && p.Key == nil {
		fk, err := e.resolveFolderKey(ctx, p)
		if err != nil {
			return err
		}

		p = p.WithKey(fk)
	}

	return e.walk(ctx, queue, p)
}

func (e *Executor) downloadFile(ctx context.Context, p Path, size int64, modified time.Time) error {
	content, err := e.client.Download(ctx, p.Name)
	if err != nil {
		return fmt.Errorf("sync: downloading %s: %w", p.Name, err)
	}

	dir := filepath.Dir(localFSPath(e.localRoot, p))
	base := p.Base()

	downloadName, err := downloadTempName(base)
	if err != nil {
		return err
	}

	downloadPath := filepath.Join(dir, downloadName)
	if err := os.WriteFile(downloadPath, content, 0o644); err != nil {
		return fmt.Errorf("sync: writing temp download %s: %w", downloadPath, err)
	}

	finalPath := filepath.Join(dir, base)

	if p.Encrypted() {
		if err := e.decryptDownload(p, downloadPath, finalPath); err != nil {
			return err
		}
	} else if err := os.Rename(downloadPath, finalPath); err != nil {
		return fmt.Errorf("sync: renaming %s to %s: %w", downloadPath, finalPath, err)
	}

	if err := os.Chtimes(finalPath, modified, modified); err != nil {
		return fmt.Errorf("sync: setting mtime of %s: %w", finalPath, err)
	}

	return e.cache.Put(ctx, p.Name, cache.Entry{Kind: cache.KindFile, Modified: modified, Size: size})
}

func (e *Executor) decryptDownload(p Path, downloadPath, finalPath string) error {
	dir := filepath.Dir(downloadPath)

	decryptName, err := decryptTempName(p.Base())
	if err != nil {
		return err
	}

	decryptPath := filepath.Join(dir, decryptName)

	in, err := os.Open(downloadPath)
	if err != nil {
		return fmt.Errorf("sync: opening downloaded ciphertext %s: %w", downloadPath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(decryptPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("sync: creating decrypt staging file %s: %w", decryptPath, err)
	}

	decErr := keyring.DecryptFile(*p.Key, out, in)
	closeErr := out.Close()

	if decErr != nil {
		os.Remove(decryptPath)
		return fmt.Errorf("sync: decrypting %s: %w", p.Name, decErr)
	}

	if closeErr != nil {
		return fmt.Errorf("sync: closing decrypt staging file %s: %w", decryptPath, closeErr)
	}

	if err := os.Remove(downloadPath); err != nil {
		return fmt.Errorf("sync: removing ciphertext staging file %s: %w", downloadPath, err)
	}

	if err := os.Rename(decryptPath, finalPath); err != nil {
		return fmt.Errorf("sync: renaming %s to %s: %w", decryptPath, finalPath, err)
	}

	return nil
}

// upload implements spec §4.6 "upload": directories are created remotely
// (minting and publishing a folder key when this is a new top-level
// encrypted directory), files are optionally encrypted to an `.encrypt_`
// sibling and uploaded with a MIME type guessed from the extension, then
// their server-assigned modified time is pulled back and mirrored locally.
func (e *Executor) upload(ctx context.Context, queue *Queue, p Path) error {
	local, err := LocalInfo(e.localRoot, p)
	if err != nil {
		return err
	}

	if local.Kind == KindDirectory {
		return e.uploadDirectory(ctx, queue, p)
	}

	return e.uploadFile(ctx, p)
}

func (e *Executor) uploadDirectory(ctx context.Context, queue *Queue, p Path) error {
	if err := e.client.CreateFolder(ctx, p.Name); err != nil {
		return fmt.Errorf("sync: creating remote directory %s: %w", p.Name, err)
	}

	if e.encryptDefault && isTopLevel(p) && p.Key == nil {
		fk, err := e.mintFolderKey(ctx, p)
		if err != nil {
			return err
		}

		p = p.WithKey(fk)
	}

	return e.walk(ctx, queue, p)
}

func isTopLevel(p Path) bool {
	return p.Dir() == "/"
}

func (e *Executor) uploadFile(ctx context.Context, p Path) error {
	fsPath := localFSPath(e.localRoot, p)
	sourcePath := fsPath

	if p.Encrypted() {
		encryptPath, err := e.encryptUpload(ctx, p, fsPath)
		if err != nil {
			return err
		}
		defer os.Remove(encryptPath)

		sourcePath = encryptPath
	}

	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("sync: reading %s: %w", sourcePath, err)
	}

	contentType := guessContentType(p.Base())

	if err := e.client.Upload(ctx, p.Name, contentType, content); err != nil {
		return fmt.Errorf("sync: uploading %s: %w", p.Name, err)
	}

	meta, err := e.client.Meta(ctx, p.Name)
	if err != nil {
		return fmt.Errorf("sync: fetching post-upload metadata for %s: %w", p.Name, err)
	}

	if meta == nil {
		return fmt.Errorf("sync: %s missing immediately after upload", p.Name)
	}

	modified := meta.ModifiedAt.UTC().Truncate(time.Second)

	if err := os.Chtimes(fsPath, modified, modified); err != nil {
		return fmt.Errorf("sync: setting mtime of %s: %w", fsPath, err)
	}

	return e.cache.Put(ctx, p.Name, cache.Entry{Kind: cache.KindFile, Modified: modified, Size: meta.Size})
}

// encryptUpload stages ciphertext into an `.encrypt_` sibling next to
// fsPath, symmetric with decryptDownload's `.decrypt_` staging, and
// returns its path for the caller to read and remove.
func (e *Executor) encryptUpload(ctx context.Context, p Path, fsPath string) (string, error) {
	fk, err := e.resolveFolderKey(ctx, p)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(fsPath)

	encryptName, err := encryptTempName(p.Base())
	if err != nil {
		return "", err
	}

	encryptPath := filepath.Join(dir, encryptName)

	in, err := os.Open(fsPath)
	if err != nil {
		return "", fmt.Errorf("sync: opening %s for encryption: %w", fsPath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(encryptPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("sync: creating encrypt staging file %s: %w", encryptPath, err)
	}

	encErr := keyring.EncryptFile(*fk, out, in)
	closeErr := out.Close()

	if encErr != nil {
		os.Remove(encryptPath)
		return "", fmt.Errorf("sync: encrypting %s: %w", p.Name, encErr)
	}

	if closeErr != nil {
		return "", fmt.Errorf("sync: closing encrypt staging file %s: %w", encryptPath, closeErr)
	}

	return encryptPath, nil
}

// guessContentType maps a file extension to a MIME type, falling back to
// the generic octet-stream type for unrecognized extensions.
func guessContentType(name string) string {
	ext := filepath.Ext(name)

	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return "application/octet-stream"
}
