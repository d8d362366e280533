package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (t staticToken) Token(_ context.Context) (string, error) {
	return string(t), nil
}

func TestMeta_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"is_dir":false,"modified_at":"2024-01-01T00:00:00Z","size":3}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lox-client", srv.Client(), staticToken("tok"), nil)

	meta, err := c.Meta(context.Background(), "/hello.txt")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.False(t, meta.IsDir)
	assert.EqualValues(t, 3, meta.Size)
}

func TestMeta_NotFoundReturnsNilNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lox-client", srv.Client(), staticToken("tok"), nil)

	meta, err := c.Meta(context.Background(), "/gone.txt")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestUpload_RequiresCreated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK) // not 201
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lox-client", srv.Client(), staticToken("tok"), nil)

	err := c.Upload(context.Background(), "/a.txt", "text/plain", []byte("hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDo_RepeatedAuthFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lox-client", srv.Client(), staticToken("tok"), nil)

	_, err := c.Meta(context.Background(), "/a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatal)
}

func TestDo_SingleAuthFailureThenSuccessRecovers(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"is_dir":false,"modified_at":"2024-01-01T00:00:00Z","size":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lox-client", srv.Client(), staticToken("tok"), nil)

	meta, err := c.Meta(context.Background(), "/a.txt")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2, attempts)
}

func TestCreateFolder_FormEncodedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, formContentType, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lox-client", srv.Client(), staticToken("tok"), nil)

	err := c.CreateFolder(context.Background(), "/secret")
	require.NoError(t, err)
}

// erroringToken fails its first N calls with err, then succeeds.
type erroringToken struct {
	err      error
	failures int
	calls    int
}

func (t *erroringToken) Token(_ context.Context) (string, error) {
	t.calls++

	if t.calls <= t.failures {
		return "", t.err
	}

	return "tok", nil
}

func TestFetchToken_TransportFailureIsRetriedOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"is_dir":false,"modified_at":"2024-01-01T00:00:00Z","size":1}`))
	}))
	defer srv.Close()

	ts := &erroringToken{err: fmt.Errorf("dial tcp: %w", ErrTransport), failures: 1}
	c := NewClient(srv.URL, "lox-client", srv.Client(), ts, nil)

	_, err := c.Meta(context.Background(), "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, ts.calls)
}

func TestFetchToken_RepeatedTransportFailureEscalatesToFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should never reach the server when token fetch fails twice")
	}))
	defer srv.Close()

	ts := &erroringToken{err: fmt.Errorf("dial tcp: %w", ErrTransport), failures: 2}
	c := NewClient(srv.URL, "lox-client", srv.Client(), ts, nil)

	_, err := c.Meta(context.Background(), "/a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, 2, ts.calls)
}

func TestFetchToken_AuthClassificationPropagatesWithoutRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should never reach the server when token fetch is Auth-classified")
	}))
	defer srv.Close()

	ts := &erroringToken{err: &Error{StatusCode: http.StatusUnauthorized, Message: "bad credentials", Err: ErrAuth}, failures: 1}
	c := NewClient(srv.URL, "lox-client", srv.Client(), ts, nil)

	_, err := c.Meta(context.Background(), "/a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.NotErrorIs(t, err, ErrFatal)
	assert.Equal(t, 1, ts.calls)
}

func TestGetKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key":"d2VhawCK","iv":"aXY="}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "lox-client", srv.Client(), staticToken("tok"), nil)

	kp, err := c.GetKey(context.Background(), "/secret")
	require.NoError(t, err)
	assert.Equal(t, "d2VhawCK", kp.Key)
}
