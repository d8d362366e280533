package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Client is a request-scoped facade over the lox_api HTTP JSON protocol
// (spec §4.1, §6.1). One Client serves one account.
type Client struct {
	baseURL     string
	agentID     string
	httpClient  *http.Client
	tokenSource TokenSource
	logger      *slog.Logger

	authRetried bool // guards the single retry-then-Fatal rule for auth failures
}

// NewClient builds a Client for the given account. baseURL has no trailing
// slash. agentID identifies this client in request headers.
func NewClient(baseURL, agentID string, httpClient *http.Client, tokenSource TokenSource, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     baseURL,
		agentID:     agentID,
		httpClient:  httpClient,
		tokenSource: tokenSource,
		logger:      logger,
	}
}

// do issues one authenticated request and returns the raw response body
// with its status already classified. On a 401/403 it retries exactly once
// after asking the token source for a fresh token; a second auth failure
// is Fatal (spec §7).
func (c *Client) do(ctx context.Context, method, path string, contentType string, body []byte) ([]byte, int, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	status, respBody, err := c.doOnce(ctx, method, path, contentType, body, token)
	if err != nil {
		return nil, 0, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if c.authRetried {
			return nil, status, &Error{StatusCode: status, Message: "repeated authentication failure", Err: ErrFatal}
		}

		c.authRetried = true
		c.logger.Warn("authentication failed, retrying once", slog.Int("status", status))

		token, err = c.fetchToken(ctx)
		if err != nil {
			return nil, 0, err
		}

		status, respBody, err = c.doOnce(ctx, method, path, contentType, body, token)
		if err != nil {
			return nil, 0, err
		}

		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, status, &Error{StatusCode: status, Message: "repeated authentication failure", Err: ErrFatal}
		}
	}

	c.authRetried = false

	return respBody, status, nil
}

// fetchToken retrieves a bearer token from the token source. A
// transport-class failure (a transient network blip) is retried exactly
// once before being escalated to Fatal; any other classification the
// token source already assigned (Auth, Protocol, Fatal) is authoritative
// and returned as-is, matching original_source's IOError-vs-LoxFatal
// distinction (spec §7 "token refresh fails → one retry of token fetch;
// a second failure is Fatal").
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	token, err := c.tokenSource.Token(ctx)
	if err == nil {
		return token, nil
	}

	if !errors.Is(err, ErrTransport) {
		return "", err
	}

	c.logger.Warn("token fetch failed, retrying once", slog.Any("error", err))

	token, err = c.tokenSource.Token(ctx)
	if err != nil {
		return "", &Error{Message: fmt.Sprintf("token fetch failed twice: %s", err), Err: ErrFatal}
	}

	return token, nil
}

func (c *Client) doOnce(ctx context.Context, method, path, contentType string, body []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, &Error{Message: err.Error(), Err: ErrFatal}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Agent", c.agentID)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %s", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: reading %s %s response: %s", ErrTransport, method, path, err)
	}

	return resp.StatusCode, respBody, nil
}
