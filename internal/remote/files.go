package remote

import (
	"context"
	"net/http"
)

// Download fetches the raw bytes stored at path (spec §4.1, §6.1).
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/lox_api/files/"+encodePath(path), "", nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	return body, nil
}

// Upload stores content at path with the given content type. Per spec
// §4.1, success is signaled only by HTTP 201 — any other status is an error.
func (c *Client) Upload(ctx context.Context, path, contentType string, content []byte) error {
	body, status, err := c.do(ctx, http.MethodPost, "/lox_api/files/"+encodePath(path), contentType, content)
	if err != nil {
		return err
	}

	if status != http.StatusCreated {
		class := classifyStatus(status)
		if class == nil {
			class = ErrProtocol // a 2xx other than 201 is still an unexpected status
		}

		return &Error{StatusCode: status, Message: string(body), Err: class}
	}

	return nil
}
