package remote

import (
	"context"
	"net/http"
	"net/url"
)

const formContentType = "application/x-www-form-urlencoded"

// CreateFolder creates a directory at path (spec §4.1, §6.1).
func (c *Client) CreateFolder(ctx context.Context, path string) error {
	form := url.Values{"path": {path}}

	body, status, err := c.do(ctx, http.MethodPost, "/lox_api/operations/create_folder", formContentType, []byte(form.Encode()))
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	return nil
}

// Delete removes path and everything beneath it; the server is recursive
// (spec §4.1).
func (c *Client) Delete(ctx context.Context, path string) error {
	form := url.Values{"path": {path}}

	body, status, err := c.do(ctx, http.MethodPost, "/lox_api/operations/delete", formContentType, []byte(form.Encode()))
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	return nil
}
