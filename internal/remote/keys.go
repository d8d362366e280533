package remote

import (
	"context"
	"encoding/json"
	"net/http"
)

// GetKey retrieves the wrapped AES key and IV attached to a folder
// (spec §4.1).
func (c *Client) GetKey(ctx context.Context, path string) (KeyPair, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/lox_api/key/"+encodePath(path), "", nil)
	if err != nil {
		return KeyPair{}, err
	}

	if status != http.StatusOK {
		return KeyPair{}, &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	var kp KeyPair
	if err := json.Unmarshal(body, &kp); err != nil {
		return KeyPair{}, &Error{StatusCode: status, Message: "malformed key response", Err: ErrProtocol}
	}

	return kp, nil
}

type setKeyRequest struct {
	Username string `json:"username,omitempty"`
	Key      string `json:"key"`
	IV       string `json:"iv"`
}

// SetKey attaches a wrapped AES key and IV to a folder. When user is empty,
// it sets the caller's own key (spec §4.1).
func (c *Client) SetKey(ctx context.Context, path, wrappedKey, wrappedIV, user string) error {
	payload, err := json.Marshal(setKeyRequest{Username: user, Key: wrappedKey, IV: wrappedIV})
	if err != nil {
		return &Error{Message: err.Error(), Err: ErrFatal}
	}

	body, status, err := c.do(ctx, http.MethodPost, "/lox_api/key/"+encodePath(path), "application/json", payload)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	return nil
}

type keyRevokeRequest struct {
	Username string `json:"username"`
}

// KeyRevoke revokes a user's access to a folder key (spec §4.1).
func (c *Client) KeyRevoke(ctx context.Context, path, user string) error {
	payload, err := json.Marshal(keyRevokeRequest{Username: user})
	if err != nil {
		return &Error{Message: err.Error(), Err: ErrFatal}
	}

	body, status, err := c.do(ctx, http.MethodPost, "/lox_api/key_revoke/"+encodePath(path), "application/json", payload)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	return nil
}
