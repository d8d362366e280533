package remote

import (
	"context"
	"encoding/json"
	"net/http"
)

// GetUserInfo fetches the remote user record, which mirrors the wrapped
// private key for reinstallation on a fresh host (spec §3, §4.1). When
// name is empty, the caller's own record is returned.
func (c *Client) GetUserInfo(ctx context.Context, name string) (UserInfo, error) {
	path := "/lox_api/user"
	if name != "" {
		path += "/" + name
	}

	body, status, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return UserInfo{}, err
	}

	if status != http.StatusOK {
		return UserInfo{}, &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return UserInfo{}, &Error{StatusCode: status, Message: "malformed user info response", Err: ErrProtocol}
	}

	return info, nil
}

// SetUserInfo uploads the wrapped public and private key forms (spec §4.3
// step 2).
func (c *Client) SetUserInfo(ctx context.Context, publicKey, privateKey string) error {
	payload, err := json.Marshal(UserInfo{PublicKey: publicKey, PrivateKey: privateKey})
	if err != nil {
		return &Error{Message: err.Error(), Err: ErrFatal}
	}

	body, status, err := c.do(ctx, http.MethodPost, "/lox_api/user", "application/json", payload)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	return nil
}
