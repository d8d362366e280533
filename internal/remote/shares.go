package remote

import (
	"context"
	"encoding/json"
	"net/http"
)

// Invitations lists pending and accepted shares (spec §4.1). Used only by
// delete_remote (spec §4.6) to find the invitation matching a share root
// so it can be revoked instead of destroying shared content.
func (c *Client) Invitations(ctx context.Context) ([]Invitation, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/lox_api/invitations", "", nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	var invitations []Invitation
	if err := json.Unmarshal(body, &invitations); err != nil {
		return nil, &Error{StatusCode: status, Message: "malformed invitations response", Err: ErrProtocol}
	}

	return invitations, nil
}

// InviteAccept accepts a share invitation. Exposed on the client per the
// §4.1 operation table for a future share-management surface; the engine
// itself never originates shares (SPEC_FULL §11 item 4), so it never calls
// this from the reconciliation loop.
func (c *Client) InviteAccept(ctx context.Context, ref string) error {
	body, status, err := c.do(ctx, http.MethodPost, "/lox_api/invite/"+ref+"/accept", "", nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	return nil
}

// InviteRevoke revokes a share invitation (spec §4.1, used by delete_remote).
func (c *Client) InviteRevoke(ctx context.Context, ref string) error {
	body, status, err := c.do(ctx, http.MethodPost, "/lox_api/invite/"+ref+"/revoke", "", nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	return nil
}
