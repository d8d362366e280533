package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// encodePath URL-encodes a lox_api path for interpolation into a request
// URL, matching urllib.pathname2url's per-segment escaping in the original
// client (original_source/lox/api.py). The leading slash, if any, is
// preserved as-is.
func encodePath(path string) string {
	leadingSlash := strings.HasPrefix(path, "/")
	trimmed := strings.TrimPrefix(path, "/")

	segments := strings.Split(trimmed, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	joined := strings.Join(segments, "/")
	if leadingSlash {
		return "/" + joined
	}

	return joined
}

// Meta fetches the FileInfo-shaped metadata for path. A 404 means the path
// is absent — Meta returns (nil, nil), not an error, matching the original
// client's meta() returning None (spec §4.1, original_source note §11.5).
func (c *Client) Meta(ctx context.Context, path string) (*ItemMeta, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/lox_api/meta/"+encodePath(path), "", nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, nil //nolint:nilnil // absence is data, not an error (spec §4.1)
	}

	if status != http.StatusOK {
		return nil, &Error{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
	}

	var wire metaWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &Error{StatusCode: status, Message: "malformed meta response", Err: ErrProtocol}
	}

	modified, err := time.Parse(time.RFC3339, wire.ModifiedAt)
	if err != nil {
		return nil, &Error{StatusCode: status, Message: fmt.Sprintf("malformed modified_at: %s", err), Err: ErrProtocol}
	}

	return &ItemMeta{
		IsDir:      wire.IsDir,
		ModifiedAt: modified.UTC().Truncate(time.Second),
		Size:       wire.Size,
		Children:   wire.Children,
		HasKeys:    wire.HasKeys,
		IsShare:    wire.IsShare,
	}, nil
}
