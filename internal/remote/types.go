package remote

import "time"

// ChildRef is one entry in a directory listing returned by Meta.
type ChildRef struct {
	Path string `json:"path"`
}

// ItemMeta is the FileInfo-shaped JSON body returned by Meta (spec §4.1,
// §6.1). ModifiedAt is parsed from the ISO-8601 wire format into a UTC
// time truncated to whole seconds, per data-model invariant 1.
type ItemMeta struct {
	IsDir      bool
	ModifiedAt time.Time
	Size       int64
	Children   []ChildRef
	HasKeys    bool
	IsShare    bool
}

type metaWire struct {
	IsDir      bool       `json:"is_dir"`
	ModifiedAt string     `json:"modified_at"`
	Size       int64      `json:"size"`
	Children   []ChildRef `json:"children,omitempty"`
	HasKeys    bool       `json:"has_keys,omitempty"`
	IsShare    bool       `json:"is_share,omitempty"`
}

// KeyPair is the wrapped AES folder key and IV as stored remotely
// (spec §4.1 get_key/set_key, §3 "AES folder key").
type KeyPair struct {
	Key string `json:"key"`
	IV  string `json:"iv"`
}

// UserInfo carries the wrapped asymmetric key pair mirrored on the remote
// user record (spec §3 "Keyring", §4.1 get_user_info/set_user_info).
type UserInfo struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// Invitation describes a pending or accepted share (spec §4.1 invitations).
type Invitation struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Share struct {
		Item struct {
			Path string `json:"path"`
		} `json:"item"`
	} `json:"share"`
}
