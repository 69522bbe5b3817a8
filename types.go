package h2kv

import (
	"time"
)

// OctetStream is the media type of the untyped representation.
const OctetStream = "application/octet-stream"

// Representation identifies one variant of an object. Within a key it is
// unique by Ext; the empty Ext is the untyped representation.
type Representation struct {
	Ext       string `json:"ext"`
	MediaType string `json:"media_type"`
}

// Meta describes a stored record without its content.
type Meta struct {
	Key         string    `cbor:"key" json:"key"`
	Ext         string    `cbor:"ext" json:"ext"`
	MediaType   string    `cbor:"media_type" json:"media_type"`
	ContentType string    `cbor:"content_type" json:"content_type"`
	Size        int64     `cbor:"size" json:"size"`
	Hash        string    `cbor:"hash" json:"hash"`
	ModTime     time.Time `cbor:"mod_time" json:"mod_time"`
	CreatedAt   time.Time `cbor:"created_at" json:"created_at"`
}

// Representation returns the representation the record is stored under.
func (m Meta) Representation() Representation {
	return Representation{Ext: m.Ext, MediaType: m.MediaType}
}

// Path returns the canonical relative path of the record.
func (m Meta) Path() string {
	return EncodeRelativePath(m.Key, m.Ext)
}

// ETag returns the quoted entity tag for the record.
func (m Meta) ETag() string {
	return `"` + m.Hash + `"`
}

// Record is the persisted value for one (key, representation) pair.
type Record struct {
	Meta
	Content []byte `cbor:"content" json:"-"`
}

// SyncMarker remembers the content hash both the store and the sync
// directory agreed on the last time a pair was reconciled.
type SyncMarker struct {
	Hash     string    `cbor:"hash" json:"hash"`
	SyncedAt time.Time `cbor:"synced_at" json:"synced_at"`
}

// ListQuery selects a page of records in key order.
type ListQuery struct {
	Prefix string
	Limit  int
	Cursor string
}

// ListResult is one page of records.
type ListResult struct {
	Items      []Meta `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// PutObject is a write request as received from the HTTP surface.
type PutObject struct {
	// Path is the raw, still escaped, request path.
	Path        string
	ContentType string
	IfMatch     string
	Content     []byte
}

// PutResult reports the outcome of a write.
type PutResult struct {
	Meta    Meta
	Created bool
}
