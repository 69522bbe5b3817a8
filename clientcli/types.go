package clientcli

import (
	"time"

	"github.com/h2kv/h2kv"
)

// PutOptions configures a put operation.
type PutOptions struct {
	LocalPath  string
	RemotePath string
	// ContentType is sent as is. When empty the server derives the media
	// type from the remote path extension.
	ContentType string
	// IfMatch makes the write conditional on the current entity tag.
	IfMatch   string
	Recursive bool
}

// PutResult represents the result of storing a single file.
type PutResult struct {
	LocalPath       string `json:"local_path"`
	RemotePath      string `json:"remote_path"`
	ContentLocation string `json:"content_location"`
	ETag            string `json:"etag"`
	Size            int64  `json:"size_bytes"`
	Created         bool   `json:"created"`
	Err             error  `json:"-"` // nil on success
}

// GetOptions configures a get operation.
type GetOptions struct {
	RemotePath string
	LocalPath  string // empty = derive from Content-Location, "-" = stdout
	Accept     string
}

// ResourceInfo describes the representation the server negotiated.
type ResourceInfo struct {
	RemotePath      string    `json:"remote_path"`
	ContentLocation string    `json:"content_location"`
	ContentType     string    `json:"content_type"`
	ETag            string    `json:"etag"`
	Size            int64     `json:"size_bytes"`
	LastModified    time.Time `json:"last_modified"`
}

// GetResult describes a completed get.
type GetResult struct {
	ResourceInfo
	LocalPath string `json:"local_path"`
}

// HeadOptions configures a head operation.
type HeadOptions struct {
	RemotePath string
	Accept     string
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	Paths []string
}

// DeleteResult represents the result of deleting a single path.
type DeleteResult struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// ListOptions configures a list operation.
type ListOptions struct {
	Prefix string
	Limit  int
	Cursor string
	All    bool // auto-paginate through all results
}

// ListResult mirrors the JSON listing returned by the server.
type ListResult struct {
	Items      []h2kv.Meta `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// apiErrorBody mirrors the JSON error body returned by the server.
type apiErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
