package clientcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Client performs operations against an h2kv server.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
//
// The client speaks HTTP/2 on both http:// (prior knowledge) and https://
// endpoints unless cfg.HTTP1 is set.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg = cfg.WithDefaults()

	c := &Client{
		config: &Config{
			Endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
			Accept:   cfg.Accept,
			HTTP1:    cfg.HTTP1,
		},
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: NewTransport(cfg.HTTP1),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewTransport returns a transport restricted to HTTP/2, or one that also
// allows HTTP/1.1 when http1 is set. Cleartext HTTP/2 is only used in the
// former case.
func NewTransport(http1 bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()

	var protocols http.Protocols
	protocols.SetHTTP2(true)
	if http1 {
		protocols.SetHTTP1(true)
	} else {
		protocols.SetUnencryptedHTTP2(true)
	}
	t.Protocols = &protocols

	return t
}

// Put stores file(s) on the server.
// For recursive puts, walks the directory and preserves relative paths.
func (c *Client) Put(ctx context.Context, opts PutOptions) ([]PutResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("put: %w", ErrEmptyPath)
	}
	if opts.Recursive {
		return c.putRecursive(ctx, opts)
	}
	result, err := c.putSingle(ctx, opts.LocalPath, opts.RemotePath, opts.ContentType, opts.IfMatch)
	if err != nil {
		return nil, err
	}
	return []PutResult{result}, nil
}

func (c *Client) putRecursive(ctx context.Context, opts PutOptions) ([]PutResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		result, putErr := c.putSingle(ctx, opts.LocalPath, opts.RemotePath, opts.ContentType, opts.IfMatch)
		if putErr != nil {
			return nil, putErr
		}
		return []PutResult{result}, nil
	}

	var results []PutResult
	baseDir := opts.LocalPath
	remotePrefix := strings.Trim(opts.RemotePath, "/")

	walkErr := filepath.WalkDir(baseDir, func(p string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(baseDir, p)
		if relErr != nil {
			results = append(results, PutResult{
				LocalPath: p,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}

		remotePath := filepath.ToSlash(relPath)
		if remotePrefix != "" {
			remotePath = remotePrefix + "/" + remotePath
		}

		// Media types follow each file's extension.
		result, putErr := c.putSingle(ctx, p, remotePath, "", "")
		if putErr != nil {
			result = PutResult{
				LocalPath:  p,
				RemotePath: remotePath,
				Err:        putErr,
			}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

func (c *Client) putSingle(ctx context.Context, localPath, remotePath, contentType, ifMatch string) (PutResult, error) {
	if remotePath == "" {
		remotePath = NormalizeLocalToRemotePath(localPath)
	}
	if strings.Trim(remotePath, "/") == "" {
		return PutResult{}, fmt.Errorf("put: %w", ErrEmptyPath)
	}

	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return PutResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return PutResult{}, fmt.Errorf("stat file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resourceURL(remotePath), file)
	if err != nil {
		return PutResult{}, fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = info.Size()
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", quoteETag(ifMatch))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PutResult{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PutResult{}, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusNoContent, http.StatusOK:
	default:
		return PutResult{}, parseServerError(resp.StatusCode, body)
	}

	return PutResult{
		LocalPath:       localPath,
		RemotePath:      strings.TrimPrefix(remotePath, "/"),
		ContentLocation: resp.Header.Get("Content-Location"),
		ETag:            unquoteETag(resp.Header.Get("ETag")),
		Size:            info.Size(),
		Created:         resp.StatusCode == http.StatusCreated,
	}, nil
}

// Get fetches the representation the server negotiates for a path.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Get(ctx context.Context, opts GetOptions) (*GetResult, io.ReadCloser, error) {
	if opts.RemotePath == "" {
		return nil, nil, fmt.Errorf("get: %w", ErrEmptyPath)
	}

	resp, err := c.do(ctx, http.MethodGet, opts.RemotePath, opts.Accept)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &GetResult{ResourceInfo: resourceInfo(opts.RemotePath, resp)}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = localName(result.ResourceInfo)
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// Head returns the metadata of the representation the server negotiates
// for a path, without its content.
func (c *Client) Head(ctx context.Context, opts HeadOptions) (*ResourceInfo, error) {
	if opts.RemotePath == "" {
		return nil, fmt.Errorf("head: %w", ErrEmptyPath)
	}

	resp, err := c.do(ctx, http.MethodHead, opts.RemotePath, opts.Accept)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// HEAD responses carry no error body.
		return nil, parseServerError(resp.StatusCode, nil)
	}

	info := resourceInfo(opts.RemotePath, resp)
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, remotePath, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resourceURL(remotePath), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if accept == "" {
		accept = c.config.Accept
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func resourceInfo(remotePath string, resp *http.Response) ResourceInfo {
	info := ResourceInfo{
		RemotePath:      strings.TrimPrefix(remotePath, "/"),
		ContentLocation: resp.Header.Get("Content-Location"),
		ContentType:     resp.Header.Get("Content-Type"),
		ETag:            unquoteETag(resp.Header.Get("ETag")),
		Size:            resp.ContentLength,
	}
	if info.Size < 0 {
		if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
			info.Size = n
		}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}
	return info
}

// localName derives a file name for a fetched representation, preferring
// the extension-qualified Content-Location over the requested path.
func localName(info ResourceInfo) string {
	if info.ContentLocation != "" {
		if p, err := url.PathUnescape(info.ContentLocation); err == nil {
			return path.Base(p)
		}
	}
	return path.Base(info.RemotePath)
}

// Delete deletes one or more paths from the server.
// Continues on error, collecting results for all paths.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.Paths) == 0 {
		return nil, ErrNoPaths
	}

	results := make([]DeleteResult, 0, len(opts.Paths))

	for _, p := range opts.Paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := c.deleteSingle(ctx, p)
		results = append(results, result)
	}

	return results, nil
}

func (c *Client) deleteSingle(ctx context.Context, remotePath string) DeleteResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resourceURL(remotePath), http.NoBody)
	if err != nil {
		return DeleteResult{
			Path: remotePath,
			Err:  fmt.Errorf("create request: %w", err),
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DeleteResult{
			Path: remotePath,
			Err:  fmt.Errorf("do request: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return DeleteResult{
			Path:    remotePath,
			Deleted: true,
		}
	}

	body, _ := io.ReadAll(resp.Body)
	return DeleteResult{
		Path: remotePath,
		Err:  parseServerError(resp.StatusCode, body),
	}
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// List lists records on the server in key order.
// If opts.All is true, paginates through all results.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.All {
		return c.listAll(ctx, opts)
	}
	return c.listPage(ctx, opts)
}

func (c *Client) listPage(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := url.Values{}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	query.Set("limit", strconv.Itoa(limit))
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"/?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseServerError(resp.StatusCode, body)
	}

	var result ListResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &result, nil
}

func (c *Client) listAll(ctx context.Context, opts ListOptions) (*ListResult, error) {
	var all ListResult
	cursor := opts.Cursor

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.listPage(ctx, ListOptions{
			Prefix: opts.Prefix,
			Limit:  opts.Limit,
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}

		all.Items = append(all.Items, page.Items...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return &all, nil
}

// TotalSize calculates the total size of all items in bytes.
func (r *ListResult) TotalSize() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.Size
	}
	return total
}

// resourceURL returns the absolute URL of a remote path, escaping each
// segment.
func (c *Client) resourceURL(remotePath string) string {
	u := url.URL{Path: normalizePath(remotePath)}
	return c.config.Endpoint + u.EscapedPath()
}

// normalizePath ensures path has leading slash and no trailing slash.
func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

// NormalizeLocalToRemotePath converts a local path to a clean remote path.
// It handles:
//   - Leading "./" is stripped (./foo/bar.txt -> foo/bar.txt)
//   - Leading "/" is stripped (/abs/path/file.txt -> abs/path/file.txt)
//   - Parent traversal is resolved (../sibling/file.txt -> sibling/file.txt)
//   - Backslashes are converted to forward slashes (Windows)
func NormalizeLocalToRemotePath(localPath string) string {
	p := filepath.ToSlash(filepath.Clean(filepath.ToSlash(localPath)))
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")

	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}

	if p == ".." || p == "." {
		return ""
	}

	return p
}

func quoteETag(etag string) string {
	if etag == "*" || strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, "W/") {
		return etag
	}
	return `"` + etag + `"`
}

func unquoteETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// parseServerError builds an APIError from a response, decoding the JSON
// error body when there is one.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed apiErrorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		apiErr.Code = parsed.Error
		apiErr.Message = parsed.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	// Code is the machine readable error code, e.g. "not_acceptable".
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := "server error: " + strconv.Itoa(e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += " - " + e.Message
	}
	return msg
}

// Is reports whether target matches this error.
// It matches if target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the key or representation does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrNotAcceptable is returned when no representation matches the Accept header (406).
	ErrNotAcceptable = &APIError{StatusCode: http.StatusNotAcceptable}

	// ErrConflict is returned when a write cannot pick a representation (409).
	ErrConflict = &APIError{StatusCode: http.StatusConflict}

	// ErrPreconditionFailed is returned when If-Match does not hold (412).
	ErrPreconditionFailed = &APIError{StatusCode: http.StatusPreconditionFailed}
)
