package clientcli_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/clientcli"
	"github.com/h2kv/h2kv/database/memory"
	h2kvhttp "github.com/h2kv/h2kv/http"
)

// newH2CServer starts a test server accepting HTTP/1.1 and cleartext HTTP/2.
func newH2CServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewUnstartedServer(h)
	var protocols http.Protocols
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)
	server.Config.Protocols = &protocols
	server.Start()
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, cfg *clientcli.Config) *clientcli.Client {
	t.Helper()
	transport := clientcli.NewTransport(cfg.HTTP1)
	t.Cleanup(transport.CloseIdleConnections)

	client, err := clientcli.New(cfg, clientcli.WithHTTPClient(&http.Client{
		Transport: transport,
		Timeout:   5 * time.Second,
	}))
	require.NoError(t, err)
	return client
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:5928"})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("empty endpoint uses default", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("trailing slash removed", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:5928/"})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := clientcli.New(nil)
		assert.ErrorIs(t, err, clientcli.ErrConfigRequired)
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		_, err := clientcli.New(&clientcli.Config{Endpoint: "ftp://localhost"})
		assert.ErrorIs(t, err, clientcli.ErrInvalidEndpoint)
	})
}

func TestNewTransport(t *testing.T) {
	h2 := clientcli.NewTransport(false)
	require.NotNil(t, h2.Protocols)
	assert.True(t, h2.Protocols.UnencryptedHTTP2())
	assert.True(t, h2.Protocols.HTTP2())
	assert.False(t, h2.Protocols.HTTP1())

	h1 := clientcli.NewTransport(true)
	require.NotNil(t, h1.Protocols)
	assert.True(t, h1.Protocols.HTTP1())
	assert.False(t, h1.Protocols.UnencryptedHTTP2())
}

func TestClient_Put(t *testing.T) {
	t.Run("created over cleartext HTTP/2", func(t *testing.T) {
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, 2, r.ProtoMajor)
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/docs/read%20me.md", r.URL.EscapedPath())
			assert.Empty(t, r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.Equal(t, "# hello", string(body))

			w.Header().Set("ETag", `"abc123"`)
			w.Header().Set("Content-Location", "/docs/read%20me.md")
			w.WriteHeader(http.StatusCreated)
		}))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		localPath := writeTempFile(t, "readme.md", "# hello")

		results, err := client.Put(context.Background(), clientcli.PutOptions{
			LocalPath:  localPath,
			RemotePath: "docs/read me.md",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)

		result := results[0]
		assert.Equal(t, localPath, result.LocalPath)
		assert.Equal(t, "docs/read me.md", result.RemotePath)
		assert.Equal(t, "/docs/read%20me.md", result.ContentLocation)
		assert.Equal(t, "abc123", result.ETag)
		assert.Equal(t, int64(7), result.Size)
		assert.True(t, result.Created)
		assert.NoError(t, result.Err)
	})

	t.Run("overwrite sends content type and if-match", func(t *testing.T) {
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, `"abc123"`, r.Header.Get("If-Match"))
			w.Header().Set("ETag", `"def456"`)
			w.WriteHeader(http.StatusNoContent)
		}))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		results, err := client.Put(context.Background(), clientcli.PutOptions{
			LocalPath:   writeTempFile(t, "data", "{}"),
			RemotePath:  "config",
			ContentType: "application/json",
			IfMatch:     "abc123",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.False(t, results[0].Created)
		assert.Equal(t, "def456", results[0].ETag)
	})

	t.Run("remote path defaults to local path", func(t *testing.T) {
		got := make(chan string, 1)
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got <- r.URL.Path
			w.WriteHeader(http.StatusCreated)
		}))

		t.Chdir(t.TempDir())
		require.NoError(t, os.WriteFile("notes.txt", []byte("x"), 0o600))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		_, err := client.Put(context.Background(), clientcli.PutOptions{LocalPath: "./notes.txt"})
		require.NoError(t, err)
		assert.Equal(t, "/notes.txt", <-got)
	})

	t.Run("server error is decoded", func(t *testing.T) {
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnsupportedMediaType)
			_, _ = w.Write([]byte(`{"error": "unsupported_media_type", "message": "Content-Type is not a valid media type"}`))
		}))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		_, err := client.Put(context.Background(), clientcli.PutOptions{
			LocalPath:   writeTempFile(t, "file.txt", "x"),
			RemotePath:  "file",
			ContentType: "bogus",
		})
		require.Error(t, err)

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnsupportedMediaType, apiErr.StatusCode)
		assert.Equal(t, "unsupported_media_type", apiErr.Code)
		assert.Contains(t, apiErr.Error(), "Content-Type is not a valid media type")
	})

	t.Run("precondition failed", func(t *testing.T) {
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPreconditionFailed)
			_, _ = w.Write([]byte(`{"error": "precondition_failed", "message": "If-Match does not match"}`))
		}))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		_, err := client.Put(context.Background(), clientcli.PutOptions{
			LocalPath:  writeTempFile(t, "file.txt", "x"),
			RemotePath: "file.txt",
			IfMatch:    `"stale"`,
		})
		assert.ErrorIs(t, err, clientcli.ErrPreconditionFailed)
	})

	t.Run("recursive", func(t *testing.T) {
		var mu sync.Mutex
		var paths []string
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			paths = append(paths, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		}))

		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "page.md"), []byte("#"), 0o600))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		results, err := client.Put(context.Background(), clientcli.PutOptions{
			LocalPath:  dir,
			RemotePath: "static/",
			Recursive:  true,
		})
		require.NoError(t, err)
		assert.Len(t, results, 2)

		mu.Lock()
		defer mu.Unlock()
		sort.Strings(paths)
		assert.Equal(t, []string{"/static/index.html", "/static/sub/page.md"}, paths)
	})

	t.Run("empty local path", func(t *testing.T) {
		client := newTestClient(t, &clientcli.Config{})
		_, err := client.Put(context.Background(), clientcli.PutOptions{})
		assert.ErrorIs(t, err, clientcli.ErrEmptyPath)
	})
}

func TestClient_Get(t *testing.T) {
	negotiating := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/docs/readme", r.URL.Path)
		if r.Header.Get("Accept") != "text/markdown" {
			w.WriteHeader(http.StatusNotAcceptable)
			_, _ = w.Write([]byte(`{"error": "not_acceptable", "message": "No representation matches the Accept header"}`))
			return
		}
		w.Header().Set("Content-Type", "text/markdown")
		w.Header().Set("Content-Location", "/docs/readme.md")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Header().Set("Vary", "Accept")
		_, _ = w.Write([]byte("# hello"))
	})

	t.Run("saves under the negotiated name", func(t *testing.T) {
		server := newH2CServer(t, negotiating)
		t.Chdir(t.TempDir())

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		result, reader, err := client.Get(context.Background(), clientcli.GetOptions{
			RemotePath: "docs/readme",
			Accept:     "text/markdown",
		})
		require.NoError(t, err)
		assert.Nil(t, reader)

		assert.Equal(t, "readme.md", result.LocalPath)
		assert.Equal(t, "/docs/readme.md", result.ContentLocation)
		assert.Equal(t, "text/markdown", result.ContentType)
		assert.Equal(t, "abc123", result.ETag)
		assert.Equal(t, int64(7), result.Size)
		assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), result.LastModified.UTC())

		content, err := os.ReadFile("readme.md")
		require.NoError(t, err)
		assert.Equal(t, "# hello", string(content))
	})

	t.Run("explicit local path", func(t *testing.T) {
		server := newH2CServer(t, negotiating)
		localPath := filepath.Join(t.TempDir(), "out", "doc.md")

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		result, _, err := client.Get(context.Background(), clientcli.GetOptions{
			RemotePath: "/docs/readme",
			LocalPath:  localPath,
			Accept:     "text/markdown",
		})
		require.NoError(t, err)
		assert.Equal(t, localPath, result.LocalPath)
		assert.FileExists(t, localPath)
	})

	t.Run("stdout returns reader", func(t *testing.T) {
		server := newH2CServer(t, negotiating)

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		result, reader, err := client.Get(context.Background(), clientcli.GetOptions{
			RemotePath: "docs/readme",
			LocalPath:  "-",
			Accept:     "text/markdown",
		})
		require.NoError(t, err)
		require.NotNil(t, reader)
		defer func() { _ = reader.Close() }()

		assert.Equal(t, "-", result.LocalPath)
		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "# hello", string(content))
	})

	t.Run("profile accept applies by default", func(t *testing.T) {
		server := newH2CServer(t, negotiating)

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL, Accept: "text/markdown"})
		_, reader, err := client.Get(context.Background(), clientcli.GetOptions{
			RemotePath: "docs/readme",
			LocalPath:  "-",
		})
		require.NoError(t, err)
		_ = reader.Close()
	})

	t.Run("not acceptable", func(t *testing.T) {
		server := newH2CServer(t, negotiating)

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		_, _, err := client.Get(context.Background(), clientcli.GetOptions{
			RemotePath: "docs/readme",
			Accept:     "application/json",
		})
		assert.ErrorIs(t, err, clientcli.ErrNotAcceptable)

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "not_acceptable", apiErr.Code)
	})

	t.Run("empty remote path", func(t *testing.T) {
		client := newTestClient(t, &clientcli.Config{})
		_, _, err := client.Get(context.Background(), clientcli.GetOptions{})
		assert.ErrorIs(t, err, clientcli.ErrEmptyPath)
	})
}

func TestClient_Head(t *testing.T) {
	server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path != "/static/index" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Location", "/static/index.html")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Content-Length", "42")
		w.WriteHeader(http.StatusOK)
	}))

	client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})

	t.Run("found", func(t *testing.T) {
		info, err := client.Head(context.Background(), clientcli.HeadOptions{
			RemotePath: "static/index",
			Accept:     "text/html",
		})
		require.NoError(t, err)
		assert.Equal(t, "static/index", info.RemotePath)
		assert.Equal(t, "/static/index.html", info.ContentLocation)
		assert.Equal(t, "text/html", info.ContentType)
		assert.Equal(t, "abc123", info.ETag)
		assert.Equal(t, int64(42), info.Size)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.Head(context.Background(), clientcli.HeadOptions{RemotePath: "missing"})
		assert.ErrorIs(t, err, clientcli.ErrNotFound)
	})
}

func TestClient_Delete(t *testing.T) {
	server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "not_found", "message": "Resource not found"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})

	t.Run("continues past failures", func(t *testing.T) {
		results, err := client.Delete(context.Background(), clientcli.DeleteOptions{
			Paths: []string{"docs/readme.md", "missing", "docs/other"},
		})
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.True(t, results[0].Deleted)
		assert.False(t, results[1].Deleted)
		assert.ErrorIs(t, results[1].Err, clientcli.ErrNotFound)
		assert.True(t, results[2].Deleted)
		assert.True(t, clientcli.HasDeleteErrors(results))
	})

	t.Run("empty paths error", func(t *testing.T) {
		_, err := client.Delete(context.Background(), clientcli.DeleteOptions{})
		assert.ErrorIs(t, err, clientcli.ErrNoPaths)
	})
}

func TestClient_List(t *testing.T) {
	t.Run("query parameters", func(t *testing.T) {
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/", r.URL.Path)
			assert.Equal(t, "docs/", r.URL.Query().Get("prefix"))
			assert.Equal(t, "1000", r.URL.Query().Get("limit"))
			assert.Equal(t, "abc", r.URL.Query().Get("cursor"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"items": [
				{"key": "docs/readme", "ext": "md", "media_type": "text/markdown", "size": 7, "hash": "h1"},
				{"key": "docs/readme", "ext": "html", "media_type": "text/html", "size": 20, "hash": "h2"}
			], "next_cursor": "next"}`))
		}))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		result, err := client.List(context.Background(), clientcli.ListOptions{
			Prefix: "docs/",
			Limit:  5000,
			Cursor: "abc",
		})
		require.NoError(t, err)
		require.Len(t, result.Items, 2)
		assert.Equal(t, "docs/readme.md", result.Items[0].Path())
		assert.Equal(t, "text/html", result.Items[1].MediaType)
		assert.Equal(t, "next", result.NextCursor)
		assert.Equal(t, int64(27), result.TotalSize())
	})

	t.Run("all pages", func(t *testing.T) {
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("cursor") == "" {
				_, _ = w.Write([]byte(`{"items": [{"key": "a", "size": 1}], "next_cursor": "p2"}`))
				return
			}
			_, _ = w.Write([]byte(`{"items": [{"key": "b", "size": 2}]}`))
		}))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		result, err := client.List(context.Background(), clientcli.ListOptions{All: true})
		require.NoError(t, err)
		require.Len(t, result.Items, 2)
		assert.Equal(t, "a", result.Items[0].Key)
		assert.Equal(t, "b", result.Items[1].Key)
		assert.Empty(t, result.NextCursor)
	})

	t.Run("invalid cursor", func(t *testing.T) {
		server := newH2CServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid_parameter", "message": "invalid cursor"}`))
		}))

		client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})
		_, err := client.List(context.Background(), clientcli.ListOptions{Cursor: "bogus"})

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "invalid_parameter", apiErr.Code)
	})
}

func TestClient_AgainstServer(t *testing.T) {
	store, err := h2kv.NewStore(memory.New(), h2kv.StoreConfig{})
	require.NoError(t, err)
	handler := h2kvhttp.NewHandler(&h2kvhttp.HandlerConfig{}, h2kv.NewService(store))
	server := newH2CServer(t, handler.Router())

	ctx := context.Background()
	client := newTestClient(t, &clientcli.Config{Endpoint: server.URL})

	results, err := client.Put(ctx, clientcli.PutOptions{
		LocalPath:  writeTempFile(t, "readme.md", "# readme"),
		RemotePath: "docs/readme.md",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Created)
	assert.Equal(t, "/docs/readme.md", results[0].ContentLocation)

	_, reader, err := client.Get(ctx, clientcli.GetOptions{
		RemotePath: "docs/readme",
		LocalPath:  "-",
		Accept:     "text/markdown",
	})
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	_ = reader.Close()
	require.NoError(t, err)
	assert.Equal(t, "# readme", string(content))

	info, err := client.Head(ctx, clientcli.HeadOptions{RemotePath: "docs/readme"})
	require.NoError(t, err)
	assert.Equal(t, results[0].ETag, info.ETag)
	assert.Equal(t, int64(8), info.Size)

	_, _, err = client.Get(ctx, clientcli.GetOptions{
		RemotePath: "docs/readme",
		LocalPath:  "-",
		Accept:     "application/json",
	})
	assert.ErrorIs(t, err, clientcli.ErrNotAcceptable)

	list, err := client.List(ctx, clientcli.ListOptions{Prefix: "docs/"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "docs/readme.md", list.Items[0].Path())

	deleted, err := client.Delete(ctx, clientcli.DeleteOptions{Paths: []string{"docs/readme.md"}})
	require.NoError(t, err)
	assert.False(t, clientcli.HasDeleteErrors(deleted))

	_, _, err = client.Get(ctx, clientcli.GetOptions{RemotePath: "docs/readme", LocalPath: "-"})
	assert.ErrorIs(t, err, clientcli.ErrNotFound)
}

func TestAPIError(t *testing.T) {
	err := &clientcli.APIError{StatusCode: http.StatusNotFound, Code: "not_found", Message: "Resource not found"}

	assert.True(t, errors.Is(err, clientcli.ErrNotFound))
	assert.False(t, errors.Is(err, clientcli.ErrConflict))
	assert.True(t, err.IsNotFound())
	assert.Equal(t, "server error: 404 not_found - Resource not found", err.Error())
}

func TestHasDeleteErrors(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		results := []clientcli.DeleteResult{{Path: "a", Deleted: true}, {Path: "b", Deleted: true}}
		assert.False(t, clientcli.HasDeleteErrors(results))
	})

	t.Run("has errors", func(t *testing.T) {
		results := []clientcli.DeleteResult{{Path: "a", Deleted: true}, {Path: "b", Err: errors.New("boom")}}
		assert.True(t, clientcli.HasDeleteErrors(results))
	})

	t.Run("empty results", func(t *testing.T) {
		assert.False(t, clientcli.HasDeleteErrors(nil))
	})
}

func TestNormalizeLocalToRemotePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "file.txt", expected: "file.txt"},
		{name: "dot slash", input: "./foo/bar.txt", expected: "foo/bar.txt"},
		{name: "absolute", input: "/abs/path/file.txt", expected: "abs/path/file.txt"},
		{name: "parent traversal", input: "../sibling/file.txt", expected: "sibling/file.txt"},
		{name: "double parent", input: "../../x/y.md", expected: "x/y.md"},
		{name: "inner dots", input: "a/./b/../c.txt", expected: "a/c.txt"},
		{name: "current dir", input: ".", expected: ""},
		{name: "parent only", input: "..", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clientcli.NormalizeLocalToRemotePath(tt.input))
		})
	}
}
