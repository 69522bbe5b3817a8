package h2kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2kv/h2kv"
)

func TestDecodeRequestPath(t *testing.T) {
	tt := []struct {
		Name    string
		Path    string
		Key     string
		Hint    string
		WantErr bool
	}{
		{Name: "extension hint", Path: "/docs/readme.md", Key: "docs/readme", Hint: "md"},
		{Name: "no extension", Path: "/docs/readme", Key: "docs/readme"},
		{Name: "last dot only", Path: "/archive.tar.gz", Key: "archive.tar", Hint: "gz"},
		{Name: "dot in directory", Path: "/v1.2/notes", Key: "v1.2/notes"},
		{Name: "dotfile has no extension", Path: "/.env", Key: ".env"},
		{Name: "percent decoded", Path: "/my%20file.txt", Key: "my file", Hint: "txt"},
		{Name: "unicode", Path: "/%E6%97%A5%E6%9C%AC.html", Key: "日本", Hint: "html"},
		{Name: "extension case kept", Path: "/Photo.JPG", Key: "Photo", Hint: "JPG"},

		{Name: "root", Path: "/", WantErr: true},
		{Name: "empty", Path: "", WantErr: true},
		{Name: "trailing slash", Path: "/docs/", WantErr: true},
		{Name: "double slash", Path: "/docs//readme", WantErr: true},
		{Name: "dot segment", Path: "/docs/./readme", WantErr: true},
		{Name: "dot dot segment", Path: "/docs/../etc/passwd", WantErr: true},
		{Name: "encoded dot dot", Path: "/docs/%2e%2e/secret", WantErr: true},
		{Name: "encoded NUL", Path: "/docs/a%00b", WantErr: true},
		{Name: "control character", Path: "/docs/a%0Ab", WantErr: true},
		{Name: "backslash", Path: "/docs%5Creadme", WantErr: true},
		{Name: "invalid escape", Path: "/docs/%zz", WantErr: true},
		{Name: "invalid UTF-8", Path: "/docs/%ff", WantErr: true},
		{Name: "trailing dot", Path: "/notes.", WantErr: true},
		{Name: "trailing dot in directory", Path: "/v1./notes", WantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			key, hint, err := h2kv.DecodeRequestPath(tc.Path)
			if tc.WantErr {
				assert.ErrorIs(t, err, h2kv.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Key, key)
			assert.Equal(t, tc.Hint, hint)
		})
	}
}

func TestRelativePathRoundTrip(t *testing.T) {
	paths := []string{
		"index.html",
		"static/css/site.css",
		"docs/readme",
		"archive.tar.gz",
		"dir.with.dots/file",
		".hidden",
		"with space/and-dash_under.json",
		".env.txt",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			key, rep, err := h2kv.DecodeRelativePath(p)
			require.NoError(t, err)
			assert.Equal(t, p, h2kv.EncodeRelativePath(key, rep.Ext))
			assert.Equal(t, h2kv.MediaTypeForExtension(rep.Ext), rep.MediaType)
		})
	}
}

func TestRelativePathRoundTrip_EncodedKeys(t *testing.T) {
	// Keys given an extension after the fact must still decode to themselves.
	pairs := []struct {
		Key string
		Ext string
	}{
		{Key: "notes", Ext: "txt"},
		{Key: ".env", Ext: "txt"},
		{Key: "archive.tar", Ext: "gz"},
		{Key: "v1.2/notes", Ext: ""},
	}

	for _, pair := range pairs {
		t.Run(pair.Key+"+"+pair.Ext, func(t *testing.T) {
			key, rep, err := h2kv.DecodeRelativePath(h2kv.EncodeRelativePath(pair.Key, pair.Ext))
			require.NoError(t, err)
			assert.Equal(t, pair.Key, key)
			assert.Equal(t, pair.Ext, rep.Ext)
		})
	}

	_, _, err := h2kv.DecodeRelativePath("notes..txt")
	assert.ErrorIs(t, err, h2kv.ErrInvalidPath)
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "/docs/readme.md", h2kv.EscapePath("docs/readme", "md"))
	assert.Equal(t, "/my%20file", h2kv.EscapePath("my file", ""))

	key, hint, err := h2kv.DecodeRequestPath(h2kv.EscapePath("a b/c?d", "txt"))
	require.NoError(t, err)
	assert.Equal(t, "a b/c?d", key)
	assert.Equal(t, "txt", hint)
}

func TestMediaTypeForExtension(t *testing.T) {
	tt := []struct {
		Ext  string
		Want string
	}{
		{Ext: "html", Want: "text/html"},
		{Ext: "HTML", Want: "text/html"},
		{Ext: "md", Want: "text/markdown"},
		{Ext: "json", Want: "application/json"},
		{Ext: "", Want: h2kv.OctetStream},
		{Ext: "bin", Want: h2kv.OctetStream},
		{Ext: "no-such-extension", Want: h2kv.OctetStream},
	}

	for _, tc := range tt {
		t.Run(tc.Ext, func(t *testing.T) {
			assert.Equal(t, tc.Want, h2kv.MediaTypeForExtension(tc.Ext))
		})
	}
}

func TestExtensionForMediaType(t *testing.T) {
	assert.Equal(t, "html", h2kv.ExtensionForMediaType("text/html"))
	assert.Equal(t, "jpg", h2kv.ExtensionForMediaType("image/jpeg"))
	assert.Equal(t, "", h2kv.ExtensionForMediaType(h2kv.OctetStream))
	assert.Equal(t, "", h2kv.ExtensionForMediaType("application/x-never-registered"))
}

func TestParseContentType(t *testing.T) {
	mt, err := h2kv.ParseContentType("Text/HTML; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "text/html", mt)

	for _, bad := range []string{"", "text", "text/", "*/*", "text/*", ";;"} {
		_, err := h2kv.ParseContentType(bad)
		assert.ErrorIs(t, err, h2kv.ErrUnsupportedMediaType, bad)
	}
}

func TestIsValidKey(t *testing.T) {
	assert.True(t, h2kv.IsValidKey("a"))
	assert.True(t, h2kv.IsValidKey("a/b/c"))
	assert.True(t, h2kv.IsValidKey("with space"))
	assert.False(t, h2kv.IsValidKey(""))
	assert.False(t, h2kv.IsValidKey("/a"))
	assert.False(t, h2kv.IsValidKey("a/"))
	assert.False(t, h2kv.IsValidKey("a\x00b"))
	assert.False(t, h2kv.IsValidKey("a\x7fb"))
	assert.False(t, h2kv.IsValidKey("notes."))
	assert.False(t, h2kv.IsValidKey("a./b"))
}
