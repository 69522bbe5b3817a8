package h2kv

import (
	"fmt"
	"mime"
	"net/url"
	"strings"
	"unicode/utf8"
)

// extensionTypes maps the extensions served most often to their media type.
// Extensions not listed fall back to the system mime database.
var extensionTypes = map[string]string{
	"bin":   OctetStream,
	"css":   "text/css",
	"csv":   "text/csv",
	"gif":   "image/gif",
	"gz":    "application/gzip",
	"htm":   "text/html",
	"html":  "text/html",
	"ico":   "image/vnd.microsoft.icon",
	"jpeg":  "image/jpeg",
	"jpg":   "image/jpeg",
	"js":    "text/javascript",
	"json":  "application/json",
	"md":    "text/markdown",
	"mjs":   "text/javascript",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
	"pdf":   "application/pdf",
	"png":   "image/png",
	"svg":   "image/svg+xml",
	"tar":   "application/x-tar",
	"toml":  "application/toml",
	"txt":   "text/plain",
	"wasm":  "application/wasm",
	"webp":  "image/webp",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"xml":   "application/xml",
	"yaml":  "application/yaml",
	"yml":   "application/yaml",
	"zip":   "application/zip",
}

// typeExtensions is the preferred extension for a media type. The untyped
// representation has no extension.
var typeExtensions = map[string]string{
	OctetStream:                "",
	"application/gzip":         "gz",
	"application/json":         "json",
	"application/pdf":          "pdf",
	"application/toml":         "toml",
	"application/wasm":         "wasm",
	"application/x-tar":        "tar",
	"application/xml":          "xml",
	"application/yaml":         "yaml",
	"application/zip":          "zip",
	"audio/mpeg":               "mp3",
	"font/woff":                "woff",
	"font/woff2":               "woff2",
	"image/gif":                "gif",
	"image/jpeg":               "jpg",
	"image/png":                "png",
	"image/svg+xml":            "svg",
	"image/vnd.microsoft.icon": "ico",
	"image/webp":               "webp",
	"text/css":                 "css",
	"text/csv":                 "csv",
	"text/html":                "html",
	"text/javascript":          "js",
	"text/markdown":            "md",
	"text/plain":               "txt",
	"video/mp4":                "mp4",
}

// MediaTypeForExtension returns the media type an extension stands for.
// The empty extension and unknown extensions map to application/octet-stream.
func MediaTypeForExtension(ext string) string {
	if ext == "" {
		return OctetStream
	}
	lower := strings.ToLower(ext)
	if mt, ok := extensionTypes[lower]; ok {
		return mt
	}
	if mt := mime.TypeByExtension("." + lower); mt != "" {
		if essence, _, err := mime.ParseMediaType(mt); err == nil {
			return essence
		}
	}
	return OctetStream
}

// ExtensionForMediaType returns the preferred extension for a media type,
// or "" when none is known.
func ExtensionForMediaType(mediaType string) string {
	if ext, ok := typeExtensions[mediaType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return strings.TrimPrefix(exts[0], ".")
}

// ParseContentType validates a Content-Type header value and returns its
// lower-cased essence (type/subtype without parameters).
func ParseContentType(value string) (string, error) {
	essence, _, err := mime.ParseMediaType(value)
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", value, ErrUnsupportedMediaType)
	}
	typ, sub, ok := strings.Cut(essence, "/")
	if !ok || typ == "" || sub == "" || typ == "*" || sub == "*" {
		return "", fmt.Errorf("parse content type %q: %w", value, ErrUnsupportedMediaType)
	}
	return essence, nil
}

// DecodeRequestPath maps an escaped URL path to a storage key and the
// extension hint carried by its last segment, if any.
//
// The leading slash is stripped and the path is percent-decoded. Paths with
// empty, "." or ".." segments, segments ending in a dot, a trailing slash,
// NUL or other control bytes, or invalid UTF-8 are rejected with
// ErrInvalidPath.
func DecodeRequestPath(rawPath string) (string, string, error) {
	p := strings.TrimPrefix(rawPath, "/")
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return "", "", fmt.Errorf("decode request path: %w", ErrInvalidPath)
	}
	return splitPath(decoded)
}

// DecodeRelativePath maps a slash separated path, relative to a sync root,
// to its storage key and representation.
func DecodeRelativePath(rel string) (string, Representation, error) {
	key, ext, err := splitPath(rel)
	if err != nil {
		return "", Representation{}, err
	}
	return key, Representation{Ext: ext, MediaType: MediaTypeForExtension(ext)}, nil
}

// EncodeRelativePath returns the canonical relative path of a key and
// representation extension.
func EncodeRelativePath(key, ext string) string {
	if ext == "" {
		return key
	}
	return key + "." + ext
}

// EscapePath returns the escaped URL path ("/" prefixed) of a key and
// representation extension.
func EscapePath(key, ext string) string {
	u := url.URL{Path: "/" + EncodeRelativePath(key, ext)}
	return u.EscapedPath()
}

// IsValidKey reports whether key is a valid storage key.
func IsValidKey(key string) bool {
	if key == "" {
		return false
	}
	for seg := range strings.SplitSeq(key, "/") {
		if !isValidSegment(seg) {
			return false
		}
	}
	return true
}

func splitPath(p string) (string, string, error) {
	if !IsValidKey(p) {
		return "", "", fmt.Errorf("split path %q: %w", p, ErrInvalidPath)
	}

	dir, last := "", p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		dir, last = p[:i+1], p[i+1:]
	}

	stem, ext := splitExt(last)
	return dir + stem, ext, nil
}

// splitExt splits the final extension off a segment. A leading dot
// (".env") does not start an extension.
func splitExt(seg string) (string, string) {
	i := strings.LastIndexByte(seg, '.')
	if i <= 0 || i == len(seg)-1 {
		return seg, ""
	}
	return seg[:i], seg[i+1:]
}

func isValidSegment(seg string) bool {
	if seg == "" || seg == "." {
		return false
	}

	// "name." would encode to "name..ext" once given a representation.
	if strings.Contains(seg, "..") || strings.HasSuffix(seg, ".") {
		return false
	}

	if strings.ContainsRune(seg, '\\') {
		return false
	}

	if !utf8.ValidString(seg) {
		return false
	}

	for _, r := range seg {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}

	return true
}
