package h2kv

import (
	"encoding/base64"
	"fmt"
)

// EncodeCursor encodes the last storage key of a page as an opaque
// pagination cursor.
func EncodeCursor(storageKey string) string {
	return base64.URLEncoding.EncodeToString([]byte(storageKey))
}

// DecodeCursor decodes a pagination cursor back to a storage key. The empty
// cursor decodes to the empty key.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("decode cursor: %w: invalid encoding", ErrInvalidInput)
	}

	key, _, err := splitStorageKey(metaPrefix, decoded)
	if err != nil || key == "" {
		return "", fmt.Errorf("decode cursor: %w: invalid format", ErrInvalidInput)
	}

	return string(decoded), nil
}
