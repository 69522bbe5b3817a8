package h2kv

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// Storage key layout. The NUL separator cannot occur in a valid key, so
// prefix scans of one key never reach into another. Metadata is kept apart
// from the record so variant scans and listings never load content.
const (
	metaPrefix   = "m/"
	recordPrefix = "o/"
	markerPrefix = "s/"
	keySep       = "\x00"
)

// encMode encodes with Core Deterministic Encoding so equal records always
// produce identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Insertion order is derived from CreatedAt, keep the nanoseconds.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("h2kv: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("h2kv: CBOR decoder initialization failed: " + err.Error())
	}
}

// ContentHash returns the hex encoded BLAKE3 digest of content.
func ContentHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func recordKey(key, ext string) []byte {
	return []byte(recordPrefix + key + keySep + ext)
}

func metaKey(key, ext string) []byte {
	return []byte(metaPrefix + key + keySep + ext)
}

func metaKeyPrefix(key string) []byte {
	return []byte(metaPrefix + key + keySep)
}

func markerKey(key, ext string) []byte {
	return []byte(markerPrefix + key + keySep + ext)
}

// splitStorageKey reverses recordKey and markerKey.
func splitStorageKey(prefix string, k []byte) (string, string, error) {
	s, ok := strings.CutPrefix(string(k), prefix)
	if !ok {
		return "", "", fmt.Errorf("split storage key %q: missing prefix %q", k, prefix)
	}
	key, ext, ok := strings.Cut(s, keySep)
	if !ok {
		return "", "", fmt.Errorf("split storage key %q: missing separator", k)
	}
	return key, ext, nil
}

func encodeRecord(r Record) ([]byte, error) {
	b, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.Path(), err)
	}
	return b, nil
}

func decodeRecord(b []byte) (Record, error) {
	var r Record
	if err := decMode.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

func encodeMeta(m Meta) ([]byte, error) {
	b, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode meta %s: %w", m.Path(), err)
	}
	return b, nil
}

func decodeMeta(b []byte) (Meta, error) {
	var m Meta
	if err := decMode.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("decode meta: %w", err)
	}
	return m, nil
}

func encodeMarker(m SyncMarker) ([]byte, error) {
	b, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode sync marker: %w", err)
	}
	return b, nil
}

func decodeMarker(b []byte) (SyncMarker, error) {
	var m SyncMarker
	if err := decMode.Unmarshal(b, &m); err != nil {
		return SyncMarker{}, fmt.Errorf("decode sync marker: %w", err)
	}
	return m, nil
}
