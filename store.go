package h2kv

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	lockStripes      = 64
	defaultCacheSize = 1024
)

// StoreConfig holds configuration options for Store.
type StoreConfig struct {
	// CacheSize is the number of keys whose variant list is cached.
	// Zero selects the default, a negative value disables the cache.
	CacheSize int
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// WriteRequest describes one record write.
type WriteRequest struct {
	Key            string
	Representation Representation
	// ContentType is stored verbatim; it defaults to the media type.
	ContentType string
	Content     []byte
	// ModTime defaults to the current time.
	ModTime time.Time
	// IfMatch requires an existing record whose hash matches. "*" matches
	// any existing record.
	IfMatch string
	// IfNoneMatch requires that no record exists.
	IfNoneMatch bool
}

// Store keeps records and sync markers in a KV. Writes to one key are
// serialized; reads go straight to the adapter.
type Store struct {
	kv    KV
	seed  maphash.Seed
	locks [lockStripes]sync.Mutex
	cache *lru.Cache[string, []Meta]
	now   func() time.Time
}

// NewStore creates a Store over kv.
func NewStore(kv KV, cfg StoreConfig) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("new store: %w: kv is required", ErrInvalidInput)
	}

	s := &Store{
		kv:   kv,
		seed: maphash.MakeSeed(),
		now:  cfg.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}

	size := cfg.CacheSize
	if size == 0 {
		size = defaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[string, []Meta](size)
		if err != nil {
			return nil, fmt.Errorf("new store: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

func (s *Store) lock(key string) func() {
	mu := &s.locks[maphash.String(s.seed, key)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// Variants returns the metadata of every representation of key in
// insertion order, or ErrNotFound when the key has none.
func (s *Store) Variants(ctx context.Context, key string) ([]Meta, error) {
	if s.cache != nil {
		if metas, ok := s.cache.Get(key); ok {
			return slices.Clone(metas), nil
		}
	}

	unlock := s.lock(key)
	defer unlock()

	metas, err := s.scanVariants(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("variants %s: %w", key, ErrNotFound)
	}

	if s.cache != nil {
		s.cache.Add(key, metas)
	}
	return slices.Clone(metas), nil
}

func (s *Store) scanVariants(ctx context.Context, key string) ([]Meta, error) {
	var metas []Meta
	err := s.kv.Scan(ctx, metaKeyPrefix(key), func(_, v []byte) error {
		m, err := decodeMeta(v)
		if err != nil {
			return err
		}
		metas = append(metas, m)
		return nil
	})
	if err != nil {
		return nil, unavailable("scan variants "+key, err)
	}

	sortInsertionOrder(metas)
	return metas, nil
}

func sortInsertionOrder(metas []Meta) {
	slices.SortFunc(metas, func(a, b Meta) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Ext, b.Ext)
	})
}

// Get returns the record stored for key and representation extension.
func (s *Store) Get(ctx context.Context, key, ext string) (Record, error) {
	b, err := s.kv.Get(ctx, recordKey(key, ext))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, fmt.Errorf("get %s: %w", EncodeRelativePath(key, ext), ErrNotFound)
		}
		return Record{}, unavailable("get "+EncodeRelativePath(key, ext), err)
	}

	r, err := decodeRecord(b)
	if err != nil {
		return Record{}, unavailable("get "+EncodeRelativePath(key, ext), err)
	}
	return r, nil
}

// Meta returns the metadata of one representation without its content.
func (s *Store) Meta(ctx context.Context, key, ext string) (Meta, error) {
	b, err := s.kv.Get(ctx, metaKey(key, ext))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Meta{}, fmt.Errorf("meta %s: %w", EncodeRelativePath(key, ext), ErrNotFound)
		}
		return Meta{}, unavailable("meta "+EncodeRelativePath(key, ext), err)
	}

	m, err := decodeMeta(b)
	if err != nil {
		return Meta{}, unavailable("meta "+EncodeRelativePath(key, ext), err)
	}
	return m, nil
}

// Put writes a record. It reports whether the (key, representation) pair
// was created rather than overwritten. CreatedAt of an overwritten record is
// kept, so insertion order survives updates.
func (s *Store) Put(ctx context.Context, req WriteRequest) (PutResult, error) {
	if !IsValidKey(req.Key) {
		return PutResult{}, fmt.Errorf("put %q: %w", req.Key, ErrInvalidPath)
	}
	path := EncodeRelativePath(req.Key, req.Representation.Ext)

	unlock := s.lock(req.Key)
	defer unlock()

	existing, err := s.Get(ctx, req.Key, req.Representation.Ext)
	exists := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PutResult{}, err
	}

	if req.IfNoneMatch && exists {
		return PutResult{}, fmt.Errorf("put %s: %w", path, ErrPreconditionFailed)
	}
	if req.IfMatch != "" && (!exists || !etagMatches(req.IfMatch, existing.Hash)) {
		return PutResult{}, fmt.Errorf("put %s: %w", path, ErrPreconditionFailed)
	}

	now := s.now().UTC()
	modTime := req.ModTime
	if modTime.IsZero() {
		modTime = now
	}

	mediaType := req.Representation.MediaType
	if mediaType == "" {
		mediaType = MediaTypeForExtension(req.Representation.Ext)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = mediaType
	}

	createdAt := now
	if exists {
		createdAt = existing.CreatedAt
	} else {
		createdAt, err = s.nextCreatedAt(ctx, req.Key, now)
		if err != nil {
			return PutResult{}, err
		}
	}

	rec := Record{
		Meta: Meta{
			Key:         req.Key,
			Ext:         req.Representation.Ext,
			MediaType:   mediaType,
			ContentType: contentType,
			Size:        int64(len(req.Content)),
			Hash:        ContentHash(req.Content),
			ModTime:     modTime.UTC(),
			CreatedAt:   createdAt,
		},
		Content: req.Content,
	}

	b, err := encodeRecord(rec)
	if err != nil {
		return PutResult{}, err
	}
	mb, err := encodeMeta(rec.Meta)
	if err != nil {
		return PutResult{}, err
	}

	// The record goes first: metadata makes a representation visible.
	if err := s.kv.Put(ctx, recordKey(req.Key, req.Representation.Ext), b); err != nil {
		return PutResult{}, unavailable("put "+path, err)
	}
	if err := s.kv.Put(ctx, metaKey(req.Key, req.Representation.Ext), mb); err != nil {
		return PutResult{}, unavailable("put "+path, err)
	}
	s.invalidate(req.Key)

	return PutResult{Meta: rec.Meta, Created: !exists}, nil
}

// nextCreatedAt keeps CreatedAt strictly increasing within a key.
func (s *Store) nextCreatedAt(ctx context.Context, key string, now time.Time) (time.Time, error) {
	metas, err := s.scanVariants(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	if len(metas) == 0 {
		return now, nil
	}
	last := metas[len(metas)-1].CreatedAt
	if !now.After(last) {
		return last.Add(time.Nanosecond), nil
	}
	return now, nil
}

// Delete removes one representation of key.
func (s *Store) Delete(ctx context.Context, key, ext string) error {
	path := EncodeRelativePath(key, ext)

	unlock := s.lock(key)
	defer unlock()

	if _, err := s.Meta(ctx, key, ext); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if err := s.deletePair(ctx, key, ext); err != nil {
		return unavailable("delete "+path, err)
	}
	s.invalidate(key)
	return nil
}

// deletePair hides a representation before removing its content.
func (s *Store) deletePair(ctx context.Context, key, ext string) error {
	if err := s.kv.Delete(ctx, metaKey(key, ext)); err != nil {
		return err
	}
	return s.kv.Delete(ctx, recordKey(key, ext))
}

// DeleteAll removes every representation of key and returns what was removed.
func (s *Store) DeleteAll(ctx context.Context, key string) ([]Meta, error) {
	unlock := s.lock(key)
	defer unlock()

	metas, err := s.scanVariants(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("delete all %s: %w", key, ErrNotFound)
	}

	for i, m := range metas {
		if err := s.deletePair(ctx, key, m.Ext); err != nil {
			s.invalidate(key)
			return metas[:i], unavailable("delete all "+key, err)
		}
	}
	s.invalidate(key)
	return metas, nil
}

func (s *Store) invalidate(key string) {
	if s.cache != nil {
		s.cache.Remove(key)
	}
}

// List returns a page of records whose key starts with q.Prefix, in key
// order. A limit of zero or less returns everything.
func (s *Store) List(ctx context.Context, q ListQuery) (ListResult, error) {
	after, err := DecodeCursor(q.Cursor)
	if err != nil {
		return ListResult{}, fmt.Errorf("list: %w", err)
	}

	var (
		items []Meta
		last  string
		more  bool
	)
	stop := errors.New("stop")

	err = s.kv.Scan(ctx, []byte(metaPrefix+q.Prefix), func(k, v []byte) error {
		sk := string(k)
		if after != "" && sk <= after {
			return nil
		}
		if q.Limit > 0 && len(items) == q.Limit {
			more = true
			return stop
		}
		m, err := decodeMeta(v)
		if err != nil {
			return err
		}
		items = append(items, m)
		last = sk
		return nil
	})
	if err != nil && !errors.Is(err, stop) {
		return ListResult{}, unavailable("list", err)
	}

	result := ListResult{Items: items}
	if result.Items == nil {
		result.Items = []Meta{}
	}
	if more {
		result.NextCursor = EncodeCursor(last)
	}
	return result, nil
}

// Marker returns the sync marker of a pair, or ErrNotFound.
func (s *Store) Marker(ctx context.Context, key, ext string) (SyncMarker, error) {
	b, err := s.kv.Get(ctx, markerKey(key, ext))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SyncMarker{}, fmt.Errorf("marker %s: %w", EncodeRelativePath(key, ext), ErrNotFound)
		}
		return SyncMarker{}, unavailable("marker "+EncodeRelativePath(key, ext), err)
	}
	m, err := decodeMarker(b)
	if err != nil {
		return SyncMarker{}, unavailable("marker "+EncodeRelativePath(key, ext), err)
	}
	return m, nil
}

// PutMarker records the hash a pair was last reconciled at.
func (s *Store) PutMarker(ctx context.Context, key, ext, hash string) error {
	b, err := encodeMarker(SyncMarker{Hash: hash, SyncedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, markerKey(key, ext), b); err != nil {
		return unavailable("put marker "+EncodeRelativePath(key, ext), err)
	}
	return nil
}

// DeleteMarker forgets a pair.
func (s *Store) DeleteMarker(ctx context.Context, key, ext string) error {
	if err := s.kv.Delete(ctx, markerKey(key, ext)); err != nil {
		return unavailable("delete marker "+EncodeRelativePath(key, ext), err)
	}
	return nil
}

// Markers calls fn for every sync marker in key order.
func (s *Store) Markers(ctx context.Context, fn func(key, ext string, m SyncMarker) error) error {
	var fnErr error
	err := s.kv.Scan(ctx, []byte(markerPrefix), func(k, v []byte) error {
		key, ext, err := splitStorageKey(markerPrefix, k)
		if err != nil {
			return err
		}
		m, err := decodeMarker(v)
		if err != nil {
			return err
		}
		if err := fn(key, ext, m); err != nil {
			fnErr = err
			return err
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return unavailable("scan markers", err)
	}
	return nil
}

func etagMatches(header, hash string) bool {
	for tag := range strings.SplitSeq(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}
		tag = strings.TrimPrefix(tag, "W/")
		if strings.Trim(tag, `"`) == hash {
			return true
		}
	}
	return false
}
