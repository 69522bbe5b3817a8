package h2kv

import (
	"context"
	"errors"
	"fmt"
)

// Service implements the resource protocol: HEAD, GET, PUT and DELETE on
// request paths, on top of a Store.
type Service struct {
	store *Store
}

// NewService creates a Service backed by store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Store returns the underlying store.
func (s *Service) Store() *Store {
	return s.store
}

// Head resolves a request path and negotiates one representation, without
// loading its content.
func (s *Service) Head(ctx context.Context, path, accept string) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, fmt.Errorf("head object: %w", err)
	}

	key, hint, err := DecodeRequestPath(path)
	if err != nil {
		return Meta{}, fmt.Errorf("head object: %w", err)
	}

	return s.negotiate(ctx, key, accept, hint)
}

// Get resolves a request path, negotiates one representation and returns
// the full record.
func (s *Service) Get(ctx context.Context, path, accept string) (Record, error) {
	meta, err := s.Head(ctx, path, accept)
	if err != nil {
		return Record{}, fmt.Errorf("get object: %w", err)
	}

	rec, err := s.store.Get(ctx, meta.Key, meta.Ext)
	if err != nil {
		return Record{}, fmt.Errorf("get object: %w", err)
	}
	return rec, nil
}

func (s *Service) negotiate(ctx context.Context, key, accept, hint string) (Meta, error) {
	metas, err := s.store.Variants(ctx, key)
	if err != nil {
		return Meta{}, err
	}

	reps := make([]Representation, len(metas))
	for i, m := range metas {
		reps[i] = m.Representation()
	}

	rep, err := Negotiate(reps, accept, hint)
	if err != nil {
		return Meta{}, fmt.Errorf("negotiate %s: %w", key, err)
	}

	for _, m := range metas {
		if m.Ext == rep.Ext {
			return m, nil
		}
	}
	return Meta{}, fmt.Errorf("negotiate %s: %w", key, ErrNotAcceptable)
}

// ResolveRepresentation picks the representation a write addresses.
//
// An extension alone selects that extension with its table media type. A
// Content-Type alone selects the media type with its preferred extension.
// Both together keep the extension and store the given media type. Without
// either, a fresh key gets the untyped representation and a key whose
// representations share one media type is overwritten in place; anything
// else is ErrAmbiguousRepresentation.
func ResolveRepresentation(existing []Meta, hint, contentType string) (Representation, error) {
	var mediaType string
	if contentType != "" {
		mt, err := ParseContentType(contentType)
		if err != nil {
			return Representation{}, err
		}
		mediaType = mt
	}

	switch {
	case hint != "" && mediaType != "":
		return Representation{Ext: hint, MediaType: mediaType}, nil
	case hint != "":
		return Representation{Ext: hint, MediaType: MediaTypeForExtension(hint)}, nil
	case mediaType != "":
		return Representation{Ext: ExtensionForMediaType(mediaType), MediaType: mediaType}, nil
	}

	if len(existing) == 0 {
		return Representation{Ext: "", MediaType: OctetStream}, nil
	}

	first := existing[0]
	for _, m := range existing[1:] {
		if m.MediaType != first.MediaType {
			return Representation{}, ErrAmbiguousRepresentation
		}
	}
	return first.Representation(), nil
}

// Put stores the request body under the representation the path and
// Content-Type address.
func (s *Service) Put(ctx context.Context, obj PutObject) (PutResult, error) {
	if err := ctx.Err(); err != nil {
		return PutResult{}, fmt.Errorf("put object: %w", err)
	}

	key, hint, err := DecodeRequestPath(obj.Path)
	if err != nil {
		return PutResult{}, fmt.Errorf("put object: %w", err)
	}

	var existing []Meta
	if hint == "" && obj.ContentType == "" {
		existing, err = s.store.Variants(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return PutResult{}, fmt.Errorf("put object: %w", err)
		}
	}

	rep, err := ResolveRepresentation(existing, hint, obj.ContentType)
	if err != nil {
		return PutResult{}, fmt.Errorf("put object %s: %w", key, err)
	}

	res, err := s.store.Put(ctx, WriteRequest{
		Key:            key,
		Representation: rep,
		ContentType:    obj.ContentType,
		Content:        obj.Content,
		IfMatch:        obj.IfMatch,
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("put object: %w", err)
	}
	return res, nil
}

// Delete removes the representation named by the path extension, or every
// representation of the key when the path has none. It returns what was
// removed.
func (s *Service) Delete(ctx context.Context, path string) ([]Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("delete object: %w", err)
	}

	key, hint, err := DecodeRequestPath(path)
	if err != nil {
		return nil, fmt.Errorf("delete object: %w", err)
	}

	if hint == "" {
		metas, err := s.store.DeleteAll(ctx, key)
		if err != nil {
			return metas, fmt.Errorf("delete object: %w", err)
		}
		return metas, nil
	}

	meta, err := s.store.Meta(ctx, key, hint)
	if err != nil {
		return nil, fmt.Errorf("delete object: %w", err)
	}
	if err := s.store.Delete(ctx, key, hint); err != nil {
		return nil, fmt.Errorf("delete object: %w", err)
	}
	return []Meta{meta}, nil
}

// List returns a page of records in key order.
func (s *Service) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list objects: %w", err)
	}

	result, err := s.store.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list objects: %w", err)
	}
	return result, nil
}
