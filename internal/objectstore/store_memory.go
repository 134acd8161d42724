package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"docket/internal/objectstore/urlsigner"
	"docket/pkg/platform/sentinel"
	"docket/pkg/requestcontext"
)

type memObject struct {
	data        []byte
	contentType string
}

// MemoryStore is a mutex-guarded in-process object store for tests and the
// development backend. Presigned URLs are minted through an urlsigner grant
// against the configured base URL.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	signer  *urlsigner.Signer
	baseURL string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithURLSigner enables presigning against baseURL.
func WithURLSigner(signer *urlsigner.Signer, baseURL string) MemoryOption {
	return func(s *MemoryStore) {
		s.signer = signer
		s.baseURL = baseURL
	}
}

// NewMemory creates an empty in-memory object store.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{objects: make(map[string]memObject)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Head(_ context.Context, key string) (ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return ObjectInfo{}, sentinel.ErrNotFound
	}
	return ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, ObjectInfo{}, sentinel.ErrNotFound
	}
	info := ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read put body: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (s *MemoryStore) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.objects[srcKey]
	if !ok {
		return sentinel.ErrNotFound
	}
	data := make([]byte, len(src.data))
	copy(data, src.data)
	s.objects[dstKey] = memObject{data: data, contentType: src.contentType}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (PresignedURL, error) {
	return s.presign(ctx, urlsigner.Grant{Key: key, Method: "PUT"}, expiry)
}

func (s *MemoryStore) PresignGet(ctx context.Context, key, filename string, expiry time.Duration) (PresignedURL, error) {
	return s.presign(ctx, urlsigner.Grant{Key: key, Method: "GET", Filename: filename}, expiry)
}

func (s *MemoryStore) presign(ctx context.Context, grant urlsigner.Grant, expiry time.Duration) (PresignedURL, error) {
	if s.signer == nil {
		return PresignedURL{}, sentinel.ErrUnavailable
	}
	now := requestcontext.Now(ctx)
	token, err := s.signer.Sign(grant, now, expiry)
	if err != nil {
		return PresignedURL{}, fmt.Errorf("sign url grant: %w", err)
	}
	return PresignedURL{
		URL:     fmt.Sprintf("%s/objects/%s?grant=%s", s.baseURL, url.PathEscape(grant.Key), url.QueryEscape(token)),
		Method:  grant.Method,
		Expires: now.Add(expiry),
	}, nil
}
