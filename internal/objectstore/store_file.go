package objectstore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docket/internal/objectstore/urlsigner"
	"docket/pkg/platform/sentinel"
	"docket/pkg/requestcontext"
)

// FileStore is a filesystem-backed object store for single-node deployments.
// Writes go to a temp file first and are committed with an atomic rename so
// readers never observe partial objects.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	signer  *urlsigner.Signer
	baseURL string
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileURLSigner enables presigning against baseURL.
func WithFileURLSigner(signer *urlsigner.Signer, baseURL string) FileOption {
	return func(s *FileStore) {
		s.signer = signer
		s.baseURL = baseURL
	}
}

// NewFile creates a filesystem object store rooted at baseDir.
func NewFile(baseDir string, opts ...FileOption) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure object dir: %w", err)
	}
	s := &FileStore{baseDir: baseDir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// path maps a store key onto the filesystem, rejecting traversal outside the
// root. Keys are derived from validated UUIDs and hex digests upstream, so a
// rejection here indicates a programming error rather than hostile input.
func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *FileStore) Head(_ context.Context, key string) (ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, sentinel.ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}
	return ObjectInfo{Key: key, Size: fi.Size(), ContentType: contentTypeFromKey(key)}, nil
}

func (s *FileStore) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.path(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, sentinel.ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open object: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}
	info := ObjectInfo{Key: key, Size: fi.Size(), ContentType: contentTypeFromKey(key)}
	return f, info, nil
}

func (s *FileStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure object dir: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp object: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("commit object: %w", err)
	}
	return nil
}

func (s *FileStore) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	srcPath, err := s.path(srcKey)
	if err != nil {
		return err
	}
	dstPath, err := s.path(dstKey)
	if err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("open source object: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("ensure object dir: %w", err)
	}
	tmpPath := dstPath + ".tmp"
	dst, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy object: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp object: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("commit object: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *FileStore) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (PresignedURL, error) {
	return s.presign(ctx, urlsigner.Grant{Key: key, Method: "PUT"}, expiry)
}

func (s *FileStore) PresignGet(ctx context.Context, key, filename string, expiry time.Duration) (PresignedURL, error) {
	return s.presign(ctx, urlsigner.Grant{Key: key, Method: "GET", Filename: filename}, expiry)
}

func (s *FileStore) presign(ctx context.Context, grant urlsigner.Grant, expiry time.Duration) (PresignedURL, error) {
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

func contentTypeFromKey(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
