// Package blobstore stores rendered documents and hands out time-limited
// download links for them. It defines the Store interface, an S3 backend
// built on aws-sdk-go-v2 and an in-memory implementation for tests and
// development.
package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrMissingKey   = errors.New("object key is required")
)

// MaxFileSize is the largest object accepted by Put (25 MB).
const MaxFileSize = 25 * 1024 * 1024

// Object describes a stored blob. Key is the identifier to pass to
// PresignGet and Delete; backends that assign their own ids return those.
type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*Object, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

func validate(key string, data []byte) error {
	if key == "" {
		return ErrMissingKey
	}
	if len(data) > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

func hashOf(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

type storedBlob struct {
	object  Object
	content []byte
}

// InMemoryStore is a thread-safe Store for tests and development. Its
// presigned URLs use the memory:// scheme.
type InMemoryStore struct {
	mu     sync.RWMutex
	bucket string
	blobs  map[string]*storedBlob
	now    func() time.Time
}

func NewInMemoryStore(bucket string) *InMemoryStore {
	return &InMemoryStore{bucket: bucket, blobs: make(map[string]*storedBlob), now: time.Now}
}

func (s *InMemoryStore) Put(_ context.Context, key, contentType string, data []byte) (*Object, error) {
	if err := validate(key, data); err != nil {
		return nil, err
	}
	obj := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hashOf(data),
		CreatedAt:   s.now().UTC(),
	}
	content := make([]byte, len(data))
	copy(content, data)

	s.mu.Lock()
	s.blobs[key] = &storedBlob{object: obj, content: content}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

// Get returns the stored content and its metadata.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, *Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	obj := b.object
	return b.content, &obj, nil
}

func (s *InMemoryStore) PresignGet(_ context.Context, key string, expires time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return "", ErrBlobNotFound
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", s.bucket, url.PathEscape(key), int(expires.Seconds())), nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// Len returns the number of stored objects.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
