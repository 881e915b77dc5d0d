package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ObjectStore is an in-memory stand-in for the S3 client used by stage
// executor tests.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailReads makes every read operation fail, for retry-path tests.
	FailReads bool
}

// NewObjectStore returns an empty in-memory object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

// Put seeds an object directly.
func (s *ObjectStore) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
}

// Get returns a stored object's bytes, or nil when absent.
func (s *ObjectStore) Get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

// Keys returns every stored key, for asserting upload layouts.
func (s *ObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	return keys
}

func (s *ObjectStore) Download(ctx context.Context, key, localPath string) error {
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if s.FailReads {
		return fmt.Errorf("download %s: storage unavailable", key)
	}
	if !ok {
		return fmt.Errorf("download %s: not found", key)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (s *ObjectStore) UploadFile(ctx context.Context, key, localPath, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.Put(key, data)
	return nil
}

func (s *ObjectStore) UploadDirectory(ctx context.Context, prefix, localDir string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		s.Put(prefix+"/"+strings.ReplaceAll(rel, string(filepath.Separator), "/"), data)
		return nil
	})
}

func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *ObjectStore) Size(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return 0, fmt.Errorf("stat %s: storage unavailable", key)
	}
	data, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("stat %s: not found", key)
	}
	return int64(len(data)), nil
}

func (s *ObjectStore) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return nil, fmt.Errorf("read %s: storage unavailable", key)
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("read %s: not found", key)
	}
	if offset >= int64(len(data)) {
		return nil, fmt.Errorf("read %s: offset %d past end", key, offset)
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return append([]byte(nil), data[offset:end]...), nil
}

func (s *ObjectStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "http://storage.test/" + key, nil
}

func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
