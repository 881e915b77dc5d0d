package testsupport

import (
	"context"
	"fmt"
	"testing"

	"clipstream/internal/config"
	"clipstream/internal/embedding"
	"clipstream/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenEmbeddingStore opens an embedding.Store for tests and registers
// cleanup.
func MustOpenEmbeddingStore(t testing.TB, cfg *config.Config) *embedding.Store {
	t.Helper()

	store, err := embedding.Open(cfg)
	if err != nil {
		t.Fatalf("embedding.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// EnqueueVideo registers a video for tests using the provided store.
func EnqueueVideo(t testing.TB, store *queue.Store, id, title string) *queue.Video {
	t.Helper()

	video, created, err := store.Enqueue(context.Background(), id, title, fmt.Sprintf("raw-uploads/%s", id))
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	if !created {
		t.Fatalf("video %s already existed", id)
	}
	return video
}
