package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPEmbedderRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SourceURL != "http://storage.test/raw-uploads/vid-1" {
			t.Errorf("unexpected source url %q", req.SourceURL)
		}
		if req.WindowSeconds != 1.0 {
			t.Errorf("unexpected window %v", req.WindowSeconds)
		}
		json.NewEncoder(w).Encode(Embedding{
			Clip:     []float32{1, 2},
			Segments: [][]float32{{1, 2}, {3, 4}},
		})
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL, 5*time.Second)
	result, err := embedder.Embed(context.Background(), "http://storage.test/raw-uploads/vid-1", 1.0)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(result.Clip) != 2 || len(result.Segments) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHTTPEmbedderRejectsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL, 5*time.Second)
	if _, err := embedder.Embed(context.Background(), "http://x", 1.0); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestHTTPEmbedderRejectsEmptyVectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Embedding{})
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL, 5*time.Second)
	if _, err := embedder.Embed(context.Background(), "http://x", 1.0); err == nil {
		t.Fatal("expected error for empty vectors")
	}
}
