package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embedding is the embedder service's output for one video: a whole-clip
// vector plus one vector per fixed time window.
type Embedding struct {
	Clip     []float32   `json:"clip"`
	Segments [][]float32 `json:"segments"`
}

// Embedder produces embedding vectors for a video the service can reach by
// URL.
type Embedder interface {
	Embed(ctx context.Context, sourceURL string, windowSeconds float64) (Embedding, error)
}

// HTTPEmbedder calls the embedding model over its JSON HTTP API.
type HTTPEmbedder struct {
	endpoint string
	client   *http.Client
}

// NewHTTPEmbedder builds an embedder client for the given endpoint.
func NewHTTPEmbedder(endpoint string, timeout time.Duration) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPEmbedder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	SourceURL     string  `json:"source_url"`
	WindowSeconds float64 `json:"window_seconds"`
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, sourceURL string, windowSeconds float64) (Embedding, error) {
	payload, err := json.Marshal(embedRequest{SourceURL: sourceURL, WindowSeconds: windowSeconds})
	if err != nil {
		return Embedding{}, fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Embedding{}, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Embedding{}, fmt.Errorf("call embedder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Embedding{}, fmt.Errorf("embedder returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result Embedding
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Embedding{}, fmt.Errorf("decode embedder response: %w", err)
	}
	if len(result.Clip) == 0 || len(result.Segments) == 0 {
		return Embedding{}, fmt.Errorf("embedder returned empty vectors")
	}
	return result, nil
}
