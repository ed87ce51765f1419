package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hirepal/internal/domain"
)

// QdrantConfig configures the Qdrant REST index.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantStore is a minimal REST client for Qdrant point search over a cosine
// collection. Payloads carry the chunk text and the source filename, either
// at the top level or under "metadata".
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("retrieval: qdrant url must not be empty")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, errors.New("retrieval: qdrant collection must not be empty")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type qdrantSearchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type qdrantSearchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		limit = DefaultTopK
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points/search", s.url, url.PathEscape(s.collection))
	body, err := json.Marshal(qdrantSearchRequest{Vector: vector, Limit: limit, WithPayload: true})
	if err != nil {
		return nil, fmt.Errorf("retrieval: qdrant marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("retrieval: qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: qdrant search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("retrieval: qdrant search failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out qdrantSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("retrieval: qdrant decode: %w", err)
	}

	chunks := make([]domain.RetrievedChunk, 0, len(out.Result))
	for _, r := range out.Result {
		chunks = append(chunks, domain.RetrievedChunk{
			Content:        payloadString(r.Payload, "content", "page_content", "text"),
			SourceFilename: payloadString(r.Payload, "filename", "source", "file_name"),
			Score:          r.Score,
		})
	}
	return chunks, nil
}

// payloadString returns the first non-empty string found under keys, looking
// at the payload root first and then at payload["metadata"].
func payloadString(payload map[string]any, keys ...string) string {
	scopes := []map[string]any{payload}
	if meta, ok := payload["metadata"].(map[string]any); ok {
		scopes = append(scopes, meta)
	}
	for _, scope := range scopes {
		for _, k := range keys {
			if v, ok := scope[k].(string); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return ""
}
