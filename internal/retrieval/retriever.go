// Package retrieval implements the document store used by the pipeline:
// embed the question, search a vector index, then apply the score threshold
// and top-K policy.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hirepal/internal/domain"
)

const (
	DefaultTopK     = 20
	DefaultMinScore = 0.5
)

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index searches stored chunk vectors. Returned scores must be similarities.
type Index interface {
	Search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error)
}

// Options tunes a Retriever.
type Options struct {
	TopK     int
	MinScore float64
	Timeout  time.Duration
}

// Retriever is the DocumentStore consumed by the pipeline.
type Retriever struct {
	embedder Embedder
	index    Index
	opts     Options
}

func NewRetriever(e Embedder, idx Index, opts Options) (*Retriever, error) {
	if e == nil {
		return nil, errors.New("retrieval: embedder must not be nil")
	}
	if idx == nil {
		return nil, errors.New("retrieval: index must not be nil")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinScore < 0 {
		opts.MinScore = 0
	}
	return &Retriever{embedder: e, index: idx, opts: opts}, nil
}

// Retrieve returns at most TopK chunks scoring at least MinScore, best first.
// Any embedding or index failure is returned as an error, never as an empty
// result.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]domain.RetrievedChunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("retrieval: empty question")
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed question: %w", err)
	}
	if len(vec) == 0 {
		return nil, errors.New("retrieval: embedder returned an empty vector")
	}

	hits, err := r.index.Search(ctx, vec, r.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search index: %w", err)
	}
	return ApplyPolicy(hits, r.opts.TopK, r.opts.MinScore), nil
}

// ApplyPolicy drops chunks below minScore, orders the rest by descending score
// (ties keep index order) and caps the result at topK.
func ApplyPolicy(chunks []domain.RetrievedChunk, topK int, minScore float64) []domain.RetrievedChunk {
	out := make([]domain.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// DistanceToScore converts a cosine distance into a similarity in [0,1].
func DistanceToScore(distance float64) float64 {
	score := 1 - distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
