package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"hirepal/internal/domain"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGVectorStore searches a table of CV chunks with a pgvector embedding column.
// Expected columns: content text, filename text, embedding vector.
type PGVectorStore struct {
	db    querier
	query string
}

// ConnectPostgres opens a pool and verifies connectivity.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("retrieval: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("retrieval: ping postgres: %w", err)
	}
	return pool, nil
}

func NewPGVectorStore(db querier, table string) (*PGVectorStore, error) {
	if db == nil {
		return nil, errors.New("retrieval: postgres pool must not be nil")
	}
	table = strings.TrimSpace(table)
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("retrieval: invalid table name %q", table)
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return &PGVectorStore{
		db: db,
		query: `
	SELECT
	  content,
	  filename,
	  embedding <=> $1 AS distance
	FROM ` + ident + `
	ORDER BY distance ASC
	LIMIT $2`,
	}, nil
}

// Search runs a cosine-distance nearest neighbour query and reports similarities.
func (s *PGVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	rows, err := s.db.Query(ctx, s.query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("retrieval: pgvector query: %w", err)
	}
	defer rows.Close()

	var chunks []domain.RetrievedChunk
	for rows.Next() {
		var (
			content, filename string
			distance          float64
		)
		if err := rows.Scan(&content, &filename, &distance); err != nil {
			return nil, fmt.Errorf("retrieval: pgvector scan: %w", err)
		}
		chunks = append(chunks, domain.RetrievedChunk{
			Content:        content,
			SourceFilename: filename,
			Score:          DistanceToScore(distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retrieval: pgvector rows: %w", err)
	}
	return chunks, nil
}
