package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema はスキーマが存在しない場合に一度だけ作成します。
// ベクトル次元とコサイン距離はデプロイ時に固定され、ジョブごとの作成は行いません。
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id uuid PRIMARY KEY,
			name text NOT NULL,
			sources jsonb NOT NULL,
			status text NOT NULL,
			answer text,
			error text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS job_chunks (
			namespace text NOT NULL,
			record_id text NOT NULL,
			content text NOT NULL,
			source_index integer NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, record_id)
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS job_chunks_embedding_idx
			ON job_chunks USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}
