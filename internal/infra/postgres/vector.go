package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mu6m/better-datafy/internal/core/rag"
)

// VectorIndex は rag.VectorIndex を実装する pgvector ベースのストアです。
// 名前空間はジョブIDであり、全クエリは名前空間で絞り込まれます。
type VectorIndex struct {
	pool *pgxpool.Pool
}

// NewVectorIndex は新しい VectorIndex を作成します
func NewVectorIndex(pool *pgxpool.Pool) *VectorIndex {
	return &VectorIndex{pool: pool}
}

// コンパイル時の型チェック
var _ rag.VectorIndex = (*VectorIndex)(nil)

const upsertChunkSQL = `
	INSERT INTO job_chunks (namespace, record_id, content, source_index, embedding)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (namespace, record_id)
	DO UPDATE SET content = EXCLUDED.content,
	              source_index = EXCLUDED.source_index,
	              embedding = EXCLUDED.embedding`

// Upsert はレコード群を単一トランザクションで書き込みます。
// レコードIDによる冪等性を持ち、同一IDの再upsertは上書きになります。
func (v *VectorIndex) Upsert(ctx context.Context, namespace string, records []rag.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := v.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(upsertChunkSQL,
			namespace,
			record.ID,
			record.Content,
			record.SourceIndex,
			pgvector.NewVector(record.Vector),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Search は名前空間内でコサイン類似度の降順に最大 topK 件を返します。
// 同点の順序は PostgreSQL のネイティブ順序に従います。
func (v *VectorIndex) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]rag.SearchHit, error) {
	rows, err := v.pool.Query(ctx,
		`SELECT content, source_index, 1 - (embedding <=> $2) AS score
		 FROM job_chunks
		 WHERE namespace = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		namespace, pgvector.NewVector(vector), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]rag.SearchHit, 0, topK)
	for rows.Next() {
		var hit rag.SearchHit
		if err := rows.Scan(&hit.Content, &hit.SourceIndex, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	return hits, nil
}
