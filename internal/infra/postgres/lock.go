package postgres

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mu6m/better-datafy/internal/core/rag"
)

// IngestLockManager は rag.IngestLocker を実装します。
// PostgreSQL のアドバイザリロックにより、プロセスをまたいで
// ジョブ単位の取り込みを高々1つに直列化します。
type IngestLockManager struct {
	pool *pgxpool.Pool
}

// NewIngestLockManager は新しい IngestLockManager を作成します
func NewIngestLockManager(pool *pgxpool.Pool) *IngestLockManager {
	return &IngestLockManager{pool: pool}
}

// コンパイル時の型チェック
var _ rag.IngestLocker = (*IngestLockManager)(nil)

// AcquireIngest はジョブの取り込みロックを取得します。
// ロックはセッションスコープのため、解放まで専用コネクションを保持します。
func (m *IngestLockManager) AcquireIngest(ctx context.Context, jobID uuid.UUID) (func(), error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	lockID := GenerateLockID("ingest", jobID.String())

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, fmt.Errorf("%w: job %s", rag.ErrIngestInProgress, jobID)
	}

	release := func() {
		// 呼び出し元の ctx がキャンセル済みでも解放は必ず行う
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, lockID)
		conn.Release()
	}
	return release, nil
}

// GenerateLockID は文字列からロックIDを生成します
func GenerateLockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
	}
	hash := h.Sum(nil)

	// ハッシュの最初の8バイトをint64として使用
	var id int64
	for i := range 8 {
		id = (id << 8) | int64(hash[i])
	}

	return id
}
