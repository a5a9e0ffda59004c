package rag

import (
	"context"

	"github.com/google/uuid"
)

// JobRepository はジョブレコードへの狭いキーバリュー契約を表します。
// ステータスと回答の書き込みはオーケストレーターの遷移点からのみ行われます。
type JobRepository interface {
	// CreateJob はジョブを running 状態で作成する
	CreateJob(ctx context.Context, name string, sources []string) (*Job, error)

	// GetJob はジョブを取得する。存在しない場合は ErrJobNotFound をラップして返す。
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)

	// ListJobs はジョブ一覧を作成日時の降順で返す
	ListJobs(ctx context.Context) ([]*Job, error)

	// SaveStatus はジョブのステータスを更新する
	SaveStatus(ctx context.Context, id uuid.UUID, status JobStatus) error

	// SaveAnswer はジョブの回答を上書きする（last-query-wins）
	SaveAnswer(ctx context.Context, id uuid.UUID, answer string) error

	// SaveErrorNote はジョブの失敗メッセージのみを記録する（ステータスは変更しない）
	SaveErrorNote(ctx context.Context, id uuid.UUID, note string) error
}

// IngestLocker はジョブ単位の取り込み直列化を提供します。
// 同一ジョブIDに対する同時取り込みは高々1つに制限されます。
type IngestLocker interface {
	// AcquireIngest はジョブの取り込みロックを取得する。
	// 既に取得済みの場合は ErrIngestInProgress を返す。
	// 取得に成功した場合、返された release を必ず呼び出すこと。
	AcquireIngest(ctx context.Context, jobID uuid.UUID) (release func(), err error)
}
