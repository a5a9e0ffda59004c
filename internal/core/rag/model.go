package rag

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus はジョブのライフサイクル状態を表します
type JobStatus string

const (
	// JobStatusRunning は取り込み処理中の状態
	JobStatusRunning JobStatus = "running"
	// JobStatusFinished は全ソースの取り込みが完了した状態（終端）
	JobStatusFinished JobStatus = "finished"
	// JobStatusError はいずれかのステージで失敗した状態（終端）
	JobStatusError JobStatus = "error"
)

// Job は1件の取り込み単位を表します。
// ステータスと回答はオーケストレーターのみが遷移点で書き込みます。
type Job struct {
	ID        uuid.UUID
	Name      string
	Sources   []string // 生のソーストークン（リテラルテキストまたはURL）、1〜5件
	Status    JobStatus
	Answer    *string // 最後に計算された回答（last-query-wins）
	Error     string  // 直近の失敗メッセージ（空文字列は失敗なし）
	CreatedAt time.Time
}

// Namespace はこのジョブのベクトル名前空間を返します
func (j *Job) Namespace() string {
	return j.ID.String()
}

// Chunk は埋め込み対象のテキスト断片を表します。
// 派生データであり単独では永続化されません。
type Chunk struct {
	SourceIndex int // 由来するソースのジョブ内インデックス
	Sequence    int // ソース内の連番
	Text        string
}

// RecordID は名前空間内で一意なレコードIDを返します
func (c *Chunk) RecordID() string {
	return fmt.Sprintf("%d-%d", c.SourceIndex, c.Sequence)
}

// VectorRecord はベクトルインデックスへ upsert する1レコードを表します
type VectorRecord struct {
	ID          string // 名前空間内で一意（"<source_index>-<chunk_seq>"）
	Vector      []float32
	Content     string
	SourceIndex int
}

// SearchHit は類似検索の1ヒットを表します
type SearchHit struct {
	Content     string
	SourceIndex int
	Score       float64 // コサイン類似度（降順）
}
