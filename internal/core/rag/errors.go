package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSources はソースが1件も指定されていない場合に返されます
	ErrNoSources = errors.New("job has no sources")

	// ErrTooManySources はソース数が上限を超えた場合に返されます
	ErrTooManySources = errors.New("too many sources")

	// ErrSourceTooLong はソーストークンが最大長を超えた場合に返されます
	ErrSourceTooLong = errors.New("source exceeds maximum length")

	// ErrEmptyQuestion は質問文が空の場合に返されます
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrQuestionTooLong は質問文が最大長を超えた場合に返されます
	ErrQuestionTooLong = errors.New("question exceeds maximum length")

	// ErrJobNotFound はジョブが存在しない場合に返されます
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotReady は finished でないジョブへの問い合わせで返されます
	ErrJobNotReady = errors.New("job is not finished")

	// ErrIngestInProgress は同一ジョブの取り込みが既に実行中の場合に返されます
	ErrIngestInProgress = errors.New("ingest already in progress")

	// ErrInvalidChunkConfig はチャンカー設定が不正な場合に返されます
	ErrInvalidChunkConfig = errors.New("invalid chunker config")

	// ErrNoStrategies は合成ストラテジが1件も設定されていない場合に返されます
	ErrNoStrategies = errors.New("no synthesis strategies configured")
)

// FetchError はソースURLの取得失敗を表します。
// ローカルで吸収される回復可能エラーであり、取り込み全体を止めることはありません。
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed: %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// EmbeddingError はリトライ上限まで失敗した埋め込み呼び出しを表します。
// 取り込み中に発生した場合、ジョブは error へ遷移します。
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// IndexError はベクトルインデックス操作の失敗を表します。
// 取り込み時の upsert 失敗はジョブ致命、問い合わせ時の検索失敗はクエリ致命です。
type IndexError struct {
	Op  string // "upsert" または "search"
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("vector index %s failed: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// SynthesisError は回答生成の失敗を表します。ジョブのステータスには影響しません。
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("answer synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
