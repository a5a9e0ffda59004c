package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultTopK は問い合わせ時に取得するパッセージ数のデフォルト値
	DefaultTopK = 3
	// DefaultMaxSources は1ジョブあたりのソース数上限
	DefaultMaxSources = 5
	// DefaultMaxSourceLength はソーストークンの最大文字数
	DefaultMaxSourceLength = 1500
	// DefaultMaxQuestionLength は質問文の最大文字数
	DefaultMaxQuestionLength = 500
)

// ServiceConfig はオーケストレーターの設定
type ServiceConfig struct {
	// TopK は問い合わせ時に取得するパッセージ数
	TopK int
	// MaxSources は1ジョブあたりのソース数上限
	MaxSources int
	// MaxSourceLength はソーストークンの最大文字数
	MaxSourceLength int
	// MaxQuestionLength は質問文の最大文字数
	MaxQuestionLength int
	// IndexFetchFailures は取得に失敗したソースの代替文字列をインデックスするかどうか。
	// false の場合、失敗したソースはスキップされ、失敗メッセージがジョブに記録される。
	IndexFetchFailures bool
}

// DefaultServiceConfig はデフォルトのオーケストレーター設定を返す
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		TopK:               DefaultTopK,
		MaxSources:         DefaultMaxSources,
		MaxSourceLength:    DefaultMaxSourceLength,
		MaxQuestionLength:  DefaultMaxQuestionLength,
		IndexFetchFailures: true,
	}
}

// Service はジョブのステートマシンを制御するオーケストレーターです。
// 取り込み経路: Resolver → Chunker → Embedder（バッチ） → VectorIndex upsert。
// 問い合わせ経路: Embedder → VectorIndex 検索 → Synthesizer → 回答の保存。
type Service struct {
	jobs        JobRepository
	resolver    ContentResolver
	chunker     *Chunker
	embedder    Embedder
	index       VectorIndex
	synthesizer *Synthesizer
	locks       IngestLocker
	config      *ServiceConfig
	logger      *slog.Logger
}

type serviceOptions struct {
	config *ServiceConfig
	logger *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithServiceConfig はオーケストレーター設定を上書きする
func WithServiceConfig(cfg *ServiceConfig) ServiceOption {
	return func(o *serviceOptions) {
		o.config = cfg
	}
}

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(
	jobs JobRepository,
	resolver ContentResolver,
	chunker *Chunker,
	embedder Embedder,
	index VectorIndex,
	synthesizer *Synthesizer,
	locks IngestLocker,
	opts ...ServiceOption,
) *Service {
	options := serviceOptions{
		config: DefaultServiceConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.config == nil {
		options.config = DefaultServiceConfig()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		jobs:        jobs,
		resolver:    resolver,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		synthesizer: synthesizer,
		locks:       locks,
		config:      options.config,
		logger:      options.logger,
	}
}

// Submit はソースを検証し、ジョブを running 状態で作成します。
// 取り込み本体は外部スケジューラ（CLIなど）が Ingest を呼び出して実行します。
func (s *Service) Submit(ctx context.Context, name string, sources []string) (*Job, error) {
	if err := s.validateSources(sources); err != nil {
		return nil, err
	}

	job, err := s.jobs.CreateJob(ctx, name, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("ジョブを作成しました",
		"jobID", job.ID,
		"name", job.Name,
		"sources", len(job.Sources),
	)
	return job, nil
}

// Ingest はジョブの取り込み経路を実行します。
// 埋め込みまたは upsert の失敗でジョブは error へ遷移し、コミット済みの
// upsert はロールバックされません（名前空間はジョブ単位のため再取り込みは
// 新しいジョブの作成で行います）。同一ジョブの同時取り込みは直列化されます。
func (s *Service) Ingest(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	release, err := s.locks.AcquireIngest(ctx, jobID)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	s.logger.Info("取り込みを開始", "jobID", jobID, "sources", len(job.Sources))

	records, fetchFailures, err := s.buildRecords(ctx, job)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}

	// ベクトルストアの変更はジョブごとに単一の upsert 呼び出しに限る
	if len(records) > 0 {
		if err := s.index.Upsert(ctx, job.Namespace(), records); err != nil {
			return s.failJob(ctx, jobID, &IndexError{Op: "upsert", Err: err})
		}
	} else {
		s.logger.Info("インデックス対象のチャンクがありません", "jobID", jobID)
	}

	if len(fetchFailures) > 0 {
		if err := s.jobs.SaveErrorNote(ctx, jobID, strings.Join(fetchFailures, "; ")); err != nil {
			// upsert済みのままジョブを running に残さない
			return s.failJob(ctx, jobID, fmt.Errorf("failed to record fetch failures: %w", err))
		}
	}

	if err := s.jobs.SaveStatus(ctx, jobID, JobStatusFinished); err != nil {
		return fmt.Errorf("failed to save job status: %w", err)
	}

	s.logger.Info("取り込みが完了しました",
		"jobID", jobID,
		"records", len(records),
		"fetchFailures", len(fetchFailures),
		"duration", time.Since(start),
	)
	return nil
}

// Query はジョブの名前空間に対して問い合わせ経路を実行し、回答を返します。
// finished でないジョブへの問い合わせは ErrJobNotReady で拒否します。
// 失敗は呼び出し元へ返され、ジョブのステータスには影響しません。
func (s *Service) Query(ctx context.Context, jobID uuid.UUID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > s.config.MaxQuestionLength {
		return "", fmt.Errorf("%w: max %d chars", ErrQuestionTooLong, s.config.MaxQuestionLength)
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != JobStatusFinished {
		return "", fmt.Errorf("%w: status=%s", ErrJobNotReady, job.Status)
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", &EmbeddingError{Err: err}
	}

	hits, err := s.index.Search(ctx, job.Namespace(), vector, s.config.TopK)
	if err != nil {
		return "", &IndexError{Op: "search", Err: err}
	}

	passages := make([]string, 0, len(hits))
	for _, hit := range hits {
		passages = append(passages, hit.Content)
	}

	answer, strategy, err := s.synthesizer.Synthesize(ctx, question, passages)
	if err != nil {
		return "", err
	}

	if err := s.jobs.SaveAnswer(ctx, jobID, answer); err != nil {
		return "", fmt.Errorf("failed to save answer: %w", err)
	}

	s.logger.Info("問い合わせが完了しました",
		"jobID", jobID,
		"hits", len(hits),
		"strategy", strategy,
	)
	return answer, nil
}

// validateSources はソースリストの件数と長さを検証します
func (s *Service) validateSources(sources []string) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	if len(sources) > s.config.MaxSources {
		return fmt.Errorf("%w: max %d, got %d", ErrTooManySources, s.config.MaxSources, len(sources))
	}
	for i, src := range sources {
		if utf8.RuneCountInString(src) > s.config.MaxSourceLength {
			return fmt.Errorf("%w: source %d exceeds %d chars", ErrSourceTooLong, i, s.config.MaxSourceLength)
		}
	}
	return nil
}

// resolvedSource はソース解決のファンイン結果を保持します
type resolvedSource struct {
	text string
	err  error // 非nilの場合は *FetchError（text は代替文字列）
}

// buildRecords はソース解決からベクトルレコード構築までを実行します。
// 解決はソースごとに並行実行されますが、結果の順序は入力順に保たれます。
func (s *Service) buildRecords(ctx context.Context, job *Job) ([]VectorRecord, []string, error) {
	// ソースは互いに独立かつ I/O バウンドなのでファンアウトする
	resolved := make([]resolvedSource, len(job.Sources))
	var wg sync.WaitGroup
	for i, src := range job.Sources {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			text, err := s.resolver.Resolve(ctx, src)
			resolved[i] = resolvedSource{text: text, err: err}
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// チャンク化は純粋な処理なのでファンイン後に逐次実行する
	var chunks []Chunk
	var fetchFailures []string
	for i, r := range resolved {
		if r.err != nil {
			s.logger.Warn("ソースの取得に失敗しました",
				"jobID", job.ID,
				"sourceIndex", i,
				"indexed", s.config.IndexFetchFailures,
				"error", r.err,
			)
			if !s.config.IndexFetchFailures {
				fetchFailures = append(fetchFailures, r.err.Error())
				continue
			}
		}

		seq := 0
		for text := range s.chunker.Split(r.text) {
			chunks = append(chunks, Chunk{SourceIndex: i, Sequence: seq, Text: text})
			seq++
		}
	}

	if len(chunks) == 0 {
		// チャンク0件はエラーではなく「インデックス対象なし」
		return nil, fetchFailures, nil
	}

	// 全ソースのチャンクをまとめて単一の論理バッチで埋め込む
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, nil, &EmbeddingError{Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, nil, &EmbeddingError{Err: fmt.Errorf("vector count mismatch: want %d, got %d", len(texts), len(vectors))}
	}

	records := make([]VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = VectorRecord{
			ID:          c.RecordID(),
			Vector:      vectors[i],
			Content:     c.Text,
			SourceIndex: c.SourceIndex,
		}
	}
	return records, fetchFailures, nil
}

// failJob はジョブを error へ遷移させ、失敗メッセージを記録します
func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, cause error) error {
	s.logger.Error("取り込みに失敗しました", "jobID", jobID, "error", cause)

	if err := s.jobs.SaveErrorNote(ctx, jobID, cause.Error()); err != nil {
		s.logger.Error("失敗メッセージの記録に失敗しました", "jobID", jobID, "error", err)
	}
	if err := s.jobs.SaveStatus(ctx, jobID, JobStatusError); err != nil {
		s.logger.Error("ステータスの更新に失敗しました", "jobID", jobID, "error", err)
	}
	return cause
}
