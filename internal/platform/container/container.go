package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mu6m/better-datafy/internal/core/rag"
	"github.com/mu6m/better-datafy/internal/infra/openai"
	"github.com/mu6m/better-datafy/internal/infra/postgres"
	"github.com/mu6m/better-datafy/internal/infra/web"
	"github.com/mu6m/better-datafy/internal/platform/config"
	"github.com/mu6m/better-datafy/internal/platform/database"
)

// ServiceContainer はアプリケーションの依存関係を保持する。
type ServiceContainer struct {
	Service *rag.Service
	Jobs    rag.JobRepository

	logger   *slog.Logger
	database *database.Database
}

type containerOptions struct {
	logger      *slog.Logger
	resolver    rag.ContentResolver
	embedder    rag.Embedder
	index       rag.VectorIndex
	jobs        rag.JobRepository
	locks       rag.IngestLocker
	synthesizer *rag.Synthesizer
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerResolver は ContentResolver を差し替える
func WithContainerResolver(resolver rag.ContentResolver) ContainerOption {
	return func(opts *containerOptions) {
		opts.resolver = resolver
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder rag.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerVectorIndex は VectorIndex を差し替える
func WithContainerVectorIndex(index rag.VectorIndex) ContainerOption {
	return func(opts *containerOptions) {
		opts.index = index
	}
}

// WithContainerJobRepository は JobRepository を差し替える
func WithContainerJobRepository(jobs rag.JobRepository) ContainerOption {
	return func(opts *containerOptions) {
		opts.jobs = jobs
	}
}

// WithContainerIngestLocker は IngestLocker を差し替える
func WithContainerIngestLocker(locks rag.IngestLocker) ContainerOption {
	return func(opts *containerOptions) {
		opts.locks = locks
	}
}

// WithContainerSynthesizer は Synthesizer を差し替える
func WithContainerSynthesizer(synthesizer *rag.Synthesizer) ContainerOption {
	return func(opts *containerOptions) {
		opts.synthesizer = synthesizer
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	// スキーマとベクトルインデックスは起動時に一度だけ整える
	if err := postgres.EnsureSchema(ctx, db.Pool, cfg.OpenAI.EmbeddingDimension); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗しました: %w", err)
	}

	c, err := NewContainerWithDB(cfg, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerWithDB は既存の Database を受け取りコンテナを生成する。
func NewContainerWithDB(cfg *config.Config, db *database.Database, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// JobRepository / VectorIndex / IngestLocker (PostgreSQL)
	jobs := options.jobs
	if jobs == nil {
		jobs = postgres.NewJobRepository(db.Pool)
	}
	index := options.index
	if index == nil {
		index = postgres.NewVectorIndex(db.Pool)
	}
	locks := options.locks
	if locks == nil {
		locks = postgres.NewIngestLockManager(db.Pool)
	}

	// ContentResolver (HTTP)
	resolver := options.resolver
	if resolver == nil {
		resolver = web.NewResolver()
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
	}

	// Synthesizer（主モデル→フォールバックモデルの順に試行する）
	synthesizer := options.synthesizer
	if synthesizer == nil {
		var err error
		synthesizer, err = newSynthesizer(cfg, options.logger)
		if err != nil {
			return nil, err
		}
	}

	chunker, err := rag.NewChunker(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("Chunker 初期化に失敗しました: %w", err)
	}

	serviceCfg := rag.DefaultServiceConfig()
	serviceCfg.TopK = cfg.Pipeline.TopK
	serviceCfg.IndexFetchFailures = cfg.Pipeline.IndexFetchFailures

	service := rag.NewService(
		jobs,
		resolver,
		chunker,
		embedder,
		index,
		synthesizer,
		locks,
		rag.WithServiceConfig(serviceCfg),
		rag.WithServiceLogger(options.logger),
	)

	return &ServiceContainer{
		Service:  service,
		Jobs:     jobs,
		logger:   options.logger,
		database: db,
	}, nil
}

func newSynthesizer(cfg *config.Config, logger *slog.Logger) (*rag.Synthesizer, error) {
	genOpts := []openai.GeneratorOption{
		openai.WithTemperature(cfg.OpenAI.Temperature),
		openai.WithMaxCompletionTokens(cfg.OpenAI.MaxTokens),
	}

	primary, err := openai.NewGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.LLMModel, genOpts...)
	if err != nil {
		return nil, fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
	}

	strategies := []rag.Strategy{
		{Name: cfg.OpenAI.LLMModel, Generator: primary},
	}
	if cfg.OpenAI.FallbackLLMModel != "" && cfg.OpenAI.FallbackLLMModel != cfg.OpenAI.LLMModel {
		fallback, err := openai.NewGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.FallbackLLMModel, genOpts...)
		if err != nil {
			return nil, fmt.Errorf("フォールバックLLMクライアント初期化に失敗しました: %w", err)
		}
		strategies = append(strategies, rag.Strategy{Name: cfg.OpenAI.FallbackLLMModel, Generator: fallback})
	}

	return rag.NewSynthesizer(
		strategies,
		rag.WithContextTokenBudget(cfg.Pipeline.ContextTokenBudget),
		rag.WithSynthesizerLogger(logger),
	)
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c != nil && c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Database はデータベースを返す。
func (c *ServiceContainer) Database() *database.Database {
	if c == nil {
		return nil
	}
	return c.database
}
