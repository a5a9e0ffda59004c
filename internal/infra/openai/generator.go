package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/mu6m/better-datafy/internal/core/rag"
)

const (
	// DefaultGenerationModel は生成モデル未指定時のデフォルトモデル
	DefaultGenerationModel = "gpt-4o-mini"

	// DefaultGenerationTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultGenerationTimeout = 60 * time.Second

	// DefaultMaxCompletionTokens は生成トークン数のデフォルト上限
	DefaultMaxCompletionTokens = 1024

	// DefaultTemperature は生成温度のデフォルト値
	DefaultTemperature = 0.2
)

// Generator は OpenAI の Chat Completions を使用したテキスト生成クライアント
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retry       retryPolicy
}

type generatorOptions struct {
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retry       retryPolicy
}

// GeneratorOption は Generator のオプション設定
type GeneratorOption func(*generatorOptions)

// WithTemperature は生成温度を上書きする
func WithTemperature(temperature float64) GeneratorOption {
	return func(o *generatorOptions) {
		o.temperature = temperature
	}
}

// WithMaxCompletionTokens は生成トークン数の上限を上書きする
func WithMaxCompletionTokens(maxTokens int) GeneratorOption {
	return func(o *generatorOptions) {
		o.maxTokens = maxTokens
	}
}

// WithGenerationTimeout はAPI呼び出しのタイムアウトを上書きする
func WithGenerationTimeout(timeout time.Duration) GeneratorOption {
	return func(o *generatorOptions) {
		o.timeout = timeout
	}
}

// WithGenerationRetryPolicy はリトライ方針を上書きする
func WithGenerationRetryPolicy(policy retryPolicy) GeneratorOption {
	return func(o *generatorOptions) {
		o.retry = policy
	}
}

// NewGenerator はモデルを指定して新しい Generator を作成する
func NewGenerator(apiKey, model string, opts ...GeneratorOption) (*Generator, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultGenerationModel
	}

	options := generatorOptions{
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxCompletionTokens,
		timeout:     DefaultGenerationTimeout,
		retry:       defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Generator{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		temperature: options.temperature,
		maxTokens:   options.maxTokens,
		timeout:     options.timeout,
		retry:       options.retry,
	}, nil
}

// ModelName はモデル名を返す
func (g *Generator) ModelName() string {
	return g.model
}

// GenerateCompletion はプロンプトに対する補完テキストを生成する
func (g *Generator) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	var completion *openai.ChatCompletion
	err := g.retry.do(ctx, func(ctx context.Context) error {
		var callErr error
		completion, callErr = g.client.Chat.Completions.New(ctx, params)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return completion.Choices[0].Message.Content, nil
}

// インターフェース実装の確認
var _ rag.Generator = (*Generator)(nil)
