package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultContextTokenBudget はコンテキストブロック全体のデフォルトトークン上限
	DefaultContextTokenBudget = 3000
)

// Generator はテキスト生成モデルへのインターフェース
type Generator interface {
	// GenerateCompletion はプロンプトに対する補完テキストを生成する
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// Strategy は回答生成の1つの戦略（名前付きの生成経路）を表します
type Strategy struct {
	Name      string
	Generator Generator
}

// Synthesizer は検索済みパッセージに基づく回答を生成します。
// 戦略は順序付きリストとして先頭から順に試行され、成功した戦略が記録されます。
// 内部でのリトライは行いません（リトライは各 Generator 実装の責務）。
type Synthesizer struct {
	strategies    []Strategy
	encoder       *tiktoken.Tiktoken
	contextBudget int
	logger        *slog.Logger
}

type synthesizerOptions struct {
	contextBudget int
	logger        *slog.Logger
}

// SynthesizerOption は Synthesizer のオプション設定
type SynthesizerOption func(*synthesizerOptions)

// WithContextTokenBudget はコンテキストのトークン上限を上書きする
func WithContextTokenBudget(budget int) SynthesizerOption {
	return func(o *synthesizerOptions) {
		o.contextBudget = budget
	}
}

// WithSynthesizerLogger は Synthesizer にロガーを設定する
func WithSynthesizerLogger(logger *slog.Logger) SynthesizerOption {
	return func(o *synthesizerOptions) {
		o.logger = logger
	}
}

// NewSynthesizer は新しい Synthesizer を作成する
func NewSynthesizer(strategies []Strategy, opts ...SynthesizerOption) (*Synthesizer, error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}

	// cl100k_baseエンコーダを使用（text-embedding-3-small と互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	options := synthesizerOptions{
		contextBudget: DefaultContextTokenBudget,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Synthesizer{
		strategies:    strategies,
		encoder:       encoder,
		contextBudget: options.contextBudget,
		logger:        options.logger,
	}, nil
}

// Synthesize は質問と検索済みパッセージから回答を生成します。
// パッセージが空でも短絡せず、空のコンテキストブロックのまま生成を試みます。
// 戻り値の strategy は実際に回答を生成した戦略の名前です。
func (s *Synthesizer) Synthesize(ctx context.Context, question string, passages []string) (answer string, strategy string, err error) {
	prompt := BuildAnswerPrompt(question, s.trimPassages(passages))

	var lastErr error
	for _, st := range s.strategies {
		answer, genErr := st.Generator.GenerateCompletion(ctx, prompt)
		if genErr != nil {
			s.logger.Warn("生成戦略が失敗しました。次の戦略を試行します",
				"strategy", st.Name,
				"error", genErr,
			)
			lastErr = genErr
			if ctx.Err() != nil {
				break
			}
			continue
		}

		s.logger.Info("回答を生成しました",
			"strategy", st.Name,
			"passages", len(passages),
			"answerLength", len(answer),
		)
		return answer, st.Name, nil
	}

	return "", "", &SynthesisError{Err: lastErr}
}

// trimPassages はコンテキスト全体のトークン上限に収まるようパッセージを切り詰めます。
// 上限に達した時点のパッセージはトークン単位でトリミングされ、以降は捨てられます。
func (s *Synthesizer) trimPassages(passages []string) []string {
	trimmed := make([]string, 0, len(passages))
	remaining := s.contextBudget

	for _, passage := range passages {
		if remaining <= 0 {
			break
		}
		tokens := s.encoder.Encode(passage, nil, nil)
		if len(tokens) > remaining {
			passage = s.encoder.Decode(tokens[:remaining])
			remaining = 0
		} else {
			remaining -= len(tokens)
		}
		trimmed = append(trimmed, passage)
	}

	return trimmed
}
