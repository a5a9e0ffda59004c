package rag

import "context"

// Embedder はテキストをベクトル表現に変換するインターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed はバッチでEmbeddingを生成する。
	// 実装は MaxBatchSize を超える入力を内部で分割し、
	// 出力ベクトルの順序は入力テキストの順序と一致しなければならない。
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName はモデル名を返す
	ModelName() string

	// Dimension はEmbeddingベクトルの次元数を返す
	Dimension() int

	// MaxBatchSize は1回のAPI呼び出しで送信できる最大テキスト数を返す
	MaxBatchSize() int
}
