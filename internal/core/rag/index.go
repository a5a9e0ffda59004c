package rag

import "context"

// VectorIndex は名前空間付きの最近傍ストアへのインターフェース。
// 名前空間はジョブIDであり、ジョブ間の完全な分離を保証します。
type VectorIndex interface {
	// Upsert はレコード群を1つの論理操作として名前空間へ書き込む。
	// レコードIDによる冪等性を持つ（同一IDの再upsertは上書き）。
	Upsert(ctx context.Context, namespace string, records []VectorRecord) error

	// Search は類似度降順で最大 topK 件のヒットを返す。
	// 同点の順序は下層ストアのネイティブ順序に従う。
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]SearchHit, error)
}
