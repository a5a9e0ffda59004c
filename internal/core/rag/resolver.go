package rag

import "context"

// ContentResolver は生のソーストークンをプレーンテキストへ解決するインターフェース
type ContentResolver interface {
	// Resolve はソースを解決します。ソースがURLでなければそのまま返します。
	// 取得に失敗した場合でもテキストは常に利用可能で、失敗理由と元のソースを
	// 埋め込んだ代替文字列が返り、err には *FetchError が入ります。
	// それ以外のエラーを返すことはありません。
	Resolve(ctx context.Context, source string) (string, error)
}
