package rag

import (
	"fmt"
	"iter"
	"slices"
	"unicode"
)

const (
	// DefaultChunkSize はデフォルトのチャンクサイズ（文字数）
	DefaultChunkSize = 1000
	// DefaultChunkOverlap はデフォルトのオーバーラップ（文字数）
	DefaultChunkOverlap = 100
)

// Chunker は長いテキストをオーバーラップ付きの断片に分割します。
// 段落 → 文末 → 単語境界 → 強制カットの順で自然な境界を優先します。
type Chunker struct {
	size    int // 1チャンクの最大文字数
	overlap int // 隣接チャンク間のオーバーラップ文字数
}

// NewChunker は新しい Chunker を作成します。overlap は size 未満である必要があります。
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size), got %d", ErrInvalidChunkConfig, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size はチャンクサイズ（文字数）を返します
func (c *Chunker) Size() int { return c.size }

// Overlap はオーバーラップ（文字数）を返します
func (c *Chunker) Overlap() int { return c.overlap }

// Split はテキストをチャンクの遅延シーケンスとして返します。
// 同一入力に対して決定的で、シーケンスは何度でもイテレートできます。
// 空文字列は0件、size 文字以下の入力はちょうど1件を生成します。
// チャンク i+1 は常にチャンク i の末尾からちょうど overlap 文字手前で始まるため、
// 2件目以降の先頭 overlap 文字を捨てて連結すると元のテキストが復元されます。
func (c *Chunker) Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		if len(runes) == 0 {
			return
		}
		pos := 0
		for {
			if len(runes)-pos <= c.size {
				yield(string(runes[pos:]))
				return
			}
			end := c.cutPoint(runes, pos)
			if !yield(string(runes[pos:end])) {
				return
			}
			pos = end - c.overlap
		}
	}
}

// SplitAll は Split の結果をスライスとして返します
func (c *Chunker) SplitAll(text string) []string {
	return slices.Collect(c.Split(text))
}

// cutPoint は [pos, pos+size] の範囲で次のカット位置を決めます。
// 前進を保証するため、カット位置は少なくとも pos+overlap+1 です。
func (c *Chunker) cutPoint(runes []rune, pos int) int {
	limit := pos + c.size
	minEnd := pos + c.overlap + 1

	if end := lastParagraphBreak(runes, minEnd, limit); end > 0 {
		return end
	}
	if end := lastSentenceEnd(runes, minEnd, limit); end > 0 {
		return end
	}
	if end := lastWordBreak(runes, minEnd, limit); end > 0 {
		return end
	}
	return limit
}

// lastParagraphBreak は空行直後のカット位置を後方から探します
func lastParagraphBreak(runes []rune, minEnd, limit int) int {
	for end := limit; end >= minEnd; end-- {
		if end >= 2 && runes[end-1] == '\n' && runes[end-2] == '\n' {
			return end
		}
	}
	return 0
}

// lastSentenceEnd は文末直後のカット位置を後方から探します。
// 欧文の終止符は略語や小数との誤検出を避けるため直後の空白を要求します。
func lastSentenceEnd(runes []rune, minEnd, limit int) int {
	for end := limit; end >= minEnd; end-- {
		switch runes[end-1] {
		case '。', '！', '？':
			return end
		case '.', '!', '?':
			if end < len(runes) && unicode.IsSpace(runes[end]) {
				return end
			}
		}
	}
	return 0
}

// lastWordBreak は空白直後のカット位置を後方から探します
func lastWordBreak(runes []rune, minEnd, limit int) int {
	for end := limit; end >= minEnd; end-- {
		if unicode.IsSpace(runes[end-1]) {
			return end
		}
	}
	return 0
}
