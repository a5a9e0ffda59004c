package rag

import (
	"errors"
	"strings"
	"testing"
)

func TestNewChunker_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "有効な設定", size: 1000, overlap: 100, wantErr: false},
		{name: "オーバーラップなし", size: 10, overlap: 0, wantErr: false},
		{name: "サイズ0", size: 0, overlap: 0, wantErr: true},
		{name: "サイズ負", size: -1, overlap: 0, wantErr: true},
		{name: "オーバーラップ負", size: 10, overlap: -1, wantErr: true},
		{name: "オーバーラップがサイズと同値", size: 10, overlap: 10, wantErr: true},
		{name: "オーバーラップがサイズ超過", size: 10, overlap: 11, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidChunkConfig) {
					t.Errorf("want ErrInvalidChunkConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestChunker_Split_Basic(t *testing.T) {
	chunker, err := NewChunker(20, 5)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		text string
		want int // 期待するチャンク数（-1は「2件以上」）
	}{
		{name: "空文字列は0件", text: "", want: 0},
		{name: "サイズ未満は1件", text: "short text", want: 1},
		{name: "サイズと同値は1件", text: strings.Repeat("a", 20), want: 1},
		{name: "サイズ超過は複数件", text: strings.Repeat("a", 21), want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunker.SplitAll(tt.text)
			if tt.want == -1 {
				if len(chunks) < 2 {
					t.Errorf("want >= 2 chunks, got %d", len(chunks))
				}
				return
			}
			if len(chunks) != tt.want {
				t.Errorf("want %d chunks, got %d", tt.want, len(chunks))
			}
			if tt.want == 1 && chunks[0] != tt.text {
				t.Errorf("single chunk must equal input: got %q", chunks[0])
			}
		})
	}
}

// 2件目以降の先頭 overlap 文字を捨てて連結すると元のテキストが復元されること
func TestChunker_Split_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
	}{
		{
			name:    "段落と文末が混在するテキスト",
			size:    50,
			overlap: 10,
			text:    "最初の段落です。ここには文章が続きます。\n\n次の段落です。さらに文章が続いていきます。この文はやや長めに書かれています。\n\n最後の段落です。",
		},
		{
			name:    "境界のない連続文字",
			size:    10,
			overlap: 3,
			text:    strings.Repeat("x", 57),
		},
		{
			name:    "空白区切りの英文",
			size:    30,
			overlap: 8,
			text:    "the quick brown fox jumps over the lazy dog and keeps running through the field until sunset",
		},
		{
			name:    "オーバーラップ最大の病的ケース",
			size:    10,
			overlap: 9,
			text:    strings.Repeat("y", 35),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunker, err := NewChunker(tt.size, tt.overlap)
			if err != nil {
				t.Fatal(err)
			}

			chunks := chunker.SplitAll(tt.text)
			if len(chunks) == 0 {
				t.Fatal("want at least one chunk")
			}

			// 最大サイズの検証
			for i, chunk := range chunks {
				if n := len([]rune(chunk)); n > tt.size {
					t.Errorf("chunk %d has %d runes, exceeds size %d", i, n, tt.size)
				}
			}

			// 復元則の検証
			var sb strings.Builder
			sb.WriteString(chunks[0])
			for _, chunk := range chunks[1:] {
				runes := []rune(chunk)
				if len(runes) < tt.overlap {
					t.Fatalf("chunk shorter than overlap: %q", chunk)
				}
				sb.WriteString(string(runes[tt.overlap:]))
			}
			if got := sb.String(); got != tt.text {
				t.Errorf("round trip mismatch:\nwant %q\ngot  %q", tt.text, got)
			}
		})
	}
}

func TestChunker_Split_PrefersParagraphBreak(t *testing.T) {
	chunker, err := NewChunker(20, 5)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("a", 10) + "\n\n" + strings.Repeat("b", 20)
	chunks := chunker.SplitAll(text)

	if len(chunks) < 2 {
		t.Fatalf("want >= 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Errorf("first chunk should end at paragraph break, got %q", chunks[0])
	}
}

func TestChunker_Split_PrefersSentenceEnd(t *testing.T) {
	chunker, err := NewChunker(20, 4)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("あ", 10) + "。" + strings.Repeat("い", 30)
	chunks := chunker.SplitAll(text)

	if len(chunks) < 2 {
		t.Fatalf("want >= 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "。") {
		t.Errorf("first chunk should end at sentence end, got %q", chunks[0])
	}
}

func TestChunker_Split_PrefersWordBreak(t *testing.T) {
	chunker, err := NewChunker(20, 5)
	if err != nil {
		t.Fatal(err)
	}

	text := "alpha beta gamma delta epsilon zeta eta theta"
	chunks := chunker.SplitAll(text)

	if len(chunks) < 2 {
		t.Fatalf("want >= 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], " ") {
		t.Errorf("first chunk should end at word break, got %q", chunks[0])
	}
}

// 同一入力に対して決定的であり、シーケンスは何度でもイテレートできること
func TestChunker_Split_DeterministicAndRestartable(t *testing.T) {
	chunker, err := NewChunker(15, 4)
	if err != nil {
		t.Fatal(err)
	}

	text := "決定性の検証に使うテキストです。同じ入力からは常に同じ結果が得られます。"
	seq := chunker.Split(text)

	var first, second []string
	for chunk := range seq {
		first = append(first, chunk)
	}
	for chunk := range seq {
		second = append(second, chunk)
	}

	if len(first) == 0 {
		t.Fatal("want at least one chunk")
	}
	if len(first) != len(second) {
		t.Fatalf("restarted sequence length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between iterations: %q vs %q", i, first[i], second[i])
		}
	}
}

// 途中でイテレーションを打ち切っても安全であること
func TestChunker_Split_EarlyBreak(t *testing.T) {
	chunker, err := NewChunker(10, 2)
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	for range chunker.Split(strings.Repeat("z", 100)) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("want 2 iterations, got %d", count)
	}
}
