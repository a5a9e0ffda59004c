package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key")

	assert.Equal(t, DefaultEmbeddingModel, embedder.ModelName())
	assert.Equal(t, DefaultEmbeddingDimension, embedder.Dimension())
	assert.Equal(t, maxEmbeddingBatchSize, embedder.MaxBatchSize())
}

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
}

func TestBatchEmbedEmptyInput(t *testing.T) {
	embedder := NewEmbedder("dummy-key")

	// 空入力はAPIを呼ばずに nil を返す
	embeddings, err := embedder.BatchEmbed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

// newEmbeddingStubServer は埋め込みエンドポイントのスタブを起動する。
// 各テキストの末尾の連番をそのままベクトル([n])として返すため、
// 応答順の検証に使える。
func newEmbeddingStubServer(t *testing.T, batches *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"), "unexpected path: %s", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*batches = append(*batches, req.Input)

		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			n, err := strconv.Atoi(strings.TrimPrefix(text, "text-"))
			require.NoError(t, err)
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(n)},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 0, "total_tokens": 0},
		}))
	}))
}

func TestBatchEmbedSplitsAndPreservesOrder(t *testing.T) {
	var batches [][]string
	server := newEmbeddingStubServer(t, &batches)
	defer server.Close()

	embedder := NewEmbedder("dummy-key", WithEmbeddingBaseURL(server.URL+"/"))

	// 上限(100件)を跨ぐ入力を用意する
	texts := make([]string, 150)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	embeddings, err := embedder.BatchEmbed(context.Background(), texts)
	require.NoError(t, err)

	// 100件 + 50件の2リクエストに分割される
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 50)
	assert.Equal(t, "text-0", batches[0][0])
	assert.Equal(t, "text-99", batches[0][99])
	assert.Equal(t, "text-100", batches[1][0])

	// 連結された出力ベクトルの順序は入力テキストの順序と一致する
	require.Len(t, embeddings, 150)
	for i, vec := range embeddings {
		require.Len(t, vec, 1)
		assert.Equal(t, float32(i), vec[0], "embedding %d out of order", i)
	}
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	_, err := NewGenerator("", "gpt-4o-mini")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "レート制限(429)", err: &openai.Error{StatusCode: 429}, want: true},
		{name: "サーバエラー(500)", err: &openai.Error{StatusCode: 500}, want: true},
		{name: "サーバエラー(503)", err: &openai.Error{StatusCode: 503}, want: true},
		{name: "認証エラー(401)", err: &openai.Error{StatusCode: 401}, want: false},
		{name: "不正リクエスト(400)", err: &openai.Error{StatusCode: 400}, want: false},
		{name: "デッドライン超過", err: context.DeadlineExceeded, want: true},
		{name: "一般エラー", err: errors.New("boom"), want: false},
		{name: "キャンセル", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}

func TestRetryPolicyReturnsNonTransientErrorImmediately(t *testing.T) {
	policy := retryPolicy{maxRetries: 3, baseBackoff: time.Millisecond, maxBackoff: time.Millisecond}

	calls := 0
	cause := errors.New("bad request")
	err := policy.do(context.Background(), func(ctx context.Context) error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyRetriesTransientErrors(t *testing.T) {
	policy := retryPolicy{maxRetries: 3, baseBackoff: time.Millisecond, maxBackoff: time.Millisecond}

	calls := 0
	err := policy.do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &openai.Error{StatusCode: 429}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyExhaustsRetries(t *testing.T) {
	policy := retryPolicy{maxRetries: 2, baseBackoff: time.Millisecond, maxBackoff: time.Millisecond}

	calls := 0
	err := policy.do(context.Background(), func(ctx context.Context) error {
		calls++
		return &openai.Error{StatusCode: 503}
	})

	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, 3, calls) // 初回 + リトライ2回
}

func TestRetryPolicyStopsOnCanceledContext(t *testing.T) {
	policy := retryPolicy{maxRetries: 5, baseBackoff: time.Minute, maxBackoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		// 最初の失敗後のバックオフ待機中にキャンセルする
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.do(ctx, func(ctx context.Context) error {
		calls++
		return &openai.Error{StatusCode: 429}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
