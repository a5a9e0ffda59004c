package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/openai/openai-go/v3"
)

const (
	// MaxRetries は一時的エラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// retryPolicy は一時的な失敗に対する指数バックオフ付きリトライを提供します
type retryPolicy struct {
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// defaultRetryPolicy はデフォルトのリトライ方針を返す
func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries:  MaxRetries,
		baseBackoff: BaseBackoff,
		maxBackoff:  MaxBackoff,
	}
}

// do は call を実行し、一時的エラーであればバックオフを挟んで再試行します。
// リトライ上限の超過は ErrMaxRetriesExceeded をラップして返します。
func (p retryPolicy) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * p.baseBackoff
			if backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransientError(err) {
			return err
		}
	}

	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

// isTransientError はリトライに値する一時的エラーかどうかを判定します
func isTransientError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
