package runner

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithRateLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("レート制限エラーはリトライして成功するのだ", func(t *testing.T) {
		calls := 0
		result, err := retryWithRateLimit(ctx, discardLogger(), 3, func() (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("429 resource exhausted, try again in 0.01s")
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("成功するはずなのだ: %v", err)
		}
		if result != "ok" || calls != 2 {
			t.Errorf("リトライ回数が想定と違うのだ: result=%q calls=%d", result, calls)
		}
	})

	t.Run("レート制限以外のエラーは即座に伝播するのだ", func(t *testing.T) {
		calls := 0
		_, err := retryWithRateLimit(ctx, discardLogger(), 3, func() (string, error) {
			calls++
			return "", errors.New("invalid api key")
		})
		if err == nil {
			t.Fatal("エラーになるはずなのだ")
		}
		if calls != 1 {
			t.Errorf("リトライしてはいけないのだ: calls=%d", calls)
		}
	})

	t.Run("上限までレート制限が続いたら最後のエラーを返すのだ", func(t *testing.T) {
		calls := 0
		_, err := retryWithRateLimit(ctx, discardLogger(), 2, func() (string, error) {
			calls++
			return "", errors.New("rate limit exceeded, try again in 0.01s")
		})
		if err == nil {
			t.Fatal("エラーになるはずなのだ")
		}
		if calls != 2 {
			t.Errorf("試行回数が想定と違うのだ: calls=%d", calls)
		}
	})
}

func TestSuggestedWait(t *testing.T) {
	t.Run("エラー文の推奨待ち時間にジッターを足すのだ", func(t *testing.T) {
		wait := suggestedWait(errors.New("429: try again in 12.5s"))
		if wait < 13*time.Second+500*time.Millisecond || wait > 15*time.Second+500*time.Millisecond {
			t.Errorf("待ち時間が12.5s+1〜3sの範囲にないのだ: %v", wait)
		}
	})

	t.Run("推奨がなければ0なのだ", func(t *testing.T) {
		if wait := suggestedWait(errors.New("429 too many requests")); wait != 0 {
			t.Errorf("0のはずなのだ: %v", wait)
		}
	})
}

func TestIsRateLimitError(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"Rate Limit exceeded", true},
		{"http 429 too many requests", true},
		{"connection refused", false},
	}
	for _, tc := range cases {
		if got := isRateLimitError(errors.New(tc.msg)); got != tc.want {
			t.Errorf("isRateLimitError(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}
