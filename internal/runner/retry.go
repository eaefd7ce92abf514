package runner

import (
	"context"
	"log/slog"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// レート制限リトライの既定値なのだ。
const (
	retryBaseDelay = 5 * time.Second
)

var suggestedWaitRegex = regexp.MustCompile(`try again in (\d+\.?\d*)s`)

// retryWithRateLimit は fn をレート制限に配慮しながら最大 maxRetries 回試行するのだ。
// エラー文にサーバー推奨の待ち時間があればそれに従い、なければ指数バックオフなのだ。
// レート制限以外のエラーは即座に伝播するのだ。
func retryWithRateLimit(ctx context.Context, logger *slog.Logger, maxRetries int, fn func() (string, error)) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	bo.RandomizationFactor = 0.5
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRateLimitError(err) || attempt == maxRetries {
			return "", err
		}

		wait := suggestedWait(err)
		if wait <= 0 {
			wait = bo.NextBackOff()
		}
		logger.Warn("レート制限に当たったのでリトライするのだ",
			"wait", wait.Round(100*time.Millisecond), "attempt", attempt, "max_retries", maxRetries)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// isRateLimitError はエラー文からレート制限の兆候を検出するのだ。
func isRateLimitError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// suggestedWait はエラー文からサーバー推奨の待ち時間を抽出するのだ。
// 見つかればジッターとして1〜3秒を足し、見つからなければ0を返すのだ。
func suggestedWait(err error) time.Duration {
	m := suggestedWaitRegex.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(m[1], 64)
	if parseErr != nil {
		return 0
	}
	jitter := 1 + rand.Float64()*2
	return time.Duration((seconds + jitter) * float64(time.Second))
}
