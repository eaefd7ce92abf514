package imagegen

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"golang.org/x/time/rate"
)

// Downloader は生成画像のダウンロードとメタデータ計測を担当するのだ。
// APIへの礼儀として、ダウンロードの間に1秒の間隔を空けるのだ。
type Downloader struct {
	client  httpkit.ClientInterface
	limiter *rate.Limiter
	logger  *slog.Logger
}

// ImageMetadata はダウンロードした画像1枚の計測結果なのだ。
type ImageMetadata struct {
	FileSizeBytes int64
	Width         int
	Height        int
}

// NewDownloader はダウンローダーを生成します。pause は連続ダウンロードの最小間隔なのだ。
// タイムアウトは注入される共通HTTPクライアント側で設定するのだ。
func NewDownloader(client httpkit.ClientInterface, pause time.Duration, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(pause), 1),
		logger:  logger,
	}
}

// Download はURLから画像を取得して destPath へ保存し、メタデータを返します。
func (d *Downloader) Download(ctx context.Context, url, destPath string) (*ImageMetadata, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ダウンロード間隔の待機が中断されたのだ: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ダウンロードリクエストの作成に失敗したのだ: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("画像のダウンロードに失敗したのだ: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("画像のダウンロードが status %d で失敗したのだ", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("画像ファイルの作成に失敗したのだ: %w", err)
	}
	size, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("画像ファイルの書き込みに失敗したのだ: %w", err)
	}

	meta := &ImageMetadata{FileSizeBytes: size}
	if w, h, err := decodeDimensions(destPath); err != nil {
		// 寸法が取れなくてもダウンロード自体は成功扱いなのだ
		d.logger.Warn("画像寸法の取得に失敗したのだ", "path", destPath, "error", err)
	} else {
		meta.Width = w
		meta.Height = h
	}

	d.logger.Info("画像を保存したのだ", "path", destPath, "bytes", size,
		"width", meta.Width, "height", meta.Height)
	return meta, nil
}

func decodeDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
