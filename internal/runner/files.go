package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

var sessionDateRegex = regexp.MustCompile(`session_(\d{8})_`)

// listPromptFiles はフォルダ内の .txt ファイル名をソート順で列挙するのだ。
func listPromptFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("フォルダの読み取りに失敗したのだ (%s): %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// selectSessionFiles はセッションに属するファイルを3段階で絞り込むのだ。
// (1) DBに記録されたファイル名との一致、(2) セッションIDの日付を含む名前、
// (3) 最後の手段として全ファイル。
func selectSessionFiles(allFiles, dbFileNames []string, sessionID string, logger *slog.Logger) []string {
	if len(dbFileNames) > 0 {
		known := make(map[string]struct{}, len(dbFileNames))
		for _, name := range dbFileNames {
			known[name] = struct{}{}
		}
		var matched []string
		for _, name := range allFiles {
			if _, ok := known[name]; ok {
				matched = append(matched, name)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}

	if m := sessionDateRegex.FindStringSubmatch(sessionID); m != nil {
		var matched []string
		for _, name := range allFiles {
			if strings.Contains(name, m[1]) {
				matched = append(matched, name)
			}
		}
		if len(matched) > 0 {
			logger.Info("セッション日付でファイルを絞り込んだのだ", "date", m[1], "count", len(matched))
			return matched
		}
	}

	logger.Warn("セッションに紐づくファイルが特定できないので全ファイルを処理するのだ",
		"session_id", sessionID, "count", len(allFiles))
	return allFiles
}

// readFile は remoteio 経由でファイル全文を読み込むのだ。
func readFile(ctx context.Context, reader remoteio.InputReader, path string) (string, error) {
	rc, err := reader.Open(ctx, path)
	if err != nil {
		return "", fmt.Errorf("ファイルのオープンに失敗したのだ (%s): %w", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("ファイルの読み取りに失敗したのだ (%s): %w", path, err)
	}
	return string(data), nil
}

// writeFile は remoteio 経由でテキストファイルを書き出すのだ。
func writeFile(ctx context.Context, writer remoteio.OutputWriter, path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("出力フォルダの作成に失敗したのだ: %w", err)
	}
	if err := writer.Write(ctx, path, strings.NewReader(content), "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("ファイルの書き込みに失敗したのだ (%s): %w", path, err)
	}
	return nil
}
