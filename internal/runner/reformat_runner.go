package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/internal/store"
	"github.com/shouni/go-prompt-pipeline/pkg/domain"
	"github.com/shouni/go-prompt-pipeline/pkg/parser"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// ReformatResult は再整形ステージの実行結果なのだ。
type ReformatResult struct {
	SessionID        string
	Processed        int
	Failed           int
	ReformattedFiles []string
}

// PromptReformatRunner は、承認済みの詳細プロンプトを
// 画像ジェネレーターへ渡せる一行テキストへ変換するのだ。
type PromptReformatRunner struct {
	store  *store.Store // nilならファイルのみモード
	reader remoteio.InputReader
	writer remoteio.OutputWriter
	opts   config.PipelineOptions
	logger *slog.Logger
}

// NewPromptReformatRunner は、PromptReformatRunnerの新しいインスタンスを生成して返すのだ。
func NewPromptReformatRunner(
	st *store.Store,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
	opts config.PipelineOptions,
	logger *slog.Logger,
) *PromptReformatRunner {
	return &PromptReformatRunner{
		store:  st,
		reader: reader,
		writer: writer,
		opts:   opts,
		logger: logger,
	}
}

// Run は対象セッションの承認済みファイルを1件ずつ再整形するのだ。
func (r *PromptReformatRunner) Run(ctx context.Context) (*ReformatResult, error) {
	allFiles, err := listPromptFiles(r.opts.ApprovedDir)
	if err != nil {
		return nil, err
	}
	if len(allFiles) == 0 {
		return nil, fmt.Errorf("再整形対象の承認済みファイルが %s に見つからないのだ", r.opts.ApprovedDir)
	}

	// 承認済みファイル名にも生成時のタイムスタンプが残っているので、
	// セッション日付の部分一致でそのまま絞り込めるのだ
	targets := selectSessionFiles(allFiles, nil, r.opts.SessionID, r.logger)

	result := &ReformatResult{SessionID: r.opts.SessionID}
	for _, fileName := range targets {
		outPath, err := r.reformatFile(ctx, fileName)
		if err != nil {
			r.logger.Error("再整形中にエラーが起きたのだ", "file_name", fileName, "error", err)
			result.Failed++
			continue
		}
		result.Processed++
		result.ReformattedFiles = append(result.ReformattedFiles, outPath)
	}

	r.logger.Info("再整形ステージが完了したのだ",
		"processed", result.Processed, "failed", result.Failed)
	return result, nil
}

// reformatFile は承認済みファイル1件を読み、最適化テキストを書き出してDBへ記録するのだ。
func (r *PromptReformatRunner) reformatFile(ctx context.Context, fileName string) (string, error) {
	content, err := readFile(ctx, r.reader, filepath.Join(r.opts.ApprovedDir, fileName))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("承認済みファイルが空なのだ: %s", fileName)
	}

	meta := parser.ExtractMetadata(content)
	if meta.EvaluationID == 0 && r.store != nil {
		// トレーラーが欠けた古い形式のファイルは、ファイル名からDBを逆引きするのだ
		evalID, promptID, err := r.store.FindApprovedEvaluation(ctx, r.opts.SessionID, fileName)
		if err != nil {
			r.logger.Warn("承認済み評価の逆引きに失敗したのだ", "file_name", fileName, "error", err)
		} else {
			meta.EvaluationID = evalID
			meta.PromptID = promptID
		}
	}

	optimized := parser.ExtractOptimizedPrompt(content)
	if optimized == "" {
		return "", fmt.Errorf("最適化プロンプトを抽出できなかったのだ: %s", fileName)
	}

	outName := parser.ReformattedFileName(fileName)
	outPath := filepath.Join(r.opts.ReformattedDir, outName)
	if err := writeFile(ctx, r.writer, outPath, optimized); err != nil {
		return "", err
	}

	if r.store != nil && meta.EvaluationID != 0 {
		_, err := r.store.InsertReformatted(ctx, &domain.ReformattedPrompt{
			EvaluationID:     meta.EvaluationID,
			PromptID:         meta.PromptID,
			SessionID:        r.opts.SessionID,
			OriginalDetailed: content,
			Optimized:        optimized,
			FileName:         outName,
			FilePath:         outPath,
		})
		if err != nil {
			r.logger.Warn("再整形結果のDB記録に失敗したのだ", "file_name", outName, "error", err)
		}
	} else if meta.EvaluationID == 0 {
		r.logger.Warn("DBと紐づかないのでファイルのみで再整形したのだ", "file_name", fileName)
	}

	r.logger.Info("再整形が完了したのだ",
		"source", fileName,
		"output", outName,
		"chars_before", len(content),
		"chars_after", len(optimized))
	return outPath, nil
}
