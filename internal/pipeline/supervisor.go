package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-prompt-pipeline/internal/builder"
	"github.com/shouni/go-prompt-pipeline/internal/config"
)

// SelectStages は --stages のカンマ区切り指定と --skip-* 指定から、
// 実行するステージを固定順で組み立てるのだ。指定の並び順には従わず、
// create → judge → reformat → generate の順だけを守るのだ。
func SelectStages(stagesFlag string, skip map[string]bool) ([]string, error) {
	requested := make(map[string]bool, len(Stages))
	if stagesFlag == "" {
		for _, s := range Stages {
			requested[s] = true
		}
	} else {
		for _, raw := range strings.Split(stagesFlag, ",") {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			if !isKnownStage(name) {
				return nil, fmt.Errorf("未知のステージ名なのだ: %q（使えるのは %s なのだ）",
					name, strings.Join(Stages, ", "))
			}
			requested[name] = true
		}
	}

	var selected []string
	for _, s := range Stages {
		if requested[s] && !skip[s] {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("実行するステージが1つも残っていないのだ")
	}
	return selected, nil
}

func isKnownStage(name string) bool {
	for _, s := range Stages {
		if s == name {
			return true
		}
	}
	return false
}

// Supervise は自分自身のバイナリのステージサブコマンドを子プロセスとして
// 固定順に起動するのだ。各ステージの終了コードで成否を判定し、
// 失敗時は StopOnError に従って残りを続行またはスキップするのだ。
// 同じSQLiteファイルを複数ステージが同時に触らないよう、起動は直列なのだ。
func Supervise(ctx context.Context, cfg *config.Config, stages []string) (*Result, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("自分自身の実行ファイルを特定できないのだ: %w", err)
	}

	logger := slog.Default()
	st := builder.OpenStore(cfg, logger)
	defer func() {
		if st != nil {
			if cerr := st.Close(); cerr != nil {
				logger.Warn("DBのクローズに失敗したのだ", "error", cerr)
			}
		}
	}()

	started := time.Now()
	result := &Result{
		SessionID:   cfg.Options.SessionID,
		Theme:       cfg.Options.Theme,
		StageStatus: make(map[string]string, len(stages)),
		StageErrors: make(map[string]error),
	}
	for _, stage := range stages {
		result.StageStatus[stage] = StatusPending
	}

	if err := ensureSessionRow(ctx, st, cfg.Options); err != nil {
		return nil, err
	}

	logger.Info("パイプラインを開始するのだ",
		"session_id", result.SessionID, "theme", result.Theme, "stages", stages)

	aborted := false
	for _, stage := range stages {
		if aborted {
			result.StageStatus[stage] = StatusSkipped
			continue
		}
		if err := ctx.Err(); err != nil {
			result.StageStatus[stage] = StatusSkipped
			result.StageErrors[stage] = err
			aborted = true
			continue
		}

		logger.Info("ステージを子プロセスで起動するのだ", "stage", stage)
		if err := runStageProcess(ctx, exe, stage, cfg.Options); err != nil {
			result.StageStatus[stage] = StatusFailed
			result.StageErrors[stage] = err
			logger.Error("ステージが失敗したのだ", "stage", stage, "error", err)
			if cfg.Options.StopOnError || ctx.Err() != nil {
				aborted = true
			}
			continue
		}
		result.StageStatus[stage] = StatusSuccess
	}

	result.Elapsed = time.Since(started)
	result.AllSucceeded = true
	for _, stage := range stages {
		if result.StageStatus[stage] != StatusSuccess {
			result.AllSucceeded = false
			break
		}
	}

	finalizeSession(ctx, st, result, logger)
	attachSummary(ctx, st, result, logger)
	logger.Info("パイプラインが終了したのだ",
		"session_id", result.SessionID,
		"all_succeeded", result.AllSucceeded,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// runStageProcess は1ステージ分の子プロセスを起動して完了を待つのだ。
func runStageProcess(ctx context.Context, exe, stage string, opts config.PipelineOptions) error {
	cmd := exec.CommandContext(ctx, exe, stageArgs(stage, opts)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("ステージ %s が終了コード %d で失敗したのだ", stage, exitErr.ExitCode())
		}
		return fmt.Errorf("ステージ %s の起動に失敗したのだ: %w", stage, err)
	}
	return nil
}

// stageArgs は子プロセスへ引き渡すフラグを組み立てるのだ。
// セッションIDとフォルダ上書きを揃えて渡すことで、各ステージが
// 同じ成果物ツリーと同じDB行を見るようにするのだ。
func stageArgs(stage string, opts config.PipelineOptions) []string {
	args := []string{
		stage,
		"--session-id", opts.SessionID,
		"--output-dir", opts.OutputDir,
		"--model", opts.AIModel,
		"--image-model", opts.ImageModel,
		"--variations", strconv.Itoa(opts.VariationCount),
		"--max-iterations", strconv.Itoa(opts.MaxIterations),
		"--max-retries", strconv.Itoa(opts.MaxRetries),
		"--judge-timeout", opts.JudgeTimeout.String(),
	}
	if opts.Theme != "" {
		args = append(args, "--theme", opts.Theme)
	}
	if opts.PromptsDir != "" {
		args = append(args, "--prompts-dir", opts.PromptsDir)
	}
	if opts.ApprovedDir != "" {
		args = append(args, "--approved-dir", opts.ApprovedDir)
	}
	if opts.ReformattedDir != "" {
		args = append(args, "--reformatted-dir", opts.ReformattedDir)
	}
	if opts.ImagesOutDir != "" {
		args = append(args, "--images-dir", opts.ImagesOutDir)
	}
	if opts.SkipDatabase {
		args = append(args, "--no-database")
	}
	return args
}
