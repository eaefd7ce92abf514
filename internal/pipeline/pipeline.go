// Package pipeline は、プロンプト生成から画像化までの4ステージを
// 固定順で束ねるオーケストレーターなのだ。
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-prompt-pipeline/internal/builder"
	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/internal/store"
	"github.com/shouni/go-prompt-pipeline/pkg/domain"
)

// パイプラインのステージ名なのだ。この順番で実行されるのだ。
const (
	StageCreate   = "create"
	StageJudge    = "judge"
	StageReformat = "reformat"
	StageGenerate = "generate"
)

// Stages は実行順のステージ一覧なのだ。
var Stages = []string{StageCreate, StageJudge, StageReformat, StageGenerate}

// ステージごとの結果ステータスなのだ。
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusPending = "pending"
)

// Result はパイプライン全体の実行結果なのだ。
// Summary はDBが使えるときだけ埋まるのだ。
type Result struct {
	SessionID    string
	Theme        string
	StageStatus  map[string]string
	StageErrors  map[string]error
	Elapsed      time.Duration
	AllSucceeded bool
	Summary      *domain.SessionSummary
}

// ExecuteStages は指定されたステージをこのプロセス内で固定順に実行するのだ。
// ステージサブコマンドが自分の担当分を動かすための入り口なのだ。
func ExecuteStages(ctx context.Context, cfg *config.Config, stages []string) (*Result, error) {
	appCtx, err := builder.SetupAppContext(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	defer closeStore(appCtx)

	return executeStages(ctx, appCtx, stages)
}

func executeStages(ctx context.Context, appCtx *builder.AppContext, stages []string) (*Result, error) {
	started := time.Now()
	result := &Result{
		SessionID:   appCtx.Options.SessionID,
		Theme:       appCtx.Options.Theme,
		StageStatus: make(map[string]string, len(stages)),
		StageErrors: make(map[string]error),
	}
	for _, stage := range stages {
		result.StageStatus[stage] = StatusPending
	}

	if err := ensureSessionRow(ctx, appCtx.Store, appCtx.Options); err != nil {
		return nil, err
	}

	appCtx.Logger.Info("パイプラインを開始するのだ",
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

		appCtx.Logger.Info("ステージを開始するのだ", "stage", stage)
		if err := runStage(ctx, appCtx, stage); err != nil {
			result.StageStatus[stage] = StatusFailed
			result.StageErrors[stage] = err
			appCtx.Logger.Error("ステージが失敗したのだ", "stage", stage, "error", err)
			if appCtx.Options.StopOnError || ctx.Err() != nil {
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

	finalizeSession(ctx, appCtx.Store, result, appCtx.Logger)
	attachSummary(ctx, appCtx.Store, result, appCtx.Logger)
	appCtx.Logger.Info("パイプラインが終了したのだ",
		"session_id", result.SessionID,
		"all_succeeded", result.AllSucceeded,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// runStage はステージ名に対応する Runner を構築して実行するのだ。
func runStage(ctx context.Context, appCtx *builder.AppContext, stage string) error {
	switch stage {
	case StageCreate:
		_, err := builder.BuildCreateRunner(appCtx).Run(ctx)
		return err
	case StageJudge:
		_, err := builder.BuildJudgeRunner(appCtx).Run(ctx)
		return err
	case StageReformat:
		_, err := builder.BuildReformatRunner(appCtx).Run(ctx)
		return err
	case StageGenerate:
		r, err := builder.BuildImageRunner(appCtx)
		if err != nil {
			return err
		}
		_, err = r.Run(ctx)
		return err
	default:
		return fmt.Errorf("未知のステージなのだ: %q", stage)
	}
}

// ensureSessionRow はパイプライン開始時にセッション行を用意するのだ。
func ensureSessionRow(ctx context.Context, st *store.Store, opts config.PipelineOptions) error {
	if st == nil {
		return nil
	}
	sess, err := st.GetSession(ctx, opts.SessionID)
	if err != nil {
		return err
	}
	if sess != nil {
		return nil
	}
	return st.CreateSession(ctx, &domain.Session{
		ID:            opts.SessionID,
		Theme:         opts.Theme,
		Timestamp:     time.Now(),
		BaseOutputDir: opts.OutputDir,
	})
}

// finalizeSession はセッションの最終状態を completed / failed で確定させるのだ。
func finalizeSession(ctx context.Context, st *store.Store, result *Result, logger *slog.Logger) {
	if st == nil {
		return
	}
	status := domain.SessionCompleted
	if !result.AllSucceeded {
		status = domain.SessionFailed
	}
	if err := st.UpdateSessionStatus(ctx, result.SessionID, status, nil); err != nil {
		logger.Warn("セッションの最終状態の更新に失敗したのだ", "error", err)
	}
}

// attachSummary はステージ横断の集計を最終レポート用に取得するのだ。
func attachSummary(ctx context.Context, st *store.Store, result *Result, logger *slog.Logger) {
	if st == nil {
		return
	}
	summary, err := st.SessionSummary(ctx, result.SessionID)
	if err != nil {
		logger.Warn("セッション集計の取得に失敗したのだ", "error", err)
		return
	}
	result.Summary = summary
}

func closeStore(appCtx *builder.AppContext) {
	if appCtx.Store != nil {
		if err := appCtx.Store.Close(); err != nil {
			appCtx.Logger.Warn("DBのクローズに失敗したのだ", "error", err)
		}
	}
}
