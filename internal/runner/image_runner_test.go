package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-prompt-pipeline/internal/config"
	"github.com/shouni/go-prompt-pipeline/internal/imagegen"
	"github.com/shouni/go-prompt-pipeline/pkg/domain"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// fakeBackend は画像生成APIの応答を固定で返すテスト用バックエンドなのだ。
type fakeBackend struct {
	taskID string
	output any
	err    error
	calls  int
}

func (f *fakeBackend) Generate(_ context.Context, _ string) (string, any, error) {
	f.calls++
	if f.err != nil {
		return "", nil, f.err
	}
	return f.taskID, f.output, nil
}

func TestImageGenerateRunner(t *testing.T) {
	ctx := context.Background()
	const reformattedName = "generator_wildlife_20250811130401_01.txt"
	const promptText = "a refined wildlife scene with layered fur detail"

	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not-a-real-png-but-bytes-are-bytes"))
	}))
	t.Cleanup(imageServer.Close)

	t.Run("プロンプトを画像化して保存と記録を行うのだ", func(t *testing.T) {
		opts := testOptions(t)
		st := openRunnerStore(t)
		promptID := seedPrompt(t, ctx, st, opts, "wildlife_20250811_130401_01.txt", "a raw wildlife prompt")
		evalID, err := st.InsertEvaluation(ctx, &domain.Evaluation{
			PromptID: promptID, SessionID: opts.SessionID, Score: "pass", Approved: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := st.InsertReformatted(ctx, &domain.ReformattedPrompt{
			EvaluationID:     evalID,
			PromptID:         promptID,
			SessionID:        opts.SessionID,
			OriginalDetailed: "the long approved text",
			Optimized:        promptText,
			FileName:         reformattedName,
			FilePath:         filepath.Join(opts.ReformattedDir, reformattedName),
		}); err != nil {
			t.Fatal(err)
		}
		seedReformattedFile(t, opts, reformattedName, promptText)

		backend := &fakeBackend{taskID: "pred-12345", output: []any{imageServer.URL + "/out.png"}}
		downloader := imagegen.NewDownloader(httpkit.New(5*time.Second), time.Millisecond, discardLogger())

		r := NewImageGenerateRunner(backend, downloader, st, localReader{}, opts, discardLogger())
		result, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if result.Generated != 1 || result.Failed != 0 {
			t.Errorf("集計が想定と違うのだ: %+v", result)
		}
		if len(result.ImagePaths) != 1 {
			t.Fatalf("画像パスが1件のはずなのだ: %v", result.ImagePaths)
		}

		imagePath := result.ImagePaths[0]
		if !strings.HasSuffix(imagePath, "_1.png") {
			t.Errorf("画像ファイル名の形式が想定と違うのだ: %s", imagePath)
		}
		if !strings.HasPrefix(filepath.Base(imagePath), "a_refined_wildlife_scene") {
			t.Errorf("ファイル名にプロンプト断片が含まれていないのだ: %s", imagePath)
		}
		if _, err := os.Stat(imagePath); err != nil {
			t.Errorf("画像ファイルが保存されていないのだ: %v", err)
		}

		logData, err := os.ReadFile(filepath.Join(opts.ImagesOutDir, promptLogName))
		if err != nil {
			t.Fatalf("プロンプト対応表が読めないのだ: %v", err)
		}
		if !strings.Contains(string(logData), promptText) {
			t.Error("プロンプト対応表に使用プロンプトが記録されていないのだ")
		}

		completed, err := st.CompletedImageCount(ctx, opts.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if completed != 1 {
			t.Errorf("完了画像数が想定と違うのだ: got %d, want 1", completed)
		}

		sess, err := st.GetSession(ctx, opts.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if sess.TotalImagesGenerated != 1 {
			t.Errorf("セッションカウンターが更新されていないのだ: %+v", sess)
		}

		// 新規ストアなので最初の画像行は image_id 1 なのだ
		img, err := st.GetImage(ctx, 1)
		if err != nil {
			t.Fatalf("GetImage に失敗したのだ: %v", err)
		}
		if img.TaskID != "pred-12345" {
			t.Errorf("タスクIDが記録されていないのだ: %q", img.TaskID)
		}
		if !strings.Contains(img.APIResponse, "pred-12345") {
			t.Errorf("API応答が記録されていないのだ: %q", img.APIResponse)
		}
		if img.FileName != filepath.Base(imagePath) {
			t.Errorf("画像の実ファイル名が記録されていないのだ: got %q, want %q",
				img.FileName, filepath.Base(imagePath))
		}
		if img.FilePath != imagePath {
			t.Errorf("画像の実パスが記録されていないのだ: got %q, want %q", img.FilePath, imagePath)
		}
	})

	t.Run("生成APIの失敗は failed として記録されるのだ", func(t *testing.T) {
		opts := testOptions(t)
		st := openRunnerStore(t)
		seedPrompt(t, ctx, st, opts, "wildlife_20250811_130401_01.txt", "a raw wildlife prompt")
		seedReformattedFile(t, opts, reformattedName, promptText)

		backend := &fakeBackend{err: errors.New("model exploded")}
		downloader := imagegen.NewDownloader(httpkit.New(5*time.Second), time.Millisecond, discardLogger())

		r := NewImageGenerateRunner(backend, downloader, st, localReader{}, opts, discardLogger())
		result, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("実行自体は成功するはずなのだ: %v", err)
		}
		if result.Failed != 1 || result.Generated != 0 {
			t.Errorf("集計が想定と違うのだ: %+v", result)
		}

		completed, err := st.CompletedImageCount(ctx, opts.SessionID)
		if err != nil {
			t.Fatal(err)
		}
		if completed != 0 {
			t.Errorf("失敗が completed に数えられているのだ: %d", completed)
		}

		img, err := st.GetImage(ctx, 1)
		if err != nil {
			t.Fatalf("GetImage に失敗したのだ: %v", err)
		}
		if img.Status != domain.ImageFailed || !strings.Contains(img.ErrorMessage, "model exploded") {
			t.Errorf("失敗の理由が記録されていないのだ: status=%q msg=%q", img.Status, img.ErrorMessage)
		}
	})

	t.Run("対象ファイルがなければエラーなのだ", func(t *testing.T) {
		opts := testOptions(t)
		if err := os.MkdirAll(opts.ReformattedDir, 0o755); err != nil {
			t.Fatal(err)
		}
		backend := &fakeBackend{}
		downloader := imagegen.NewDownloader(httpkit.New(5*time.Second), time.Millisecond, discardLogger())

		r := NewImageGenerateRunner(backend, downloader, nil, localReader{}, opts, discardLogger())
		if _, err := r.Run(ctx); err == nil {
			t.Error("エラーになるはずなのだ")
		}
	})
}

func seedReformattedFile(t *testing.T, opts config.PipelineOptions, fileName, content string) {
	t.Helper()
	if err := os.MkdirAll(opts.ReformattedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(opts.ReformattedDir, fileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
