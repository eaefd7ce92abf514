package theme

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"
)

// ErrNotFound はテーマ定義が存在せずフォールバックも無効な場合に返すのだ。
var ErrNotFound = errors.New("テーマ定義が見つからないのだ")

const maxThemeNameLength = 100

// Registry はテーマ定義の読み込みとキャッシュを管理するのだ。
// プロセス開始時に明示的に構築し、グローバル状態は持たないのだ。
type Registry struct {
	definitionsDir string
	useFallback    bool
	configs        *cache.Cache
	logger         *slog.Logger
}

// NewRegistry は定義ディレクトリを指すレジストリを生成します。
// useFallback が真なら、未定義のテーマ名に対して汎用設定を返すのだ。
func NewRegistry(definitionsDir string, useFallback bool, logger *slog.Logger) *Registry {
	return &Registry{
		definitionsDir: definitionsDir,
		useFallback:    useFallback,
		configs:        cache.New(cache.NoExpiration, cache.NoExpiration),
		logger:         logger,
	}
}

// ValidateName はテーマ名を検証します。
// ファイルアクセスより前に呼ばれるセキュリティ境界なのだ。
// パストラバーサル、NULバイト、長すぎる名前はここで拒否するのだ。
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("テーマ名が空なのだ")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("テーマ名にパストラバーサル文字が含まれているのだ: %q", name)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("テーマ名にNULバイトが含まれているのだ")
	}
	if len(name) > maxThemeNameLength {
		return fmt.Errorf("テーマ名が長すぎるのだ: %d文字", len(name))
	}
	return nil
}

// Exists はテーマ定義ファイルの有無を調べます。
func (r *Registry) Exists(name string) bool {
	if err := ValidateName(name); err != nil {
		return false
	}
	_, err := os.Stat(r.definitionFile(name))
	return err == nil
}

// List は利用可能なテーマ名の一覧を返します。
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.definitionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("テーマ定義ディレクトリの読み取りに失敗したのだ: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names, nil
}

// Load はテーマ設定を読み込みます。初回以降はキャッシュから返すのだ。
// 定義ファイルがなくフォールバックが有効なら汎用設定を返すのだ。
func (r *Registry) Load(name string) (*Config, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if v, ok := r.configs.Get(name); ok {
		return v.(*Config), nil
	}
	return r.loadFresh(name)
}

// Reload はキャッシュを無視してディスクから再読み込みします。
func (r *Registry) Reload(name string) (*Config, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	r.configs.Delete(name)
	return r.loadFresh(name)
}

// ClearCache はキャッシュ済みの全テーマ設定を破棄します。
func (r *Registry) ClearCache() {
	r.configs.Flush()
}

// Validate はテーマ設定を検証し、エラーと警告の一覧を返します。
func (r *Registry) Validate(name string) (valid bool, errs []string, warnings []string) {
	cfg, err := r.Reload(name)
	if err != nil {
		return false, []string{err.Error()}, nil
	}
	if len(cfg.Keywords) == 0 {
		warnings = append(warnings, "テーマ検出用のキーワードが定義されていないのだ")
	}
	min, _ := cfg.WordCountRange()
	if min < 50 {
		warnings = append(warnings, "最小語数がかなり低いのだ")
	}
	return true, nil, warnings
}

// titleFromName はテーマ名から表示名を作るのだ (例: "edge_of_frame" → "Edge Of Frame")。
func titleFromName(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (r *Registry) definitionFile(name string) string {
	return filepath.Join(r.definitionsDir, name+".yaml")
}

func (r *Registry) loadFresh(name string) (*Config, error) {
	data, err := os.ReadFile(r.definitionFile(name))
	if err != nil {
		if os.IsNotExist(err) {
			if r.useFallback {
				r.logger.Warn("テーマ定義が見つからないので汎用設定を使うのだ", "theme", name)
				cfg := DefaultConfig()
				r.configs.Set(name, cfg, cache.NoExpiration)
				return cfg, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("テーマ定義の読み取りに失敗したのだ: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("テーマ定義のYAML解析に失敗したのだ (%s): %w", name, err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = titleFromName(name)
	}
	if cfg.MinimumWordCount == 0 {
		cfg.MinimumWordCount = defaultMinimumWordCount
	}
	if len(cfg.LightingStyles) == 0 {
		cfg.LightingStyles = DefaultConfig().LightingStyles
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("テーマ設定の検証に失敗したのだ (%s): %w", name, err)
	}

	r.configs.Set(name, cfg, cache.NoExpiration)
	r.logger.Info("テーマ定義を読み込んだのだ", "theme", name, "kind", cfg.Kind())
	return cfg, nil
}
