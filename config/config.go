// Package config は実行設定を読み込みます。設定は明示的な構造体として
// 各コンポーネントの構築時に渡され、プロセス全体の可変状態は持ちません。
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"alphastral/utils"
)

// Duration は "60s" のような表記を受け付けるtime.Durationのラッパーです。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", value.Value, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config はCLIとYAMLファイルから組み立てられる実行設定です。
type Config struct {
	// Endpoint はエンジンのwebsocketエンドポイントです。
	Endpoint string `yaml:"endpoint"`
	// RunsDir は実行記録の保存先ディレクトリです。
	RunsDir string `yaml:"runs_dir"`
	// DecisionBudget はエージェント1回あたりの時間予算です。
	DecisionBudget Duration `yaml:"decision_budget"`
	// MoveDelay は観戦用の提出前待機時間です。
	MoveDelay Duration `yaml:"move_delay"`

	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig はモデルベースエージェントの接続設定です。
// APIキーは設定ファイルには置かず、環境変数から読みます。
type LLMConfig struct {
	BaseURL  string   `yaml:"base_url"`
	Throttle Duration `yaml:"throttle"`
}

// Default はローカルのShowdownサーバ向けの既定値です。
func Default() Config {
	return Config{
		Endpoint:       "ws://localhost:8000/showdown/websocket",
		RunsDir:        "runs",
		DecisionBudget: Duration(60 * time.Second),
		LLM: LLMConfig{
			BaseURL:  "https://api.mistral.ai/v1",
			Throttle: Duration(time.Second),
		},
	}
}

// Load は既定値の上にYAMLファイルを重ね、環境変数で上書きします。
// pathが空の場合はファイルを読みません。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.Endpoint = utils.GetEnvDefault("SHOWDOWN_ENDPOINT", cfg.Endpoint)
	cfg.RunsDir = utils.GetEnvDefault("RUNS_DIR", cfg.RunsDir)
	cfg.LLM.BaseURL = utils.GetEnvDefault("LLM_BASE_URL", cfg.LLM.BaseURL)
	return cfg, nil
}

// APIKey はモデルAPIの認証キーを環境変数から読みます。未設定なら空です。
func (c Config) APIKey() string {
	return os.Getenv("MISTRAL_API_KEY")
}
