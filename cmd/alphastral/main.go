package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alphastral/adapter/showdown"
	"alphastral/application"
	"alphastral/config"
	"alphastral/domain"
	"alphastral/repository/runstore"
	"alphastral/utils"
)

func main() {
	_ = godotenv.Load()

	p1Flag := flag.String("p1", "random", "agent for player 1 (random | scripted | llm:<model-id>)")
	p2Flag := flag.String("p2", "random", "agent for player 2")
	n := flag.Int("n", 1, "number of battles")
	format := flag.String("format", "gen9randombattle", "battle format")
	moveDelay := flag.Duration("move-delay", 0, "pause before submitting each move (spectating only)")
	logLevel := flag.String("log-level", utils.GetEnvDefault("LOG_LEVEL", "info"), "log verbosity (debug | info | warn | error)")
	configPath := flag.String("config", "", "optional YAML config file")
	output := flag.String("output", "", "override the runs directory")
	flag.Parse()

	setupLogging(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if *moveDelay > 0 {
		cfg.MoveDelay = config.Duration(*moveDelay)
	}
	if *output != "" {
		cfg.RunsDir = *output
	}

	p1, err := buildAgent(*p1Flag, cfg)
	if err != nil {
		slog.Error("invalid agent", "err", err)
		os.Exit(1)
	}
	p2, err := buildAgent(*p2Flag, cfg)
	if err != nil {
		slog.Error("invalid agent", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 起動時にエンジンへ到達できない場合だけが致命的エラー
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	transport, err := showdown.Dial(probeCtx, cfg.Endpoint)
	cancel()
	if err != nil {
		slog.Error("cannot reach the battle engine", "endpoint", cfg.Endpoint, "err", err)
		os.Exit(1)
	}
	_ = transport.Close(1000, "probe")

	slog.Info("starting",
		"p1", p1.Name(), "p2", p2.Name(),
		"battles", *n, "format", *format, "endpoint", cfg.Endpoint)

	runner := application.NewRunner(application.RunnerConfig{
		Dial:           showdown.Dialer(cfg.Endpoint),
		DecisionBudget: cfg.DecisionBudget.Std(),
		MoveDelay:      cfg.MoveDelay.Std(),
	})
	run, err := runner.Run(ctx, p1, p2, *format, *n)
	if err != nil {
		slog.Error("run failed to start", "err", err)
		os.Exit(1)
	}

	store := runstore.New(cfg.RunsDir)
	path, err := store.Persist(run)
	if err != nil {
		slog.Error("persist failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("Done — %d battle(s): %s %dW / %dW %s · %d fault(s)\n",
		run.Games(), p1.Name(), run.P1Wins, run.P2Wins, p2.Name(), run.Faults)
	fmt.Printf("Report record saved to %s\n", path)
}

// buildAgent はエージェントのレジストリです。新しいエージェントの追加は
// ここだけで済みます。
func buildAgent(name string, cfg config.Config) (domain.Agent, error) {
	switch {
	case name == "random":
		return application.NewRandomAgent(), nil
	case name == "scripted":
		return application.NewScriptedAgent(), nil
	case strings.HasPrefix(name, "llm:"):
		return application.NewLLMAgent(application.LLMConfig{
			BaseURL:  cfg.LLM.BaseURL,
			APIKey:   cfg.APIKey(),
			ModelID:  strings.TrimPrefix(name, "llm:"),
			Throttle: cfg.LLM.Throttle.Std(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown agent %q (available: random, scripted, llm:<model-id>)", name)
	}
}

func setupLogging(level string) {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn", "warning":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
	slog.SetDefault(logger)
}
