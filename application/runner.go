package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"alphastral/domain"
)

// RunnerConfig はRunnerの構築時にすべて明示的に渡されます。
type RunnerConfig struct {
	Dial           domain.DialFunc
	DecisionBudget time.Duration
	MoveDelay      time.Duration
	Logger         *slog.Logger
}

// Runner はN個の独立したバトルセッションを起動・監督します。
// セッション同士は可変状態を共有せず、それぞれが自分の接続を持ちます。
type Runner struct {
	cfg    RunnerConfig
	logger *slog.Logger
}

func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run はcount個のバトルを並行実行し、全セッションが終端状態に達してから
// RunResultを組み立てます。個々のバトルの障害はそのBattleResultに
// 記録されるだけで、兄弟バトルにもRunnerにも波及しません。
// 出力のバトル順は完了順ではなく起動順で、レポートの再現性を保ちます。
func (r *Runner) Run(ctx context.Context, p1, p2 domain.Agent, format string, count int) (domain.RunResult, error) {
	if count <= 0 {
		return domain.RunResult{}, fmt.Errorf("battle count must be positive, got %d", count)
	}

	runID := uuid.NewString()
	tag := runID[:6]
	p1Name := Username(p1.Name(), tag)
	p2Name := Username(p2.Name(), tag)

	r.logger.Info("run starting",
		"runID", runID, "p1", p1.Name(), "p2", p2.Name(),
		"format", format, "battles", count)

	started := time.Now()
	results := make([]domain.BattleResult, count)

	var eg errgroup.Group
	for i := range count {
		eg.Go(func() error {
			session := domain.NewSession(r.cfg.Dial, domain.SessionConfig{
				Format:   format,
				Username: fmt.Sprintf("runner-%s-%d", tag, i),
				P1Name:   p1Name,
				P2Name:   p2Name,
				Agents: map[domain.Side]domain.Agent{
					domain.SideP1: p1,
					domain.SideP2: p2,
				},
				DecisionBudget: r.cfg.DecisionBudget,
				MoveDelay:      r.cfg.MoveDelay,
				Logger:         r.logger,
			})
			// 起動順のスロットに書き込む。障害も結果として取り込む。
			results[i] = session.Run(ctx)
			return nil
		})
	}
	_ = eg.Wait()

	run := domain.RunResult{
		RunID:     runID,
		P1Agent:   p1.Name(),
		P2Agent:   p2.Name(),
		Format:    format,
		StartedAt: started,
		EndedAt:   time.Now(),
		Battles:   results,
	}
	for _, b := range results {
		switch {
		case b.Faulted:
			run.Faults++
			run.Draws++
		case b.Winner == "p1":
			run.P1Wins++
		case b.Winner == "p2":
			run.P2Wins++
		default:
			run.Draws++
		}
	}

	r.logger.Info("run finished",
		"runID", runID,
		"battles", count,
		"p1Wins", run.P1Wins, "p2Wins", run.P2Wins,
		"draws", run.Draws, "faults", run.Faults,
		"avgTurns", run.AvgGameLength(),
		"elapsed", run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))

	return run, nil
}

// Username はエージェント名をエンジンのユーザー名制約
// （18文字以内・英数字とハイフン）に収め、一意性のためのタグを残します。
func Username(agentName, tag string) string {
	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, agentName)

	name := safe + "-" + tag
	if len(name) <= 18 {
		return strings.Trim(name, "-")
	}
	keep := 18 - len(tag) - 1
	prefix := strings.TrimRight(safe[:keep], "-")
	return strings.Trim(prefix+"-"+tag, "-")
}
