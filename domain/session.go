package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionPhase はSessionの状態機械の現在地です。
type SessionPhase int32

const (
	PhaseConnecting SessionPhase = iota
	PhaseAwaitingEvent
	PhaseDeciding
	PhaseSubmitting
	PhaseFinished
	PhaseFaulted
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseAwaitingEvent:
		return "awaiting_event"
	case PhaseDeciding:
		return "deciding"
	case PhaseSubmitting:
		return "submitting"
	case PhaseFinished:
		return "finished"
	case PhaseFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// SessionConfig はSessionの構築時にすべて明示的に渡されます。
// プロセス全体の可変シングルトンは持ちません。
type SessionConfig struct {
	Format         string
	Username       string
	P1Name         string
	P2Name         string
	Agents         map[Side]Agent
	DecisionBudget time.Duration // 0は無制限
	MoveDelay      time.Duration // 観戦用の提出前待機。決定内容には影響しない。
	Logger         *slog.Logger
}

// Session は1バトルを駆動する状態機械です。BattleStateとClientを
// 排他的に所有し、イベント受信→状態更新→行動要求検出→エージェント
// 照会→検証→提出のループを回します。
type Session struct {
	cfg    SessionConfig
	dial   DialFunc
	logger *slog.Logger

	client *Client
	state  *BattleState
	phase  atomic.Int32

	battleID    string
	decisions   []DecisionRecord
	reconnected bool // 再接続予算は1バトルにつき1回
}

func NewSession(dial DialFunc, cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		cfg:      cfg,
		dial:     dial,
		battleID: uuid.NewString(),
		state:    NewBattleState(),
	}
	s.logger = logger.With("battleID", s.battleID)
	return s
}

// Phase は現在の状態を返します。ログとテストのための観測点です。
func (s *Session) Phase() SessionPhase {
	return SessionPhase(s.phase.Load())
}

func (s *Session) setPhase(p SessionPhase) {
	s.phase.Store(int32(p))
}

// Run はバトルを終端状態まで駆動し、BattleResultを返します。
// 障害はBattleResultに記録され、エラーとしては伝播しません。
// キャンセルされた場合もFaultedの部分結果を返します。
func (s *Session) Run(ctx context.Context) BattleResult {
	started := time.Now()

	s.setPhase(PhaseConnecting)
	if err := s.connect(ctx); err != nil {
		return s.fault(started, fmt.Sprintf("connect: %v", err))
	}
	// 再接続でclientが差し替わるためクロージャで閉じる
	defer func() { s.client.Close() }()

	for {
		s.setPhase(PhaseAwaitingEvent)
		ev, err := s.client.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.fault(started, "cancelled")
			}
			if errors.Is(err, ErrConnectionLost) && s.tryReconnect(ctx) {
				continue
			}
			return s.fault(started, fmt.Sprintf("receive: %v", err))
		}

		if err := s.state.Apply(ev); err != nil {
			var stateErr *StateError
			if errors.As(err, &stateErr) && !stateErr.Fatal() {
				s.logger.Debug("skipping unknown event", "type", ev.Type)
				continue
			}
			return s.fault(started, fmt.Sprintf("state: %v", err))
		}

		if s.state.Ended {
			s.setPhase(PhaseFinished)
			return s.finished(started)
		}

		side, ok := s.state.ActionRequired()
		if !ok {
			continue
		}
		agent, controlled := s.cfg.Agents[side]
		if !controlled {
			continue
		}
		if err := s.decideAndSubmit(ctx, side, agent); err != nil {
			return s.fault(started, err.Error())
		}
	}
}

// connect は接続を確立し、ログインしてバトルを開始します。
func (s *Session) connect(ctx context.Context) error {
	transport, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s.client = NewClient(transport)

	if err := s.login(ctx); err != nil {
		return err
	}
	start := fmt.Sprintf("/battle %s, %s, %s", s.cfg.Format, s.cfg.P1Name, s.cfg.P2Name)
	if err := s.client.Send(ctx, "", start); err != nil {
		return err
	}
	s.logger.Info("battle requested", "format", s.cfg.Format)
	return nil
}

// login はchallstrを待ってから名前を登録します（ローカルサーバ前提）。
func (s *Session) login(ctx context.Context) error {
	for {
		ev, err := s.client.Receive(ctx)
		if err != nil {
			return err
		}
		if ev.Type == "challstr" {
			break
		}
	}
	return s.client.Send(ctx, "", fmt.Sprintf("/trn %s,0,", s.cfg.Username))
}

// tryReconnect は1回だけの再接続を試みます。成功した場合は元のルームへ
// 復帰します。2回目の障害では呼び出し側がFaultedへ遷移します。
func (s *Session) tryReconnect(ctx context.Context) bool {
	if s.reconnected {
		return false
	}
	s.reconnected = true
	s.logger.Warn("connection lost, attempting reconnect")

	transport, err := s.dial(ctx)
	if err != nil {
		s.logger.Warn("reconnect failed", "err", err)
		return false
	}
	s.client = NewClient(transport)
	if err := s.login(ctx); err != nil {
		s.logger.Warn("reconnect login failed", "err", err)
		return false
	}
	if room := s.state.Room; room != "" {
		if err := s.client.Send(ctx, "", "/join "+room); err != nil {
			s.logger.Warn("rejoin failed", "err", err)
			return false
		}
	}
	s.logger.Info("reconnected")
	return true
}

// decideAndSubmit は1つの決定ポイントを処理します。無効手・時間超過は
// 1回だけ再試行し、2回目の失敗で決定的フォールバックに落とします。
// バトル全体を中断することはありません。
func (s *Session) decideAndSubmit(ctx context.Context, side Side, agent Agent) error {
	s.setPhase(PhaseDeciding)

	legal, err := s.state.LegalActions()
	if err != nil {
		return err
	}
	view := s.state.View(side)

	started := time.Now()
	decision, err := s.invoke(ctx, agent, view, legal)
	forced := false
	if err != nil {
		s.logger.Warn("decision rejected, retrying once",
			"agent", agent.Name(), "turn", s.state.Turn, "err", err)
		retry := legal
		retry.RetryNote = fmt.Sprintf("previous choice was invalid: %v", err)
		decision, err = s.invoke(ctx, agent, view, retry)
		if err != nil {
			decision = legal.First()
			forced = true
			s.logger.Warn("falling back to first legal action",
				"agent", agent.Name(), "turn", s.state.Turn, "decision", decision.String())
		}
	}
	latency := time.Since(started).Milliseconds()

	// 観戦用の待機。決定確定後に入れるため内容には影響しない。
	if s.cfg.MoveDelay > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled")
		case <-time.After(s.cfg.MoveDelay):
		}
	}

	s.setPhase(PhaseSubmitting)
	if err := s.submit(ctx, decision.Command(legal)); err != nil {
		return err
	}
	s.state.ConsumeRequest()

	s.decisions = append(s.decisions, DecisionRecord{
		Turn:      view.Turn,
		Side:      side,
		View:      view,
		Legal:     legal,
		Decision:  decision,
		Forced:    forced,
		LatencyMS: latency,
	})
	s.logger.Debug("action submitted",
		"turn", view.Turn, "side", side, "decision", decision.String(), "forced", forced)
	return nil
}

// invoke はエージェントを時間予算内で呼び、返った決定を検証します。
func (s *Session) invoke(ctx context.Context, agent Agent, view StateView, legal LegalActionSet) (Decision, error) {
	if s.cfg.DecisionBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DecisionBudget)
		defer cancel()
	}
	decision, err := agent.Decide(ctx, view, legal)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Decision{}, ErrDecisionTimeout
		}
		return Decision{}, err
	}
	if !legal.Allows(decision) {
		return Decision{}, fmt.Errorf("%w: %s", ErrInvalidDecision, decision.String())
	}
	return decision, nil
}

// submit は行動コマンドを送信します。接続断では1回だけ再接続して
// 再送し、2回目の失敗をエラーとして返します。エージェントの時間超過と
// 接続断が重なった場合も、接続障害の処理を優先します。
func (s *Session) submit(ctx context.Context, cmd string) error {
	err := s.client.Send(ctx, s.state.Room, cmd)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrConnectionLost) {
		return err
	}
	if !s.tryReconnect(ctx) {
		return fmt.Errorf("submit: %w", err)
	}
	if err := s.client.Send(ctx, s.state.Room, cmd); err != nil {
		return fmt.Errorf("resubmit: %w", err)
	}
	return nil
}

func (s *Session) fault(started time.Time, reason string) BattleResult {
	s.setPhase(PhaseFaulted)
	s.logger.Warn("battle faulted", "reason", reason)
	return BattleResult{
		BattleID:    s.battleID,
		Room:        s.state.Room,
		Winner:      "draw",
		Turns:       s.state.Turn,
		Faulted:     true,
		FaultReason: reason,
		StartedAt:   started,
		EndedAt:     time.Now(),
		Decisions:   s.decisions,
	}
}

func (s *Session) finished(started time.Time) BattleResult {
	winner := "draw"
	if !s.state.Tie {
		switch s.state.Winner {
		case s.cfg.P1Name, s.state.Sides[SideP1].Player:
			winner = "p1"
		case s.cfg.P2Name, s.state.Sides[SideP2].Player:
			winner = "p2"
		}
	}
	s.logger.Info("battle finished", "winner", winner, "turns", s.state.Turn)
	return BattleResult{
		BattleID:  s.battleID,
		Room:      s.state.Room,
		Winner:    winner,
		Turns:     s.state.Turn,
		StartedAt: started,
		EndedAt:   time.Now(),
		Decisions: s.decisions,
	}
}
