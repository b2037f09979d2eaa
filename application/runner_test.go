package application_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"alphastral/application"
	"alphastral/domain"
)

// duelEngine は両陣営とも操作対象の最小バトルエンジンです。
// 1ターンにつき両側の/chooseが揃うとターンを進めます。
type duelEngine struct {
	mu      sync.Mutex
	out     chan []byte
	room    string
	turns   int
	turn    int
	choices int

	duplicateTurn bool
}

func newDuelEngine(id, turns int) *duelEngine {
	return &duelEngine{
		out:   make(chan []byte, 128),
		room:  fmt.Sprintf("battle-test-%d", id),
		turns: turns,
	}
}

func (e *duelEngine) dial(context.Context) (domain.Transport, error) {
	e.push("|challstr|4|deadbeef")
	return &duelConn{engine: e}, nil
}

func (e *duelEngine) push(frame string) {
	select {
	case e.out <- []byte(frame):
	default:
		panic("duelEngine: out channel full")
	}
}

func (e *duelEngine) request(side string, rqid int) string {
	return fmt.Sprintf(">%s\n|request|"+
		`{"active":[{"moves":[{"id":"tackle","pp":35},{"id":"protect","pp":16}]}],`+
		`"side":{"id":"%s","pokemon":[`+
		`{"ident":"%s: Alpha","condition":"100/100","active":true},`+
		`{"ident":"%s: Gamma","condition":"100/100"}]},"rqid":%d}`,
		e.room, side, side, side, rqid)
}

func (e *duelEngine) handleWrite(msg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, cmd, _ := strings.Cut(msg, "|")

	switch {
	case strings.HasPrefix(cmd, "/trn"):
		e.push("|updateuser|tester")
	case strings.HasPrefix(cmd, "/battle"):
		e.turn = 1
		e.push(fmt.Sprintf(">%s\n|init|battle\n|player|p1|Alice\n|player|p2|Bob\n"+
			"|switch|p1a: Alpha|Alpha, L50|100/100\n|switch|p2a: Delta|Delta, L50|100/100\n|turn|1", e.room))
		if e.duplicateTurn {
			e.push(fmt.Sprintf(">%s\n|turn|1", e.room))
			return nil
		}
		e.push(e.request("p1", e.turn))
		e.push(e.request("p2", e.turn))
	case strings.HasPrefix(cmd, "/choose"):
		e.choices++
		if e.choices < 2 {
			return nil
		}
		e.choices = 0
		if e.turn >= e.turns {
			e.push(fmt.Sprintf(">%s\n|win|Alice", e.room))
			return nil
		}
		e.turn++
		e.push(fmt.Sprintf(">%s\n|-damage|p2a: Delta|60/100\n|turn|%d", e.room, e.turn))
		e.push(e.request("p1", e.turn))
		e.push(e.request("p2", e.turn))
	}
	return nil
}

type duelConn struct {
	engine *duelEngine
}

func (c *duelConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data := <-c.engine.out:
		return data, nil
	}
}

func (c *duelConn) Write(_ context.Context, data []byte) error {
	return c.engine.handleWrite(string(data))
}

func (c *duelConn) Close(int32, string) error { return nil }

// ダイヤルごとに独立したエンジンを配る
func duelDialer(turns int) domain.DialFunc {
	var mu sync.Mutex
	n := 0
	return func(ctx context.Context) (domain.Transport, error) {
		mu.Lock()
		n++
		engine := newDuelEngine(n, turns)
		mu.Unlock()
		return engine.dial(ctx)
	}
}

// 10バトルが起動順で揃い、全勝敗が定義されることを確認
func TestRunner_TenBattlesInLaunchOrder(t *testing.T) {
	runner := application.NewRunner(application.RunnerConfig{
		Dial: duelDialer(2),
	})

	run, err := runner.Run(context.Background(),
		application.NewScriptedAgent(), application.NewScriptedAgent(),
		"gen9randombattle", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.Games() != 10 {
		t.Fatalf("got %d battles, want 10", run.Games())
	}
	for i, b := range run.Battles {
		if b.Faulted {
			t.Errorf("battle %d faulted: %s", i, b.FaultReason)
		}
		if b.Winner != "p1" {
			t.Errorf("battle %d winner = %q, want p1", i, b.Winner)
		}
		if b.Turns != 2 {
			t.Errorf("battle %d turns = %d, want 2", i, b.Turns)
		}
	}
	if run.P1Wins != 10 || run.P2Wins != 0 || run.Faults != 0 {
		t.Errorf("tally = %d/%d/%d faults, want 10/0/0",
			run.P1Wins, run.P2Wins, run.Faults)
	}
	if run.Format != "gen9randombattle" {
		t.Errorf("format = %q", run.Format)
	}
	if run.RunID == "" {
		t.Error("missing run ID")
	}
}

// 1バトルの障害が兄弟バトルに波及しないことを確認
func TestRunner_FaultIsolation(t *testing.T) {
	var mu sync.Mutex
	n := 0
	dial := func(ctx context.Context) (domain.Transport, error) {
		mu.Lock()
		n++
		engine := newDuelEngine(n, 2)
		if n == 1 {
			// 最初の接続のバトルだけ致命的なプロトコル違反を流す
			engine.duplicateTurn = true
		}
		mu.Unlock()
		return engine.dial(ctx)
	}

	runner := application.NewRunner(application.RunnerConfig{Dial: dial})
	run, err := runner.Run(context.Background(),
		application.NewScriptedAgent(), application.NewScriptedAgent(),
		"gen9randombattle", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.Games() != 4 {
		t.Fatalf("got %d battles, want 4", run.Games())
	}
	faults := 0
	wins := 0
	for _, b := range run.Battles {
		if b.Faulted {
			faults++
		} else if b.Winner == "p1" {
			wins++
		}
	}
	if faults != 1 {
		t.Errorf("faults = %d, want exactly 1", faults)
	}
	if wins != 3 {
		t.Errorf("completed wins = %d, want 3", wins)
	}
	if run.Faults != 1 {
		t.Errorf("run.Faults = %d, want 1", run.Faults)
	}
}

func TestRunner_RejectsNonPositiveCount(t *testing.T) {
	runner := application.NewRunner(application.RunnerConfig{Dial: duelDialer(1)})
	if _, err := runner.Run(context.Background(),
		application.NewScriptedAgent(), application.NewScriptedAgent(),
		"gen9randombattle", 0); err == nil {
		t.Fatal("count 0 accepted")
	}
}

func TestUsername(t *testing.T) {
	got := application.Username("random", "abc123")
	if got != "random-abc123" {
		t.Errorf("got %q", got)
	}
	if len(got) > 18 {
		t.Errorf("username %q exceeds 18 chars", got)
	}

	long := application.Username("llm:mistral-large-latest", "abc123")
	if len(long) > 18 {
		t.Errorf("username %q exceeds 18 chars", long)
	}
	if !strings.HasSuffix(long, "-abc123") {
		t.Errorf("username %q lost its uniqueness tag", long)
	}
	if strings.ContainsAny(long, ":./") {
		t.Errorf("username %q contains illegal characters", long)
	}
}
