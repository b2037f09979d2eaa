package report_test

import (
	"strings"
	"testing"
	"time"

	"alphastral/domain"
	"alphastral/report"
	"alphastral/repository/runstore"
)

func sampleRecord() runstore.Record {
	started := time.Date(2025, 11, 3, 14, 22, 7, 0, time.UTC)
	return runstore.Record{
		Version: runstore.RecordVersion,
		Run: domain.RunResult{
			RunID:     "aabbccddee",
			P1Agent:   "llm:mistral-large-latest",
			P2Agent:   "random",
			Format:    "gen9randombattle",
			StartedAt: started,
			EndedAt:   started.Add(90 * time.Second),
			P1Wins:    2,
			P2Wins:    1,
			Faults:    0,
			Battles: []domain.BattleResult{
				{
					BattleID: "b-1", Winner: "p1", Turns: 10,
					Decisions: []domain.DecisionRecord{
						{Turn: 1, Side: domain.SideP1, Decision: domain.Decision{Type: domain.DecisionMove, Move: "earthquake"}, LatencyMS: 1200},
						{Turn: 2, Side: domain.SideP1, Decision: domain.Decision{Type: domain.DecisionMove, Move: "tackle"}, Forced: true, LatencyMS: 60000},
						{Turn: 1, Side: domain.SideP2, Decision: domain.Decision{Type: domain.DecisionMove, Move: "growl"}, LatencyMS: 2},
					},
				},
				{BattleID: "b-2", Winner: "p2", Turns: 6},
				{BattleID: "b-3", Winner: "p1", Turns: 8},
			},
		},
	}
}

// レポートに要約・バトル表・強制ターンが揃うことを確認
func TestRenderString(t *testing.T) {
	out, err := report.RenderString(sampleRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"# AlphaStral — llm:mistral-large-latest vs random",
		"- Format: gen9randombattle",
		"- Battles: 3",
		"- Started: 2025-11-03 14:22:07 UTC",
		"- Run ID: aabbccddee",
		"| Wins | 2 | 1 |",
		"| Win rate | 66.7% | 33.3% |",
		"| Avg decision | 30600 ms | 2 ms |",
		"| Forced turns | 50.0% | 0.0% |",
		"| 1 | p1 | 10 | 3 | no |",
		"| 2 | p2 | 6 | 0 | no |",
		"## Forced turns",
		"| 1 | 2 | p1 | move tackle |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n---\n%s", want, out)
		}
	}
}

// 強制ターンが無ければその節自体を出さない
func TestRenderString_NoForcedSection(t *testing.T) {
	rec := sampleRecord()
	rec.Run.Battles[0].Decisions[1].Forced = false

	out, err := report.RenderString(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "## Forced turns") {
		t.Error("forced section present without forced turns")
	}
}

func TestRenderString_FaultedBattleRow(t *testing.T) {
	rec := sampleRecord()
	rec.Run.Battles[1].Faulted = true
	rec.Run.Battles[1].FaultReason = "submit: connection lost"
	rec.Run.Battles[1].Winner = "draw"
	rec.Run.Faults = 1

	out, err := report.RenderString(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "yes — submit: connection lost") {
		t.Error("fault reason missing from battle table")
	}
	if !strings.Contains(out, "Faulted battles: 1") {
		t.Error("fault count missing from summary")
	}
}
