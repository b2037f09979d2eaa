package domain

import "time"

// DecisionRecord は1決定ポイントの完全な記録です。
type DecisionRecord struct {
	Turn      int            `json:"turn"`
	Side      Side           `json:"side"`
	View      StateView      `json:"view"`
	Legal     LegalActionSet `json:"legal"`
	Decision  Decision       `json:"decision"`
	Forced    bool           `json:"forced,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
}

// BattleResult は1バトルの終端記録です。自然終了または強制終了の時点で
// 一度だけ作られ、以降は変更されません。
type BattleResult struct {
	BattleID    string           `json:"battle_id"`
	Room        string           `json:"room,omitempty"`
	Winner      string           `json:"winner"` // p1 | p2 | draw
	Turns       int              `json:"turns"`
	Faulted     bool             `json:"faulted"`
	FaultReason string           `json:"fault_reason,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	EndedAt     time.Time        `json:"ended_at"`
	Decisions   []DecisionRecord `json:"decisions"`
}

// RunResult は1回の実行全体の記録です。起動順にBattleResultを並べ、
// 一度永続化された後は読み取り専用です。
type RunResult struct {
	RunID     string         `json:"run_id"`
	P1Agent   string         `json:"p1_agent"`
	P2Agent   string         `json:"p2_agent"`
	Format    string         `json:"format"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	P1Wins    int            `json:"p1_wins"`
	P2Wins    int            `json:"p2_wins"`
	Draws     int            `json:"draws"`
	Faults    int            `json:"faults"`
	Battles   []BattleResult `json:"battles"`
}

func (r RunResult) Games() int {
	return len(r.Battles)
}

func (r RunResult) P1WinRate() float64 {
	if len(r.Battles) == 0 {
		return 0
	}
	return float64(r.P1Wins) / float64(len(r.Battles))
}

func (r RunResult) AvgGameLength() float64 {
	if len(r.Battles) == 0 {
		return 0
	}
	total := 0
	for _, b := range r.Battles {
		total += b.Turns
	}
	return float64(total) / float64(len(r.Battles))
}

// AvgDecisionMS は指定陣営の平均決定時間（ミリ秒）を返します。
func (r RunResult) AvgDecisionMS(side Side) float64 {
	var total int64
	var n int
	for _, b := range r.Battles {
		for _, d := range b.Decisions {
			if d.Side == side {
				total += d.LatencyMS
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// ForcedRate は指定陣営の強制フォールバック率を返します。
func (r RunResult) ForcedRate(side Side) float64 {
	var forced, n int
	for _, b := range r.Battles {
		for _, d := range b.Decisions {
			if d.Side == side {
				n++
				if d.Forced {
					forced++
				}
			}
		}
	}
	if n == 0 {
		return 0
	}
	return float64(forced) / float64(n)
}
