package application

import (
	"context"
	"math/rand/v2"

	"alphastral/domain"
)

// RandomAgent は合法手から一様ランダムに選ぶエージェントです。
type RandomAgent struct {
	rng *rand.Rand
}

// NewRandomAgent は共有乱数源を使うRandomAgentを生成します。
func NewRandomAgent() *RandomAgent {
	return &RandomAgent{}
}

// NewSeededRandomAgent は固定シードのRandomAgentを生成します。
// 再現性が必要なテスト用です。
func NewSeededRandomAgent(seed uint64) *RandomAgent {
	return &RandomAgent{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (a *RandomAgent) Name() string { return "random" }

func (a *RandomAgent) Decide(_ context.Context, _ domain.StateView, legal domain.LegalActionSet) (domain.Decision, error) {
	options := make([]domain.Decision, 0, len(legal.Moves)+len(legal.Switches))
	for _, m := range legal.Moves {
		options = append(options, domain.Decision{Type: domain.DecisionMove, Move: m.ID})
	}
	for _, s := range legal.Switches {
		options = append(options, domain.Decision{Type: domain.DecisionSwitch, Switch: s})
	}
	if len(options) == 0 {
		return legal.First(), nil
	}
	return options[a.intN(len(options))], nil
}

func (a *RandomAgent) intN(n int) int {
	if a.rng != nil {
		return a.rng.IntN(n)
	}
	return rand.IntN(n)
}
