package application

import (
	"context"

	"alphastral/domain"
)

const scriptedSwitchBelow = 0.25 // このHP割合を下回ると交代を検討する

// ScriptedAgent は決定的なルールで行動するエージェントです。
// 場のポケモンのHPが閾値を下回り、かつ健康な控えがいれば交代し、
// それ以外は最初の合法技を選びます。同じ入力には常に同じ手を返します。
type ScriptedAgent struct{}

func NewScriptedAgent() *ScriptedAgent { return &ScriptedAgent{} }

func (a *ScriptedAgent) Name() string { return "scripted" }

func (a *ScriptedAgent) Decide(_ context.Context, view domain.StateView, legal domain.LegalActionSet) (domain.Decision, error) {
	if legal.ForceSwitch || len(legal.Moves) == 0 {
		return legal.First(), nil
	}
	if view.Active.HP < scriptedSwitchBelow {
		for _, species := range legal.Switches {
			if healthy(view.Team, species) {
				return domain.Decision{Type: domain.DecisionSwitch, Switch: species}, nil
			}
		}
	}
	return domain.Decision{Type: domain.DecisionMove, Move: legal.Moves[0].ID}, nil
}

func healthy(team []domain.PokemonState, species string) bool {
	for _, mon := range team {
		if mon.Species == species {
			return !mon.Fainted && mon.HP > 0.5 && mon.Status == ""
		}
	}
	return false
}
