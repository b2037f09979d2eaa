package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// engineRequest は request イベントのJSONペイロードです。
// 必要なフィールドだけを読み取ります。
type engineRequest struct {
	Active []struct {
		Moves []struct {
			ID       string `json:"id"`
			Disabled bool   `json:"disabled"`
			PP       int    `json:"pp"`
		} `json:"moves"`
		CanTerastallize json.RawMessage `json:"canTerastallize"`
	} `json:"active"`
	Side struct {
		ID      string `json:"id"`
		Pokemon []struct {
			Ident     string `json:"ident"`
			Condition string `json:"condition"`
			Active    bool   `json:"active"`
		} `json:"pokemon"`
	} `json:"side"`
	ForceSwitch []bool `json:"forceSwitch"`
	Wait        bool   `json:"wait"`
	RQID        int    `json:"rqid"`
}

func (b *BattleState) applyRequest(ev RawEvent) error {
	if len(ev.Args) == 0 || ev.Arg(0) == "" {
		b.pending = nil
		return nil
	}
	var req engineRequest
	if err := json.Unmarshal([]byte(strings.Join(ev.Args, "|")), &req); err != nil {
		return &StateError{Event: ev, Err: fmt.Errorf("bad request payload: %v", err)}
	}
	if req.Wait {
		b.pending = nil
		return nil
	}
	b.pending = &req
	return nil
}

func (r *engineRequest) side() Side {
	if side, ok := parseSide(r.Side.ID); ok {
		return side
	}
	return SideP1
}

func (r *engineRequest) legalActions() LegalActionSet {
	legal := LegalActionSet{
		Side:        r.side(),
		RQID:        r.RQID,
		ForceSwitch: len(r.ForceSwitch) > 0 && r.ForceSwitch[0],
	}
	if !legal.ForceSwitch {
		for _, active := range r.Active {
			canTera := len(active.CanTerastallize) > 0 && string(active.CanTerastallize) != "false" &&
				string(active.CanTerastallize) != `""` && string(active.CanTerastallize) != "null"
			for _, m := range active.Moves {
				if m.Disabled || m.PP == 0 {
					continue
				}
				legal.Moves = append(legal.Moves, MoveOption{ID: m.ID, CanTera: canTera})
			}
		}
	}
	for _, mon := range r.Side.Pokemon {
		if mon.Active {
			continue
		}
		if _, _, fainted := parseCondition(mon.Condition); fainted {
			continue
		}
		if _, species, err := parseIdent(mon.Ident); err == nil {
			legal.Switches = append(legal.Switches, species)
		}
	}
	return legal
}

// LegalActions は直近のrequestイベントで要求された行動の合法手集合を
// 返します。行動要求が無い状態で呼ぶのは呼び出し側の誤りで、
// ErrPreconditionを返します。
func (b *BattleState) LegalActions() (LegalActionSet, error) {
	if b.pending == nil || b.pending.Wait {
		return LegalActionSet{}, fmt.Errorf("%w: no action request pending", ErrPrecondition)
	}
	return b.pending.legalActions(), nil
}

// MoveOption は選択可能な技1つです。
type MoveOption struct {
	ID      string `json:"id"`
	CanTera bool   `json:"can_tera,omitempty"`
}

// LegalActionSet はある決定ポイントで合法な手の列挙です。
// 決定ポイントごとに作り直され、直接の変更は行われません。
type LegalActionSet struct {
	Side        Side         `json:"side"`
	Moves       []MoveOption `json:"moves,omitempty"`
	Switches    []string     `json:"switches,omitempty"`
	ForceSwitch bool         `json:"force_switch,omitempty"`
	RQID        int          `json:"rqid,omitempty"`

	// RetryNote は直前の選択が無効だった場合の再試行時にだけ設定され、
	// エージェントに無効だった旨を伝えます。
	RetryNote string `json:"retry_note,omitempty"`
}

func (l LegalActionSet) Empty() bool {
	return len(l.Moves) == 0 && len(l.Switches) == 0
}

func (l LegalActionSet) MoveIDs() []string {
	ids := make([]string, len(l.Moves))
	for i, m := range l.Moves {
		ids[i] = m.ID
	}
	return ids
}

func (l LegalActionSet) CanTera() bool {
	for _, m := range l.Moves {
		if m.CanTera {
			return true
		}
	}
	return false
}

// Allows は決定が合法手集合に含まれるかを検証します。
// 検証は常に呼び出し側（Session）が行い、エージェントは信用されません。
func (l LegalActionSet) Allows(d Decision) bool {
	switch d.Type {
	case DecisionMove:
		if l.ForceSwitch {
			return false
		}
		for _, m := range l.Moves {
			if m.ID == d.Move {
				return !d.Tera || m.CanTera
			}
		}
		return false
	case DecisionSwitch:
		for _, s := range l.Switches {
			if s == d.Switch {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// First は決定的なフォールバック手（最初の合法手）を返します。
func (l LegalActionSet) First() Decision {
	if !l.ForceSwitch && len(l.Moves) > 0 {
		return Decision{Type: DecisionMove, Move: l.Moves[0].ID}
	}
	if len(l.Switches) > 0 {
		return Decision{Type: DecisionSwitch, Switch: l.Switches[0]}
	}
	// 合法手なし: わるあがき
	return Decision{Type: DecisionMove, Move: "struggle"}
}
