package application

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"alphastral/domain"
)

const systemPrompt = "You are an expert competitive Pokémon player. " +
	"Each turn you receive a description of the current battle state " +
	"and a list of legal actions. " +
	"You must choose exactly one action and explain your reasoning briefly. " +
	"Always respond with a single JSON object — nothing else."

// BuildPrompt はStateViewをモデル向けのテキストに整形します。
func BuildPrompt(view domain.StateView, legal domain.LegalActionSet) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Turn %d", view.Turn), "")

	lines = append(lines, activeLine("Your active", view.Active, view.CanTera))
	lines = append(lines, activeLine("Opponent active", view.OppActive, false))
	lines = append(lines, "")

	if len(view.Team) > 0 {
		lines = append(lines, "Your bench: "+benchLine(view.Team))
	}
	if len(view.OppTeam) > 0 {
		lines = append(lines, "Opponent revealed bench: "+benchLine(view.OppTeam))
	}

	lines = append(lines, "",
		fmt.Sprintf("Weather: %s  Terrain: %s", view.Weather, view.Terrain))
	if len(view.Field) > 0 {
		lines = append(lines, "Field conditions: "+strings.Join(view.Field, ", "))
	}
	lines = append(lines, "Your side: "+sideLine(view.MySide))
	lines = append(lines, "Opponent side: "+sideLine(view.OppSide))

	lines = append(lines, "",
		"Available moves: "+listOrNone(legal.MoveIDs()),
		"Available switches: "+listOrNone(legal.Switches))

	if legal.RetryNote != "" {
		lines = append(lines, "", "NOTE: "+legal.RetryNote)
	}

	lines = append(lines, "",
		"Choose one action. Respond ONLY with a JSON object matching one of these shapes:",
		`  {"action_type": "move", "move_id": "<id>", "tera": false, "reasoning": "..."}`,
		`  {"action_type": "switch", "switch_to": "<species>", "reasoning": "..."}`)

	return strings.Join(lines, "\n")
}

func activeLine(label string, a domain.ActiveState, canTera bool) string {
	if a.Fainted {
		return fmt.Sprintf("%s: %s [fainted]", label, a.Species)
	}
	line := fmt.Sprintf("%s: %s %.0f%%HP", label, a.Species, a.HP*100)
	if a.Status != "" {
		line += fmt.Sprintf(" [%s]", a.Status)
	}
	if boosts := boostLine(a.Boosts); boosts != "" {
		line += " boosts=" + boosts
	}
	if a.Terastallized {
		line += fmt.Sprintf(" [terastallized:%s]", a.TeraType)
	} else if canTera {
		line += " (can tera)"
	}
	if len(a.Moves) > 0 {
		line += fmt.Sprintf(" known_moves=[%s]", strings.Join(a.Moves, ", "))
	}
	return line
}

func boostLine(boosts map[string]int) string {
	var parts []string
	for _, stat := range slices.Sorted(maps.Keys(boosts)) {
		if boosts[stat] != 0 {
			parts = append(parts, fmt.Sprintf("%s:%+d", stat, boosts[stat]))
		}
	}
	return strings.Join(parts, ", ")
}

func benchLine(team []domain.PokemonState) string {
	parts := make([]string, len(team))
	for i, mon := range team {
		if mon.Fainted {
			parts[i] = mon.Species + " [fainted]"
			continue
		}
		s := fmt.Sprintf("%s %.0f%%HP", mon.Species, mon.HP*100)
		if mon.Status != "" {
			s += fmt.Sprintf(" [%s]", mon.Status)
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func sideLine(s domain.SideConditions) string {
	var parts []string
	if s.StealthRock {
		parts = append(parts, "stealth_rock")
	}
	if s.Spikes > 0 {
		parts = append(parts, fmt.Sprintf("spikes×%d", s.Spikes))
	}
	if s.ToxicSpikes > 0 {
		parts = append(parts, fmt.Sprintf("toxic_spikes×%d", s.ToxicSpikes))
	}
	if s.Reflect {
		parts = append(parts, "reflect")
	}
	if s.LightScreen {
		parts = append(parts, "light_screen")
	}
	if s.Tailwind {
		parts = append(parts, "tailwind")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return "[" + strings.Join(items, ", ") + "]"
}

type modelReply struct {
	ActionType string `json:"action_type"`
	MoveID     string `json:"move_id"`
	Tera       bool   `json:"tera"`
	SwitchTo   string `json:"switch_to"`
	Reasoning  string `json:"reasoning"`
}

// ParseReply はモデルの応答をDecisionに変換します。厳密なJSONを先に試し、
// コードフェンスで包まれた応答からはJSONオブジェクト部分を抜き出します。
// 合法性の検証はここでは行いません（Sessionの責務）。
func ParseReply(raw string) (domain.Decision, error) {
	var reply modelReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		extracted, ok := extractJSON(raw)
		if !ok {
			return domain.Decision{}, fmt.Errorf("no JSON object in reply")
		}
		if err := json.Unmarshal([]byte(extracted), &reply); err != nil {
			return domain.Decision{}, fmt.Errorf("parse extracted JSON: %w", err)
		}
	}

	switch reply.ActionType {
	case "move":
		return domain.Decision{
			Type:      domain.DecisionMove,
			Move:      strings.TrimSpace(reply.MoveID),
			Tera:      reply.Tera,
			Reasoning: reply.Reasoning,
		}, nil
	case "switch":
		return domain.Decision{
			Type:      domain.DecisionSwitch,
			Switch:    strings.TrimSpace(reply.SwitchTo),
			Reasoning: reply.Reasoning,
		}, nil
	default:
		return domain.Decision{}, fmt.Errorf("unknown action_type %q", reply.ActionType)
	}
}

// extractJSON は最初の '{' から最後の '}' までを取り出します。
func extractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
