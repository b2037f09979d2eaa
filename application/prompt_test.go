package application_test

import (
	"strings"
	"testing"

	"alphastral/application"
	"alphastral/domain"
)

func promptView() domain.StateView {
	return domain.StateView{
		Turn: 5,
		Active: domain.ActiveState{
			PokemonState: domain.PokemonState{Species: "Garchomp", HP: 0.57, Status: "brn"},
			Boosts:       map[string]int{"atk": 2, "spe": -1},
			Moves:        []string{"earthquake"},
		},
		OppActive: domain.ActiveState{
			PokemonState: domain.PokemonState{Species: "Corviknight", HP: 1.0},
		},
		Team: []domain.PokemonState{
			{Species: "Rotom", HP: 0.8},
			{Species: "Kingambit", Fainted: true},
		},
		Weather: "raindance",
		Terrain: "electricterrain",
		Field:   []string{"trickroom"},
		MySide:  domain.SideConditions{StealthRock: true, Spikes: 2},
		CanTera: true,
	}
}

// 盤面の要素が全て本文に現れる
func TestBuildPrompt_IncludesStateSections(t *testing.T) {
	legal := sampleLegal()
	prompt := application.BuildPrompt(promptView(), legal)

	for _, want := range []string{
		"Turn 5",
		"Garchomp 57%HP [brn]",
		"atk:+2",
		"spe:-1",
		"(can tera)",
		"known_moves=[earthquake]",
		"Corviknight 100%HP",
		"Rotom 80%HP",
		"Kingambit [fainted]",
		"Weather: raindance",
		"Terrain: electricterrain",
		"trickroom",
		"stealth_rock",
		"spikes×2",
		"Available moves: [earthquake, stoneedge]",
		"Available switches: [Rotom, Corviknight]",
		`"action_type"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "NOTE:") {
		t.Error("retry note present on a fresh decision")
	}
}

func TestBuildPrompt_RetryNote(t *testing.T) {
	legal := sampleLegal()
	legal.RetryNote = "previous choice was not legal"

	prompt := application.BuildPrompt(promptView(), legal)
	if !strings.Contains(prompt, "NOTE: previous choice was not legal") {
		t.Error("retry note missing from prompt")
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.Decision
	}{
		{
			name: "strict move",
			raw:  `{"action_type":"move","move_id":"earthquake","tera":true,"reasoning":"STAB"}`,
			want: domain.Decision{Type: domain.DecisionMove, Move: "earthquake", Tera: true, Reasoning: "STAB"},
		},
		{
			name: "strict switch",
			raw:  `{"action_type":"switch","switch_to":"Rotom","reasoning":"bad matchup"}`,
			want: domain.Decision{Type: domain.DecisionSwitch, Switch: "Rotom", Reasoning: "bad matchup"},
		},
		{
			name: "code fence", // モデルがマークダウンで包んでくる場合
			raw:  "Here is my choice:\n```json\n{\"action_type\": \"move\", \"move_id\": \"earthquake\"}\n```",
			want: domain.Decision{Type: domain.DecisionMove, Move: "earthquake"},
		},
		{
			name: "whitespace in id",
			raw:  `{"action_type":"move","move_id":" earthquake "}`,
			want: domain.Decision{Type: domain.DecisionMove, Move: "earthquake"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := application.ParseReply(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseReply_Invalid(t *testing.T) {
	for _, raw := range []string{
		"I'll use Earthquake!",
		`{"action_type":"dance"}`,
		"",
	} {
		if _, err := application.ParseReply(raw); err == nil {
			t.Errorf("reply %q accepted", raw)
		}
	}
}
