package domain

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Side はバトルの陣営識別子です。
type Side string

const (
	SideP1 Side = "p1"
	SideP2 Side = "p2"
)

func (s Side) Opponent() Side {
	if s == SideP1 {
		return SideP2
	}
	return SideP1
}

// PokemonState は控えポケモンの公開情報です。
type PokemonState struct {
	Species string  `json:"species"`
	HP      float64 `json:"hp"` // 0.0〜1.0
	Fainted bool    `json:"fainted"`
	Status  string  `json:"status,omitempty"` // brn | par | slp | frz | psn | tox
}

// ActiveState は場に出ているポケモンの状態です。
type ActiveState struct {
	PokemonState
	Boosts        map[string]int `json:"boosts,omitempty"` // -6〜+6
	TeraType      string         `json:"tera_type,omitempty"`
	Terastallized bool           `json:"terastallized,omitempty"`
	Moves         []string       `json:"moves,omitempty"` // 判明している技ID
}

// SideConditions は陣営ごとの設置物・壁の状態です。
type SideConditions struct {
	StealthRock bool `json:"stealth_rock,omitempty"`
	Spikes      int  `json:"spikes,omitempty"`       // 0〜3
	ToxicSpikes int  `json:"toxic_spikes,omitempty"` // 0〜2
	Reflect     bool `json:"reflect,omitempty"`
	LightScreen bool `json:"light_screen,omitempty"`
	Tailwind    bool `json:"tailwind,omitempty"`
}

// SideState は片側陣営の全体状態です。
type SideState struct {
	Player     string
	Active     *ActiveState
	Bench      map[string]*PokemonState // species → state（場に出ていない判明分）
	Conditions SideConditions
}

// BattleState は1バトルのスナップショットです。イベント列の畳み込みだけで
// 更新され、所有するSession以外からは触られません。
type BattleState struct {
	Room    string
	Turn    int
	Sides   map[Side]*SideState
	Weather string // none | rain | sun | sand | snow
	Terrain string // none | electric | grassy | psychic | misty
	Field   []string

	Ended  bool
	Winner string // 勝者のプレイヤー名（引き分けは空）
	Tie    bool

	pending *engineRequest // 直近のrequestイベント。行動提出で消費される。
}

func NewBattleState() *BattleState {
	return &BattleState{
		Sides: map[Side]*SideState{
			SideP1: newSideState(),
			SideP2: newSideState(),
		},
		Weather: "none",
		Terrain: "none",
	}
}

func newSideState() *SideState {
	return &SideState{
		Active: newActiveState("", 1.0),
		Bench:  make(map[string]*PokemonState),
	}
}

func newActiveState(species string, hp float64) *ActiveState {
	return &ActiveState{
		PokemonState: PokemonState{Species: species, HP: hp},
		Boosts:       map[string]int{"atk": 0, "def": 0, "spa": 0, "spd": 0, "spe": 0},
	}
}

// Apply はイベントを1つ適用します。ErrUnknownEventを含むStateErrorは
// 致命的ではなく、呼び出し側がログに残して続行する想定です。
func (b *BattleState) Apply(ev RawEvent) error {
	if b.Room == "" && ev.Room != "" {
		b.Room = ev.Room
	}

	switch ev.Type {
	case "init", "deinit", "player", "teamsize", "gametype", "gen", "tier",
		"rule", "start", "upkeep", "t:", "raw", "", "error", "challstr",
		"updateuser", "-ability", "-item", "-enditem", "-activate", "cant",
		"-fail", "-miss", "-crit", "-supereffective", "-resisted", "-immune":
		// 状態に影響しない既知イベント
		if ev.Type == "player" {
			b.applyPlayer(ev)
		}
		return nil
	case "turn":
		return b.applyTurn(ev)
	case "switch", "drag":
		return b.applySwitch(ev)
	case "move":
		return b.applyMove(ev)
	case "-damage", "-heal", "-sethp":
		return b.applyHP(ev)
	case "faint":
		return b.applyFaint(ev)
	case "-status":
		return b.applyStatus(ev, true)
	case "-curestatus":
		return b.applyStatus(ev, false)
	case "-boost":
		return b.applyBoost(ev, 1)
	case "-unboost":
		return b.applyBoost(ev, -1)
	case "-clearboost", "-clearallboost":
		return b.applyClearBoost(ev)
	case "-terastallize":
		return b.applyTera(ev)
	case "-weather":
		return b.applyWeather(ev)
	case "-fieldstart":
		return b.applyField(ev, true)
	case "-fieldend":
		return b.applyField(ev, false)
	case "-sidestart":
		return b.applySide(ev, true)
	case "-sideend":
		return b.applySide(ev, false)
	case "request":
		return b.applyRequest(ev)
	case "win":
		b.Ended = true
		b.Winner = ev.Arg(0)
		b.pending = nil
		return nil
	case "tie":
		b.Ended = true
		b.Tie = true
		b.pending = nil
		return nil
	default:
		return &StateError{Event: ev, Err: ErrUnknownEvent}
	}
}

func (b *BattleState) applyPlayer(ev RawEvent) {
	side, ok := parseSide(ev.Arg(0))
	if !ok {
		return
	}
	b.Sides[side].Player = ev.Arg(1)
}

func (b *BattleState) applyTurn(ev RawEvent) error {
	n, err := strconv.Atoi(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: fmt.Errorf("bad turn number %q", ev.Arg(0))}
	}
	if n <= b.Turn {
		return &StateError{Event: ev, Err: fmt.Errorf("%w: got %d after %d", ErrTurnOrder, n, b.Turn)}
	}
	b.Turn = n
	return nil
}

func (b *BattleState) applySwitch(ev RawEvent) error {
	side, species, err := parseIdent(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: err}
	}
	ss := b.Sides[side]

	// 今の場のポケモンをベンチへ戻す
	if prev := ss.Active; prev.Species != "" {
		ss.Bench[prev.Species] = &PokemonState{
			Species: prev.Species,
			HP:      prev.HP,
			Fainted: prev.Fainted,
			Status:  prev.Status,
		}
	}

	hp, status, fainted := parseCondition(ev.Arg(2))
	next := newActiveState(species, hp)
	next.Status = status
	next.Fainted = fainted
	if known, ok := ss.Bench[species]; ok {
		// ベンチで判明していた情報を引き継ぐ
		if known.Status != "" && status == "" {
			next.Status = known.Status
		}
		delete(ss.Bench, species)
	}
	ss.Active = next
	return nil
}

func (b *BattleState) applyMove(ev RawEvent) error {
	side, species, err := parseIdent(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: err}
	}
	active := b.Sides[side].Active
	if active.Species != species {
		return nil // 交代直後の遅延イベントなどは無視
	}
	id := toID(ev.Arg(1))
	if id != "" && !slices.Contains(active.Moves, id) {
		active.Moves = append(active.Moves, id)
	}
	return nil
}

func (b *BattleState) applyHP(ev RawEvent) error {
	side, species, err := parseIdent(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: err}
	}
	hp, status, fainted := parseCondition(ev.Arg(1))
	active := b.Sides[side].Active
	if active.Species == species {
		active.HP = hp
		active.Fainted = fainted
		if status != "" {
			active.Status = status
		}
		return nil
	}
	if mon, ok := b.Sides[side].Bench[species]; ok {
		mon.HP = hp
		mon.Fainted = fainted
		if status != "" {
			mon.Status = status
		}
	}
	return nil
}

func (b *BattleState) applyFaint(ev RawEvent) error {
	side, species, err := parseIdent(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: err}
	}
	active := b.Sides[side].Active
	if active.Species == species {
		active.HP = 0
		active.Fainted = true
		return nil
	}
	if mon, ok := b.Sides[side].Bench[species]; ok {
		mon.HP = 0
		mon.Fainted = true
	}
	return nil
}

func (b *BattleState) applyStatus(ev RawEvent, set bool) error {
	side, species, err := parseIdent(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: err}
	}
	active := b.Sides[side].Active
	if active.Species != species {
		return nil
	}
	if set {
		active.Status = ev.Arg(1)
	} else {
		active.Status = ""
	}
	return nil
}

func (b *BattleState) applyBoost(ev RawEvent, sign int) error {
	side, species, err := parseIdent(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: err}
	}
	active := b.Sides[side].Active
	if active.Species != species {
		return nil
	}
	stat := ev.Arg(1)
	n, err := strconv.Atoi(ev.Arg(2))
	if err != nil {
		return &StateError{Event: ev, Err: fmt.Errorf("bad boost amount %q", ev.Arg(2))}
	}
	active.Boosts[stat] = clampInt(active.Boosts[stat]+sign*n, -6, 6)
	return nil
}

func (b *BattleState) applyClearBoost(ev RawEvent) error {
	side, species, err := parseIdent(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: err}
	}
	active := b.Sides[side].Active
	if active.Species != species {
		return nil
	}
	for stat := range active.Boosts {
		active.Boosts[stat] = 0
	}
	return nil
}

func (b *BattleState) applyTera(ev RawEvent) error {
	side, species, err := parseIdent(ev.Arg(0))
	if err != nil {
		return &StateError{Event: ev, Err: err}
	}
	active := b.Sides[side].Active
	if active.Species != species {
		return nil
	}
	active.Terastallized = true
	active.TeraType = strings.ToLower(ev.Arg(1))
	return nil
}

var weatherNames = map[string]string{
	"raindance": "rain",
	"sunnyday":  "sun",
	"sandstorm": "sand",
	"snowscape": "snow",
	"hail":      "snow",
	"none":      "none",
}

func (b *BattleState) applyWeather(ev RawEvent) error {
	id := toID(ev.Arg(0))
	if name, ok := weatherNames[id]; ok {
		b.Weather = name
	}
	return nil
}

var terrainNames = map[string]string{
	"electricterrain": "electric",
	"grassyterrain":   "grassy",
	"psychicterrain":  "psychic",
	"mistyterrain":    "misty",
}

func (b *BattleState) applyField(ev RawEvent, start bool) error {
	id := toID(strings.TrimPrefix(ev.Arg(0), "move: "))
	if terrain, ok := terrainNames[id]; ok {
		if start {
			b.Terrain = terrain
		} else if b.Terrain == terrain {
			b.Terrain = "none"
		}
		return nil
	}
	if start {
		if !slices.Contains(b.Field, id) {
			b.Field = append(b.Field, id)
		}
	} else {
		b.Field = slices.DeleteFunc(b.Field, func(f string) bool { return f == id })
	}
	return nil
}

func (b *BattleState) applySide(ev RawEvent, start bool) error {
	side, ok := parseSide(ev.Arg(0))
	if !ok {
		return &StateError{Event: ev, Err: fmt.Errorf("bad side %q", ev.Arg(0))}
	}
	cond := &b.Sides[side].Conditions
	switch toID(strings.TrimPrefix(ev.Arg(1), "move: ")) {
	case "stealthrock":
		cond.StealthRock = start
	case "spikes":
		if start {
			cond.Spikes = clampInt(cond.Spikes+1, 0, 3)
		} else {
			cond.Spikes = 0
		}
	case "toxicspikes":
		if start {
			cond.ToxicSpikes = clampInt(cond.ToxicSpikes+1, 0, 2)
		} else {
			cond.ToxicSpikes = 0
		}
	case "reflect":
		cond.Reflect = start
	case "lightscreen":
		cond.LightScreen = start
	case "tailwind":
		cond.Tailwind = start
	}
	return nil
}

// ActionRequired は直近のrequestイベントが行動を要求している場合に
// その陣営を返します。
func (b *BattleState) ActionRequired() (Side, bool) {
	if b.pending == nil || b.pending.Wait {
		return "", false
	}
	return b.pending.side(), true
}

// ConsumeRequest は行動提出後にrequestを消費し、LegalActionsを無効化します。
func (b *BattleState) ConsumeRequest() {
	b.pending = nil
}

// View はエージェントと決定ログに渡す不変スナップショットを作ります。
// 相手側は判明している情報だけを含みます。
func (b *BattleState) View(side Side) StateView {
	mine := b.Sides[side]
	theirs := b.Sides[side.Opponent()]

	v := StateView{
		Turn:      b.Turn,
		Active:    copyActive(mine.Active),
		OppActive: copyActive(theirs.Active),
		Weather:   b.Weather,
		Terrain:   b.Terrain,
		Field:     slices.Clone(b.Field),
		MySide:    mine.Conditions,
		OppSide:   theirs.Conditions,
	}
	for _, species := range slices.Sorted(maps.Keys(mine.Bench)) {
		v.Team = append(v.Team, *mine.Bench[species])
	}
	for _, species := range slices.Sorted(maps.Keys(theirs.Bench)) {
		v.OppTeam = append(v.OppTeam, *theirs.Bench[species])
	}
	if b.pending != nil && b.pending.side() == side {
		legal := b.pending.legalActions()
		v.CanTera = legal.CanTera()
		v.Moves = legal.MoveIDs()
		v.Switches = slices.Clone(legal.Switches)
	}
	return v
}

func copyActive(a *ActiveState) ActiveState {
	out := *a
	out.Boosts = maps.Clone(a.Boosts)
	out.Moves = slices.Clone(a.Moves)
	return out
}

// StateView はエージェントに見せるバトル状態です。決定ログにそのまま
// 記録されるため、BattleStateへの参照を一切持ちません。
type StateView struct {
	Turn      int            `json:"turn"`
	Active    ActiveState    `json:"active"`
	OppActive ActiveState    `json:"opp_active"`
	Team      []PokemonState `json:"team,omitempty"`
	OppTeam   []PokemonState `json:"opp_team,omitempty"`
	Weather   string         `json:"weather"`
	Terrain   string         `json:"terrain"`
	Field     []string       `json:"field,omitempty"`
	MySide    SideConditions `json:"my_side"`
	OppSide   SideConditions `json:"opp_side"`
	CanTera   bool           `json:"can_tera,omitempty"`
	Moves     []string       `json:"moves,omitempty"`
	Switches  []string       `json:"switches,omitempty"`
}

// parseIdent は "p1a: Garchomp" 形式の識別子を分解します。
func parseIdent(ident string) (Side, string, error) {
	pos, species, ok := strings.Cut(ident, ": ")
	if !ok {
		return "", "", fmt.Errorf("bad pokemon ident %q", ident)
	}
	side, ok := parseSide(pos)
	if !ok {
		return "", "", fmt.Errorf("bad pokemon ident %q", ident)
	}
	return side, species, nil
}

func parseSide(s string) (Side, bool) {
	if strings.HasPrefix(s, "p1") {
		return SideP1, true
	}
	if strings.HasPrefix(s, "p2") {
		return SideP2, true
	}
	return "", false
}

// parseCondition は "57/100 brn" や "0 fnt" 形式のHP表記を分解します。
// 負のHPは0に正規化し、ひんし扱いにします。
func parseCondition(cond string) (hp float64, status string, fainted bool) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return 1.0, "", false
	}
	frac, rest, _ := strings.Cut(cond, " ")
	if rest == "fnt" || frac == "0" {
		fainted = true
	} else {
		status = rest
	}
	cur, max, ok := strings.Cut(frac, "/")
	if !ok {
		return 0, status, fainted
	}
	c, err1 := strconv.ParseFloat(cur, 64)
	m, err2 := strconv.ParseFloat(max, 64)
	if err1 != nil || err2 != nil || m <= 0 {
		return 0, status, fainted
	}
	hp = clampFloat(c/m, 0, 1)
	if hp == 0 {
		fainted = true
		status = ""
	}
	return hp, status, fainted
}

// toID はShowdownの表示名をID形式（小文字英数字のみ）へ正規化します。
func toID(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
