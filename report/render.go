// Package report は永続化済みの実行記録からMarkdownレポートを生成します。
// 実行記録の読み取り専用コンシューマで、コアへの逆参照は持ちません。
package report

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"alphastral/domain"
	"alphastral/repository/runstore"
)

const reportTemplate = `# AlphaStral — {{.Run.P1Agent}} vs {{.Run.P2Agent}}

- Format: {{.Run.Format}}
- Battles: {{.Run.Games}}
- Started: {{.Run.StartedAt.UTC.Format "2006-01-02 15:04:05"}} UTC
- Duration: {{.Duration}}
- Run ID: {{.Run.RunID}}

## Summary

| Metric | {{.Run.P1Agent}} | {{.Run.P2Agent}} |
|---|---|---|
| Wins | {{.Run.P1Wins}} | {{.Run.P2Wins}} |
| Win rate | {{percent .Run.P1WinRate}} | {{percent .P2WinRate}} |
| Avg decision | {{ms .P1AvgMS}} | {{ms .P2AvgMS}} |
| Forced turns | {{percent .P1Forced}} | {{percent .P2Forced}} |

Draws: {{.Run.Draws}} · Faulted battles: {{.Run.Faults}} · Avg game length: {{printf "%.1f" .Run.AvgGameLength}} turns

## Battles

| # | Winner | Turns | Decisions | Faulted |
|---|---|---|---|---|
{{- range $i, $b := .Run.Battles}}
| {{inc $i}} | {{$b.Winner}} | {{$b.Turns}} | {{len $b.Decisions}} | {{if $b.Faulted}}yes — {{$b.FaultReason}}{{else}}no{{end}} |
{{- end}}
{{- if .ForcedTurns}}

## Forced turns

| Battle | Turn | Side | Fallback |
|---|---|---|---|
{{- range .ForcedTurns}}
| {{.Battle}} | {{.Turn}} | {{.Side}} | {{.Decision}} |
{{- end}}
{{- end}}
`

type forcedTurn struct {
	Battle   int
	Turn     int
	Side     domain.Side
	Decision string
}

type reportData struct {
	Run         domain.RunResult
	Duration    string
	ForcedTurns []forcedTurn
}

func (d reportData) P2WinRate() float64 {
	if d.Run.Games() == 0 {
		return 0
	}
	return float64(d.Run.P2Wins) / float64(d.Run.Games())
}

func (d reportData) P1AvgMS() float64  { return d.Run.AvgDecisionMS(domain.SideP1) }
func (d reportData) P2AvgMS() float64  { return d.Run.AvgDecisionMS(domain.SideP2) }
func (d reportData) P1Forced() float64 { return d.Run.ForcedRate(domain.SideP1) }
func (d reportData) P2Forced() float64 { return d.Run.ForcedRate(domain.SideP2) }

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
	"ms":      func(v float64) string { return fmt.Sprintf("%.0f ms", v) },
	"inc":     func(i int) int { return i + 1 },
}).Parse(reportTemplate))

// Render は実行記録をMarkdownとして書き出します。
func Render(w io.Writer, rec runstore.Record) error {
	data := reportData{
		Run:      rec.Run,
		Duration: rec.Run.EndedAt.Sub(rec.Run.StartedAt).Round(1e7).String(),
	}
	for i, b := range rec.Run.Battles {
		for _, d := range b.Decisions {
			if d.Forced {
				data.ForcedTurns = append(data.ForcedTurns, forcedTurn{
					Battle:   i + 1,
					Turn:     d.Turn,
					Side:     d.Side,
					Decision: d.Decision.String(),
				})
			}
		}
	}
	return tmpl.Execute(w, data)
}

// RenderString はRenderの文字列版です。
func RenderString(rec runstore.Record) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, rec); err != nil {
		return "", err
	}
	return sb.String(), nil
}
