package domain

import "strings"

// RawEvent はエンジンから届いた1行分のイベントです。
//
//	>battle-gen9randombattle-1
//	|move|p1a: Garchomp|Earthquake|p2a: Corviknight
//
// Room はメッセージブロック先頭の ">" 行から、Type は "|" 直後の
// 識別子から取り出されます。到着順がそのままバトル内の全順序です。
type RawEvent struct {
	Room string
	Type string
	Args []string
	Raw  string
}

// ParseFrame は1つのテキストフレームをRawEventの列に分解します。
// フレームは任意個の行を含み、先頭が ">room" 行の場合は以降の行すべてに
// そのルームIDが付与されます。空行は読み飛ばします。
func ParseFrame(data string) []RawEvent {
	var room string
	var events []RawEvent
	for line := range strings.Lines(data) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			room = strings.TrimPrefix(line, ">")
			continue
		}
		events = append(events, parseLine(room, line))
	}
	return events
}

func parseLine(room, line string) RawEvent {
	if !strings.HasPrefix(line, "|") {
		// ルーム案内などのプレーンテキスト行
		return RawEvent{Room: room, Type: "raw", Args: []string{line}, Raw: line}
	}
	parts := strings.Split(line[1:], "|")
	ev := RawEvent{Room: room, Type: parts[0], Raw: line}
	if len(parts) > 1 {
		ev.Args = parts[1:]
	}
	return ev
}

// Arg はi番目の引数を返します。範囲外は空文字列です。
func (e RawEvent) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}
