package domain

import "testing"

func TestParseFrame_RoomTagging(t *testing.T) {
	frame := ">battle-gen9randombattle-1\n" +
		"|turn|1\n" +
		"|move|p1a: Garchomp|Earthquake|p2a: Corviknight\n"

	events := ParseFrame(frame)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for i, ev := range events {
		if ev.Room != "battle-gen9randombattle-1" {
			t.Errorf("event %d room = %q, want battle room", i, ev.Room)
		}
	}
	if events[0].Type != "turn" || events[0].Arg(0) != "1" {
		t.Errorf("first event = %+v, want turn|1", events[0])
	}
	if events[1].Type != "move" {
		t.Errorf("second event type = %q, want move", events[1].Type)
	}
	if got := events[1].Arg(1); got != "Earthquake" {
		t.Errorf("move name = %q, want Earthquake", got)
	}
}

func TestParseFrame_LobbyWithoutRoom(t *testing.T) {
	events := ParseFrame("|challstr|4|deadbeef")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Room != "" {
		t.Errorf("room = %q, want empty for lobby", events[0].Room)
	}
	if events[0].Type != "challstr" {
		t.Errorf("type = %q, want challstr", events[0].Type)
	}
}

func TestParseFrame_SkipsEmptyLines(t *testing.T) {
	events := ParseFrame(">room\n\n|turn|3\n\n")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != "turn" {
		t.Errorf("type = %q, want turn", events[0].Type)
	}
}

func TestParseFrame_PlainTextLine(t *testing.T) {
	events := ParseFrame(">room\nBattle started between A and B")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != "raw" {
		t.Errorf("type = %q, want raw", events[0].Type)
	}
}

func TestRawEvent_ArgOutOfRange(t *testing.T) {
	ev := RawEvent{Type: "turn", Args: []string{"1"}}
	if got := ev.Arg(5); got != "" {
		t.Errorf("Arg(5) = %q, want empty", got)
	}
	if got := ev.Arg(-1); got != "" {
		t.Errorf("Arg(-1) = %q, want empty", got)
	}
}
