package telegram

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mtzanidakis/kinema/internal/controller"
)

func TestSplitReport(t *testing.T) {
	parts := splitReport("hello", maxMessageLen)
	if len(parts) != 1 {
		t.Errorf("expected 1 part, got %d", len(parts))
	}

	parts = splitReport(strings.Repeat("a", maxMessageLen), maxMessageLen)
	if len(parts) != 1 {
		t.Errorf("expected 1 part for exact limit, got %d", len(parts))
	}

	parts = splitReport(strings.Repeat("a", 2*maxMessageLen), maxMessageLen)
	if len(parts) != 2 {
		t.Errorf("expected 2 parts, got %d", len(parts))
	}

	b := []byte(strings.Repeat("a", 5000))
	b[3000] = '\n'
	parts = splitReport(string(b), maxMessageLen)
	if len(parts) != 2 {
		t.Errorf("expected 2 parts with newline split, got %d", len(parts))
	}
	if len(parts[0]) != 3001 {
		t.Errorf("expected first part length 3001, got %d", len(parts[0]))
	}
}

func TestSplitReportKeepsRunesWhole(t *testing.T) {
	// 2-byte runes with an odd limit force every cut off a rune boundary.
	text := strings.Repeat("é", 50)
	parts := splitReport(text, 7)
	if got := strings.Join(parts, ""); got != text {
		t.Fatalf("expected parts to rejoin to the input, got %q", got)
	}
	for i, p := range parts {
		if !utf8.ValidString(p) {
			t.Errorf("part %d is not valid UTF-8: %q", i, p)
		}
		if len(p) > 7 {
			t.Errorf("part %d exceeds limit: %d bytes", i, len(p))
		}
	}
}

func TestSplitReportBetweenAgentLines(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, fmt.Sprintf("Agent %d: (1.5, -2.0, 3.0) → (4.0, 5.0, 6.0) moving", i))
	}
	text := strings.Join(lines, "\n") + "\n"
	parts := splitReport(text, 256)
	if len(parts) < 2 {
		t.Fatalf("expected several parts, got %d", len(parts))
	}
	if got := strings.Join(parts, ""); got != text {
		t.Fatal("expected parts to rejoin to the input")
	}
	for i, p := range parts {
		if len(p) > 256 {
			t.Errorf("part %d exceeds limit: %d bytes", i, len(p))
		}
		if !strings.HasPrefix(p, "Agent ") || !strings.HasSuffix(p, "\n") {
			t.Errorf("part %d is not made of whole agent lines: %q", i, p)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args []string
		ok   bool
	}{
		{"/positions", "positions", nil, true},
		{"/goto 1 2 3 4", "goto", []string{"1", "2", "3", "4"}, true},
		{"/Command@kinema_bot 0 HOME", "command", []string{"0", "HOME"}, true},
		{"hello", "", nil, false},
		{"/", "", nil, false},
		{"", "", nil, false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand(tt.in)
		if ok != tt.ok || name != tt.name || strings.Join(args, ",") != strings.Join(tt.args, ",") {
			t.Errorf("parseCommand(%q) = %q, %v, %v", tt.in, name, args, ok)
		}
	}
}

func TestAlertText(t *testing.T) {
	text, ok := alertText(controller.Event{Type: controller.EventStatus, Agent: 2, Call: "move", Status: "error", Detail: "motor stalled"})
	if !ok || text != "Agent 2: move failed (motor stalled)" {
		t.Errorf("unexpected alert %q %v", text, ok)
	}
	if _, ok := alertText(controller.Event{Type: controller.EventStatus, Status: "arrived"}); ok {
		t.Error("expected no alert for success")
	}
	if _, ok := alertText(controller.Event{Type: controller.EventPosition}); ok {
		t.Error("expected no alert for position events")
	}
}
