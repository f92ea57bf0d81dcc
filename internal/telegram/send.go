package telegram

import (
	"strings"
	"unicode/utf8"
)

// maxMessageLen is the Telegram limit on a single message, in bytes.
const maxMessageLen = 4096

// splitReport breaks an operator reply into messages of at most limit bytes.
// Replies are one line per agent, so a cut falls after the last complete line
// that fits. A single line longer than limit is cut on a rune boundary.
func splitReport(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n') + 1
		if cut == 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, size := utf8.DecodeRuneInString(text)
				cut = size
			}
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
