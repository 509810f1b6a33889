package timeline

import (
	"strings"
	"unicode/utf8"
)

// Context caps. Recency matters more than completeness, so overflow is
// trimmed from the front of the joined text.
const (
	DefaultContextItems = 6
	DefaultContextChars = 800
)

// BuildContext derives a bounded terminology hint from finalized
// entries: one "original => translated" line per entry, most recent
// maxItems entries, truncated to the trailing maxChars characters.
// Entries without both texts contribute nothing. The in-progress turn
// is never included; pass Finalized(), not Entries().
func BuildContext(entries []Entry, maxItems, maxChars int) string {
	if maxItems <= 0 {
		maxItems = DefaultContextItems
	}
	if maxChars <= 0 {
		maxChars = DefaultContextChars
	}

	var withText []Entry
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if e.OriginalText != "" && e.TranslatedText != "" {
			withText = append(withText, e)
		}
	}
	if len(withText) > maxItems {
		withText = withText[len(withText)-maxItems:]
	}

	lines := make([]string, 0, len(withText))
	for _, e := range withText {
		original := collapseSpace(e.OriginalText)
		translated := collapseSpace(e.TranslatedText)
		if original == "" || translated == "" {
			continue
		}
		lines = append(lines, original+" => "+translated)
	}

	joined := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(joined) <= maxChars {
		return joined
	}
	// The cut point is a byte offset; advance it past any continuation
	// bytes so the hint never starts inside a rune.
	cut := len(joined) - maxChars
	for cut < len(joined) && !utf8.RuneStart(joined[cut]) {
		cut++
	}
	return joined[cut:]
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
