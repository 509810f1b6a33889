package timeline

import (
	"strings"
	"testing"
	"unicode/utf8"
)

var speaker = Sender{ID: "u1", Name: "Ada", Language: "English"}

func TestApplyFragment_MergesDeltasIntoOneEntry(t *testing.T) {
	tl := New()
	for _, frag := range []string{"Hel", "lo wor", "ld"} {
		tl.ApplyFragment(frag, true, speaker)
	}

	entries := tl.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want 1", len(entries))
	}
	if got := entries[0].OriginalText; got != "Hello world" {
		t.Fatalf("originalText=%q, want %q", got, "Hello world")
	}
	if entries[0].ID != "" {
		t.Fatalf("in-progress entry has durable id %q", entries[0].ID)
	}
	if !tl.InProgress() {
		t.Fatal("expected in-progress turn")
	}
}

func TestApplyFragment_RoutesInputAndOutputFields(t *testing.T) {
	tl := New()
	tl.ApplyFragment("Hola ", true, speaker)
	tl.ApplyFragment("Hello ", false, speaker)
	tl.ApplyFragment("mundo", true, speaker)
	tl.ApplyFragment("world", false, speaker)

	entries := tl.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want 1", len(entries))
	}
	if entries[0].OriginalText != "Hola mundo" {
		t.Fatalf("original=%q", entries[0].OriginalText)
	}
	if entries[0].TranslatedText != "Hello world" {
		t.Fatalf("translated=%q", entries[0].TranslatedText)
	}
}

func TestFinalize_AssignsDurableIdentityAndFreezes(t *testing.T) {
	tl := New()
	tl.ApplyFragment("Hello world", true, speaker)

	entry, ok := tl.Finalize()
	if !ok {
		t.Fatal("finalize returned false")
	}
	if entry.ID == "" {
		t.Fatal("finalized entry missing durable id")
	}
	if tl.InProgress() {
		t.Fatal("turn still in progress after finalize")
	}

	// Later fragments start a new turn instead of mutating the
	// finalized entry.
	tl.ApplyFragment("Next", true, speaker)
	entries := tl.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want 2", len(entries))
	}
	if entries[0].OriginalText != "Hello world" {
		t.Fatalf("finalized entry mutated: %q", entries[0].OriginalText)
	}

	if _, ok := New().Finalize(); ok {
		t.Fatal("finalize with no in-progress turn should return false")
	}
}

func TestMergeRemote_LocalWinsOnIdentityCollision(t *testing.T) {
	tl := New()
	tl.ApplyFragment("local text", true, speaker)
	local, _ := tl.Finalize()

	merged := tl.MergeRemote(Entry{ID: local.ID, OriginalText: "stale remote copy"})
	if merged {
		t.Fatal("remote entry with known id must be ignored")
	}
	entries := tl.Entries()
	if len(entries) != 1 || entries[0].OriginalText != "local text" {
		t.Fatalf("local entry clobbered: %+v", entries)
	}
}

func TestMergeRemote_AppendsUnseenInArrivalOrder(t *testing.T) {
	tl := New()
	tl.MergeRemote(Entry{ID: "b", OriginalText: "second chronologically"})
	tl.MergeRemote(Entry{ID: "a", OriginalText: "first chronologically"})
	tl.MergeRemote(Entry{ID: "b", OriginalText: "duplicate"})

	entries := tl.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want 2", len(entries))
	}
	if entries[0].ID != "b" || entries[1].ID != "a" {
		t.Fatalf("arrival order not preserved: %s, %s", entries[0].ID, entries[1].ID)
	}
}

func TestSetTranslation_AnnotatesFinalizedEntry(t *testing.T) {
	tl := New()
	tl.MergeRemote(Entry{ID: "x", OriginalText: "bonjour"})

	if !tl.SetTranslation("x", "hello") {
		t.Fatal("SetTranslation failed for known id")
	}
	if tl.SetTranslation("missing", "nope") {
		t.Fatal("SetTranslation succeeded for unknown id")
	}
	if got := tl.Finalized()[0].TranslatedText; got != "hello" {
		t.Fatalf("translated=%q, want %q", got, "hello")
	}
	if n := len(tl.Untranslated()); n != 0 {
		t.Fatalf("untranslated=%d, want 0", n)
	}
}

func TestBuildContext_TruncatesFromFront(t *testing.T) {
	long := strings.Repeat("abcdefghij", 20) // 200 chars
	var entries []Entry
	for i := 0; i < 10; i++ {
		entries = append(entries, Entry{
			ID:             string(rune('a' + i)),
			OriginalText:   long,
			TranslatedText: long,
		})
	}

	ctx := BuildContext(entries, 6, 800)
	if len(ctx) > 800 {
		t.Fatalf("context length=%d, want <=800", len(ctx))
	}
	full := BuildContext(entries[len(entries)-6:], 6, 1<<20)
	if !strings.HasSuffix(full, ctx) {
		t.Fatal("context is not the tail of the joined recent entries")
	}
}

func TestBuildContext_TruncationKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("こんにちは世界", 20)
	entries := []Entry{{ID: "1", OriginalText: long, TranslatedText: long}}

	ctx := BuildContext(entries, 6, 800)
	if !utf8.ValidString(ctx) {
		t.Fatalf("context is not valid UTF-8: % x", ctx[:12])
	}
	if len(ctx) > 800 {
		t.Fatalf("context length=%d, want <=800", len(ctx))
	}
	r, _ := utf8.DecodeRuneInString(ctx)
	if r == utf8.RuneError {
		t.Fatal("context starts mid-rune")
	}
}

func TestBuildContext_SkipsIncompleteAndCollapsesSpace(t *testing.T) {
	entries := []Entry{
		{ID: "1", OriginalText: "  hola \n  mundo ", TranslatedText: "hello\tworld"},
		{ID: "2", OriginalText: "no translation yet"},
		{OriginalText: "in progress", TranslatedText: "never included"},
	}
	got := BuildContext(entries, 6, 800)
	if got != "hola mundo => hello world" {
		t.Fatalf("context=%q", got)
	}
}

func TestBuildContext_KeepsMostRecentItems(t *testing.T) {
	var entries []Entry
	for _, id := range []string{"1", "2", "3"} {
		entries = append(entries, Entry{ID: id, OriginalText: "o" + id, TranslatedText: "t" + id})
	}
	got := BuildContext(entries, 2, 800)
	if strings.Contains(got, "o1") {
		t.Fatalf("oldest entry leaked into context: %q", got)
	}
	if !strings.Contains(got, "o2") || !strings.Contains(got, "o3") {
		t.Fatalf("recent entries missing: %q", got)
	}
}
