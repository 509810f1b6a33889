// Package timeline maintains the ordered transcript/translation history
// for a room, merging live incremental fragments, turn finalization and
// asynchronously persisted remote entries.
package timeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one unit of speech with its translation. While a turn is in
// progress the entry has no durable ID and both text fields grow
// append-only; finalization assigns the ID and freezes the entry against
// further live mutation (post-hoc translation is still allowed).
type Entry struct {
	ID             string
	SenderID       string
	SenderName     string
	OriginalText   string
	TranslatedText string
	SourceLanguage string
	CreatedAt      time.Time
}

// Sender identifies the local speaker for entries created from live
// fragments.
type Sender struct {
	ID       string
	Name     string
	Language string
}

// Timeline is the reducer over three input streams: live fragments,
// turn-complete finalization, and persisted history arriving
// asynchronously and out of order. The in-progress turn is held in an
// explicit current field; at most one exists at a time.
type Timeline struct {
	mu        sync.Mutex
	finalized []Entry
	current   *Entry
	known     map[string]struct{}
	now       func() time.Time
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{
		known: make(map[string]struct{}),
		now:   time.Now,
	}
}

// ApplyFragment merges one incremental transcript delta. Input
// fragments extend the original text, output fragments the translated
// text. The first fragment of a turn creates the in-progress entry.
// Fragments are deltas, not restatements, so text is appended, never
// replaced.
func (t *Timeline) ApplyFragment(text string, isInput bool, from Sender) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		t.current = &Entry{
			SenderID:       from.ID,
			SenderName:     from.Name,
			SourceLanguage: from.Language,
			CreatedAt:      t.now(),
		}
	}
	if isInput {
		t.current.OriginalText += text
	} else {
		t.current.TranslatedText += text
	}
}

// Finalize completes the in-progress turn: the entry receives a durable
// identity, joins the finalized history, and is never again touched by
// live fragments. Returns false when no turn is in progress (e.g. a
// turn-complete with no preceding fragments).
func (t *Timeline) Finalize() (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Entry{}, false
	}
	entry := *t.current
	entry.ID = uuid.NewString()
	t.current = nil
	t.finalized = append(t.finalized, entry)
	t.known[entry.ID] = struct{}{}
	return entry, true
}

// MergeRemote reconciles an entry fetched from or pushed by the
// persistence layer. Known identities are ignored so a stale remote
// copy never clobbers locally finalized state; unseen identities are
// appended in arrival order.
func (t *Timeline) MergeRemote(entry Entry) bool {
	if entry.ID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.known[entry.ID]; ok {
		return false
	}
	t.finalized = append(t.finalized, entry)
	t.known[entry.ID] = struct{}{}
	return true
}

// SetTranslation annotates a finalized entry with an asynchronously
// completed translation. No-op for unknown ids.
func (t *Timeline) SetTranslation(id, translated string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.finalized {
		if t.finalized[i].ID == id {
			t.finalized[i].TranslatedText = translated
			return true
		}
	}
	return false
}

// Untranslated returns finalized entries that still lack a translation.
func (t *Timeline) Untranslated() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Entry
	for _, e := range t.finalized {
		if e.TranslatedText == "" {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a snapshot of the timeline in display order: the
// finalized history followed by the in-progress entry, if any.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.finalized), len(t.finalized)+1)
	copy(out, t.finalized)
	if t.current != nil {
		out = append(out, *t.current)
	}
	return out
}

// Finalized returns only the finalized history.
func (t *Timeline) Finalized() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.finalized))
	copy(out, t.finalized)
	return out
}

// InProgress reports whether a turn is currently being spoken.
func (t *Timeline) InProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}
