// Package format finalizes generated diary text into bounded entries.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"

	"github.com/pawdiary/pawdiary/internal/event"
)

// Character-cell budgets for a finished entry. A cell is one grapheme
// cluster, so a multi-byte emoji counts as one, not its byte length.
const (
	MaxTitleCells   = 6
	MaxContentCells = 35
	MaxEmotionTags  = 3
)

// EmotionVocabulary is the fixed set of emotion tags an entry may carry.
var EmotionVocabulary = []string{
	"happy", "excited", "curious", "calm", "proud",
	"sleepy", "lonely", "grumpy", "surprised", "loved",
}

var emotionSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(EmotionVocabulary))
	for _, e := range EmotionVocabulary {
		m[e] = struct{}{}
	}
	return m
}()

// Entry is a finished diary entry. Created once per successful dispatch,
// immutable thereafter.
type Entry struct {
	EntryID      string    `json:"entryId"`
	SubjectID    int64     `json:"subjectId"`
	Timestamp    time.Time `json:"timestamp"`
	Category     string    `json:"category"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	EmotionTags  []string  `json:"emotionTags,omitempty"`
	HandlerID    string    `json:"handlerId"`
	ProviderName string    `json:"providerName"`
}

// Formatter applies the output bounds and assigns entry identifiers.
type Formatter struct {
	now func() time.Time
}

// New creates a Formatter using wall-clock time.
func New() *Formatter {
	return &Formatter{now: time.Now}
}

// NewWithClock creates a Formatter with an injected clock for tests.
func NewWithClock(now func() time.Time) *Formatter {
	return &Formatter{now: now}
}

// Finalize turns generated title/content plus handler hints into a bounded
// Entry. If the generated text is unusable it falls back to a minimal
// templated entry instead of failing the route.
func (f *Formatter) Finalize(ev *event.Event, title, content string, emotionHints []string, handlerID, providerName string) *Entry {
	title = TruncateCells(strings.TrimSpace(title), MaxTitleCells)
	content = TruncateCells(strings.TrimSpace(content), MaxContentCells)
	if title == "" {
		title = TruncateCells(ev.Category, MaxTitleCells)
	}
	if content == "" {
		// Minimal templated fallback so the granted slot still yields an entry.
		content = TruncateCells(strings.ReplaceAll(ev.Name, "_", " "), MaxContentCells)
	}
	ts := f.now()
	return &Entry{
		EntryID:      buildEntryID(ev.SubjectID, ev.Category, ts),
		SubjectID:    ev.SubjectID,
		Timestamp:    ts,
		Category:     ev.Category,
		Name:         ev.Name,
		Title:        title,
		Content:      content,
		EmotionTags:  SelectEmotions(emotionHints),
		HandlerID:    handlerID,
		ProviderName: providerName,
	}
}

// buildEntryID combines subject, category, a nonce, and a timestamp so IDs
// stay unique without a central counter.
func buildEntryID(subjectID int64, category string, ts time.Time) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("diary-%d-%s-%s-%d", subjectID, category, nonce, ts.UnixMilli())
}

// SelectEmotions filters hints down to at most MaxEmotionTags entries from
// the fixed vocabulary, preserving hint order and dropping duplicates.
func SelectEmotions(hints []string) []string {
	if len(hints) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(hints))
	out := make([]string, 0, MaxEmotionTags)
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, ok := emotionSet[h]; !ok {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
		if len(out) == MaxEmotionTags {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TruncateCells cuts s to at most max grapheme clusters.
func TruncateCells(s string, max int) string {
	if s == "" || max <= 0 {
		return ""
	}
	if uniseg.GraphemeClusterCount(s) <= max {
		return s
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < max && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	return b.String()
}

// CellCount returns the number of grapheme clusters in s.
func CellCount(s string) int {
	return uniseg.GraphemeClusterCount(s)
}
