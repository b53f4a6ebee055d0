package format

import (
	"strings"
	"testing"
	"time"

	"github.com/pawdiary/pawdiary/internal/event"
)

func testEvent() *event.Event {
	return &event.Event{
		ID:        "evt-9",
		Category:  "weather",
		Name:      "rain_started",
		Timestamp: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
		SubjectID: 7,
	}
}

func TestFinalizeBounds(t *testing.T) {
	f := New()
	entry := f.Finalize(testEvent(),
		"A very long rainy day title",
		strings.Repeat("rain and thunder ", 10),
		[]string{"calm", "sleepy"},
		"weather", "openai")

	if got := CellCount(entry.Title); got > MaxTitleCells {
		t.Errorf("title cells = %d, want <= %d", got, MaxTitleCells)
	}
	if got := CellCount(entry.Content); got > MaxContentCells {
		t.Errorf("content cells = %d, want <= %d", got, MaxContentCells)
	}
	if entry.HandlerID != "weather" || entry.ProviderName != "openai" {
		t.Errorf("attribution = %q/%q", entry.HandlerID, entry.ProviderName)
	}
	if len(entry.EmotionTags) != 2 {
		t.Errorf("emotion tags = %v, want 2 tags", entry.EmotionTags)
	}
}

func TestFinalizeEmojiCells(t *testing.T) {
	f := New()
	// 40 emoji; each is one cell, so content must come back at 35 cells.
	content := strings.Repeat("🐶", 40)
	entry := f.Finalize(testEvent(), "🐾🐾🐾🐾🐾🐾🐾🐾", content, nil, "weather", "openai")

	if got := CellCount(entry.Title); got != MaxTitleCells {
		t.Errorf("emoji title cells = %d, want %d", got, MaxTitleCells)
	}
	if got := CellCount(entry.Content); got != MaxContentCells {
		t.Errorf("emoji content cells = %d, want %d", got, MaxContentCells)
	}
	if strings.ContainsRune(entry.Content, '�') {
		t.Error("content contains replacement rune after truncation")
	}
}

func TestFinalizeFallbackTemplate(t *testing.T) {
	f := New()
	entry := f.Finalize(testEvent(), "", "", nil, "weather", "openai")
	if entry.Title == "" || entry.Content == "" {
		t.Fatalf("fallback entry empty: title=%q content=%q", entry.Title, entry.Content)
	}
	if entry.Content != "rain started" {
		t.Errorf("fallback content = %q, want %q", entry.Content, "rain started")
	}
}

func TestEntryIDUnique(t *testing.T) {
	f := NewWithClock(func() time.Time { return time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC) })
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		entry := f.Finalize(testEvent(), "t", "c", nil, "h", "p")
		if seen[entry.EntryID] {
			t.Fatalf("duplicate entry id %q", entry.EntryID)
		}
		seen[entry.EntryID] = true
	}
}

func TestSelectEmotions(t *testing.T) {
	cases := []struct {
		name  string
		hints []string
		want  []string
	}{
		{"empty", nil, nil},
		{"filters unknown", []string{"zoomies", "happy"}, []string{"happy"}},
		{"dedupes and caps", []string{"happy", "HAPPY", "calm", "proud", "loved"}, []string{"happy", "calm", "proud"}},
		{"all unknown", []string{"a", "b"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectEmotions(tc.hints)
			if len(got) != len(tc.want) {
				t.Fatalf("SelectEmotions(%v) = %v, want %v", tc.hints, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("tag[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestTruncateCellsZeroWidthJoiner(t *testing.T) {
	// Family emoji is a single grapheme cluster built from several runes.
	family := "👨‍👩‍👧‍👦"
	if CellCount(family) != 1 {
		t.Fatalf("family emoji cells = %d, want 1", CellCount(family))
	}
	if got := TruncateCells(family+family, 1); got != family {
		t.Errorf("TruncateCells split a joined cluster: %q", got)
	}
}
