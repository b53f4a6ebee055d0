package event

import (
	"errors"
	"testing"
	"time"
)

func testCatalog() *Catalog {
	return NewCatalog(map[string][]string{
		"weather": {"sunny_morning", "rain_started"},
		"social":  {"friend_visit", "group_play"},
	})
}

func validEvent() *Event {
	return &Event{
		ID:        "evt-1",
		Category:  "weather",
		Name:      "sunny_morning",
		Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		SubjectID: 42,
	}
}

func TestValidateAcceptsKnownEvent(t *testing.T) {
	if err := testCatalog().Validate(validEvent()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateStructuralFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing id", func(ev *Event) { ev.ID = "" }},
		{"missing category", func(ev *Event) { ev.Category = "" }},
		{"missing name", func(ev *Event) { ev.Name = "  " }},
		{"missing timestamp", func(ev *Event) { ev.Timestamp = time.Time{} }},
	}
	cat := testCatalog()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := validEvent()
			tc.mutate(ev)
			if err := cat.Validate(ev); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Validate() = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestValidateUnknownCategoryAndName(t *testing.T) {
	cat := testCatalog()

	ev := validEvent()
	ev.Category = "astronomy"
	if err := cat.Validate(ev); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("unknown category: got %v, want ErrUnknownCategory", err)
	}

	ev = validEvent()
	ev.Name = "meteor_shower"
	if err := cat.Validate(ev); !errors.Is(err, ErrUnknownName) {
		t.Errorf("unknown name: got %v, want ErrUnknownName", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"id": `)); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Decode() = %v, want ErrInvalidEvent", err)
	}
}

func TestClaimedSet(t *testing.T) {
	s := NewClaimedSet([][2]string{{"milestone", "birthday"}, {"milestone", "first_walk"}})
	if !s.Contains("milestone", "birthday") {
		t.Error("Contains(milestone, birthday) = false, want true")
	}
	if s.Contains("weather", "sunny_morning") {
		t.Error("Contains(weather, sunny_morning) = true, want false")
	}
	var nilSet *ClaimedSet
	if nilSet.Contains("a", "b") {
		t.Error("nil set Contains() = true, want false")
	}
}
