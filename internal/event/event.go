// Package event defines the life-event model and the static category catalog.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation errors returned by Catalog.Validate.
var (
	ErrInvalidEvent    = errors.New("invalid event")
	ErrUnknownCategory = errors.New("unknown event category")
	ErrUnknownName     = errors.New("unknown event name")
)

// Event is a single life-event notification about a companion device.
// Consumed exactly once by the router; never mutated after creation.
type Event struct {
	ID          string         `json:"id"`
	Category    string         `json:"category"`
	Name        string         `json:"name"`
	Timestamp   time.Time      `json:"timestamp"`
	SubjectID   int64          `json:"subjectId"`
	ContextData map[string]any `json:"contextData,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Decode parses a JSON event payload.
func Decode(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return &ev, nil
}

// Catalog maps each known category to its legal event names.
type Catalog struct {
	names map[string]map[string]struct{}
}

// NewCatalog builds a catalog from a category → names mapping.
func NewCatalog(universe map[string][]string) *Catalog {
	c := &Catalog{names: make(map[string]map[string]struct{}, len(universe))}
	for cat, list := range universe {
		set := make(map[string]struct{}, len(list))
		for _, n := range list {
			set[strings.TrimSpace(n)] = struct{}{}
		}
		c.names[strings.TrimSpace(cat)] = set
	}
	return c
}

// Categories returns the known categories in unspecified order.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.names))
	for cat := range c.names {
		out = append(out, cat)
	}
	return out
}

// KnownCategory reports whether the category exists in the catalog.
func (c *Catalog) KnownCategory(category string) bool {
	_, ok := c.names[category]
	return ok
}

// Validate checks structural validity and catalog membership.
// A failed validation has no side effects anywhere in the engine.
func (c *Catalog) Validate(ev *Event) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if strings.TrimSpace(ev.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if strings.TrimSpace(ev.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidEvent)
	}
	if strings.TrimSpace(ev.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEvent)
	}
	if ev.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	set, ok := c.names[ev.Category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, ev.Category)
	}
	if _, ok := set[ev.Name]; !ok {
		return fmt.Errorf("%w: %q in category %q", ErrUnknownName, ev.Name, ev.Category)
	}
	return nil
}

// ClaimedSet holds the (category, name) pairs that must always produce an
// entry regardless of quota or completed-category state. Read-only at runtime.
type ClaimedSet struct {
	pairs map[string]struct{}
}

// NewClaimedSet builds the set from (category, name) pairs.
func NewClaimedSet(pairs [][2]string) *ClaimedSet {
	s := &ClaimedSet{pairs: make(map[string]struct{}, len(pairs))}
	for _, p := range pairs {
		s.pairs[claimedKey(p[0], p[1])] = struct{}{}
	}
	return s
}

// Contains reports whether the (category, name) pair is claimed.
func (s *ClaimedSet) Contains(category, name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.pairs[claimedKey(category, name)]
	return ok
}

func claimedKey(category, name string) string {
	return strings.TrimSpace(category) + "|" + strings.TrimSpace(name)
}
