// Package quota owns the daily diary quota state: the randomized daily
// draw, the per-category completion set, and the atomic reservation that
// gates entry generation.
package quota

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Mode selects how the day's randomness is applied.
type Mode string

const (
	// ModeRandom draws a pass/fail probability per incoming event.
	ModeRandom Mode = "random"
	// ModePreselect draws up to totalQuota categories at reset time;
	// only pre-drawn categories may reserve. Mutually exclusive with
	// ModeRandom for any given day.
	ModePreselect Mode = "preselect"
)

// Config holds quota scheduling settings.
type Config struct {
	Mode                Mode               `json:"mode" envconfig:"MODE"`
	MaxDaily            int                `json:"maxDaily" envconfig:"MAX_DAILY"`
	DefaultQuota        int                `json:"defaultQuota" envconfig:"DEFAULT_QUOTA"`
	PassProbability     float64            `json:"passProbability" envconfig:"PASS_PROBABILITY"`
	CategoryProbability map[string]float64 `json:"categoryProbability,omitempty"`
	TickInterval        time.Duration      `json:"tickInterval" envconfig:"TICK_INTERVAL"`
}

// DefaultConfig returns sensible quota defaults.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeRandom,
		MaxDaily:        5,
		DefaultQuota:    0,
		PassProbability: 0.5,
		TickInterval:    30 * time.Second,
	}
}

// Snapshot is a by-value copy of the day's quota state. It is stale the
// moment it is returned; re-query before acting on it.
type Snapshot struct {
	Day                 string   `json:"day"`
	Mode                Mode     `json:"mode"`
	TotalQuota          int      `json:"totalQuota"`
	Remaining           int      `json:"remaining"`
	CompletedCategories []string `json:"completedCategories"`
	Preselected         []string `json:"preselected,omitempty"`
}

// dayState is the mutable per-day record. Guarded by Scheduler.mu; reset
// and reservation share that lock so they exclude each other.
type dayState struct {
	day          string
	total        int
	remaining    int
	completed    map[string]struct{}
	preselected  map[string]struct{}
	reservations int
}

// Scheduler owns the day's quota state and resets it at the daily boundary.
type Scheduler struct {
	mu         sync.Mutex
	cfg        Config
	categories []string
	rng        *rand.Rand
	now        func() time.Time
	st         dayState
}

// New creates a Scheduler over the given category universe, seeded from
// wall-clock entropy.
func New(cfg Config, categories []string) *Scheduler {
	return NewWithRand(cfg, categories, rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
}

// NewWithRand creates a Scheduler with an injected random source and clock
// so tests can force deterministic outcomes. A nil rng triggers the
// default-quota fallback path.
func NewWithRand(cfg Config, categories []string, rng *rand.Rand, now func() time.Time) *Scheduler {
	if cfg.MaxDaily <= 0 {
		cfg.MaxDaily = 5
	}
	if cfg.PassProbability <= 0 || cfg.PassProbability > 1 {
		cfg.PassProbability = 0.5
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.Mode != ModePreselect {
		cfg.Mode = ModeRandom
	}
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{
		cfg:        cfg,
		categories: append([]string(nil), categories...),
		rng:        rng,
		now:        now,
	}
	s.mu.Lock()
	s.resetLocked(dayKey(now()), false)
	s.mu.Unlock()
	return s
}

// dayKey formats a wall-clock instant as the day it belongs to.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Run ticks until the context is cancelled, resetting state when the
// wall clock crosses the daily boundary. Reservations that arrive before
// the first tick of a new day trigger the same catch-up reset themselves.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Quota scheduler started", "tick", s.cfg.TickInterval, "mode", s.cfg.Mode)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Quota scheduler stopped")
			return ctx.Err()
		case t := <-ticker.C:
			s.mu.Lock()
			s.ensureDayLocked(t)
			s.mu.Unlock()
		}
	}
}

// ensureDayLocked performs the catch-up reset if the state belongs to a
// previous day. Unmet quota from the old day is discarded; there is no
// make-up generation.
func (s *Scheduler) ensureDayLocked(now time.Time) {
	if key := dayKey(now); s.st.day != key {
		s.resetLocked(key, false)
	}
}

// resetLocked draws a fresh quota and clears the completed set.
func (s *Scheduler) resetLocked(day string, forced bool) {
	total := s.drawQuotaLocked()
	s.st = dayState{
		day:       day,
		total:     total,
		remaining: total,
		completed: make(map[string]struct{}),
	}
	if s.cfg.Mode == ModePreselect {
		s.st.preselected = s.preselectLocked(total)
	}
	if forced {
		slog.Warn("Quota state forcibly reset", "day", day, "quota", total)
	} else {
		slog.Info("Quota reset for day", "day", day, "quota", total, "mode", s.cfg.Mode)
	}
}

// drawQuotaLocked draws uniformly from [0, MaxDaily]. Without a random
// source it falls back to the configured default quota with a warning,
// never failing.
func (s *Scheduler) drawQuotaLocked() int {
	if s.rng == nil {
		slog.Warn("Quota draw unavailable, using default", "default", s.cfg.DefaultQuota)
		return s.cfg.DefaultQuota
	}
	return s.rng.Intn(s.cfg.MaxDaily + 1)
}

// preselectLocked draws up to n categories without replacement.
func (s *Scheduler) preselectLocked(n int) map[string]struct{} {
	out := make(map[string]struct{}, n)
	if s.rng == nil || n <= 0 || len(s.categories) == 0 {
		return out
	}
	perm := s.rng.Perm(len(s.categories))
	if n > len(perm) {
		n = len(perm)
	}
	for _, idx := range perm[:n] {
		out[s.categories[idx]] = struct{}{}
	}
	return out
}

// ResetForDay resets state for the given day. Calling it again for the
// current day before any reservation is a harmless redraw; once
// reservations exist a same-day reset is a forced administrative
// override and is logged as such.
func (s *Scheduler) ResetForDay(day string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	forced := day == s.st.day && s.st.reservations > 0
	s.resetLocked(day, forced)
}

// ResetForDayWithQuota resets with an explicit total, bypassing the random
// draw. Used by tests and administrative recovery.
func (s *Scheduler) ResetForDayWithQuota(day string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total < 0 {
		total = 0
	}
	forced := day == s.st.day && s.st.reservations > 0
	s.st = dayState{
		day:       day,
		total:     total,
		remaining: total,
		completed: make(map[string]struct{}),
	}
	if s.cfg.Mode == ModePreselect {
		s.st.preselected = s.preselectLocked(total)
	}
	if forced {
		slog.Warn("Quota state forcibly reset", "day", day, "quota", total)
	}
}

// CurrentState returns a snapshot of the day's quota state.
func (s *Scheduler) CurrentState() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureDayLocked(s.now())
	snap := Snapshot{
		Day:                 s.st.day,
		Mode:                s.cfg.Mode,
		TotalQuota:          s.st.total,
		Remaining:           s.st.remaining,
		CompletedCategories: make([]string, 0, len(s.st.completed)),
	}
	for cat := range s.st.completed {
		snap.CompletedCategories = append(snap.CompletedCategories, cat)
	}
	for cat := range s.st.preselected {
		snap.Preselected = append(snap.Preselected, cat)
	}
	return snap
}

// passProbabilityFor returns the configured probability for a category.
func (s *Scheduler) passProbabilityFor(category string) float64 {
	if p, ok := s.cfg.CategoryProbability[category]; ok && p > 0 && p <= 1 {
		return p
	}
	return s.cfg.PassProbability
}
