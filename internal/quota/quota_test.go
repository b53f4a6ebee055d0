package quota

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pawdiary/pawdiary/internal/event"
)

var testCategories = []string{"weather", "social", "play", "meal", "nap"}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func alwaysPassConfig() Config {
	cfg := DefaultConfig()
	cfg.PassProbability = 1.0
	return cfg
}

func newTestScheduler(t *testing.T, total int) *Scheduler {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewWithRand(alwaysPassConfig(), testCategories, rand.New(rand.NewSource(1)), fixedClock(now))
	s.ResetForDayWithQuota(dayKey(now), total)
	return s
}

func evt(category, name string) *event.Event {
	return &event.Event{ID: "e", Category: category, Name: name, Timestamp: time.Now(), SubjectID: 1}
}

func TestQuotaExhausted(t *testing.T) {
	s := newTestScheduler(t, 0)
	g := NewGate(s, event.NewClaimedSet(nil))

	if d := g.TryReserve(evt("weather", "rain_started")); d != DeniedQuotaExhausted {
		t.Errorf("TryReserve with quota 0 = %v, want quota_exhausted", d)
	}
}

func TestCategoryCompletedBeforeQuota(t *testing.T) {
	s := newTestScheduler(t, 2)
	g := NewGate(s, event.NewClaimedSet(nil))

	if d := g.TryReserve(evt("weather", "rain_started")); d != Granted {
		t.Fatalf("first weather event = %v, want granted", d)
	}
	// Second event of the same category is denied even though remaining=1.
	if d := g.TryReserve(evt("weather", "sunny_morning")); d != DeniedCategoryCompleted {
		t.Errorf("second weather event = %v, want category_completed", d)
	}
	if snap := s.CurrentState(); snap.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", snap.Remaining)
	}
}

func TestClaimedBypassAtZeroQuota(t *testing.T) {
	s := newTestScheduler(t, 0)
	g := NewGate(s, event.NewClaimedSet([][2]string{{"milestone", "birthday"}}))

	if d := g.TryReserve(evt("milestone", "birthday")); d != Granted {
		t.Errorf("claimed event at remaining=0 = %v, want granted", d)
	}
	// And again: claimed events ignore the completed-category rule too.
	if d := g.TryReserve(evt("milestone", "birthday")); d != Granted {
		t.Errorf("repeat claimed event = %v, want granted", d)
	}
}

func TestClaimedDecrementsQuotaBestEffort(t *testing.T) {
	s := newTestScheduler(t, 2)
	g := NewGate(s, event.NewClaimedSet([][2]string{{"milestone", "birthday"}}))

	if d := g.TryReserve(evt("milestone", "birthday")); d != Granted {
		t.Fatalf("claimed event = %v, want granted", d)
	}
	if snap := s.CurrentState(); snap.Remaining != 1 {
		t.Errorf("remaining after claimed grant = %d, want 1", snap.Remaining)
	}
}

func TestRandomNotMet(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.PassProbability = 0.5
	// Probability epsilon above zero: effectively never passes.
	cfg.CategoryProbability = map[string]float64{"weather": 1e-12}
	s := NewWithRand(cfg, testCategories, rand.New(rand.NewSource(7)), fixedClock(now))
	s.ResetForDayWithQuota(dayKey(now), 5)
	g := NewGate(s, event.NewClaimedSet(nil))

	if d := g.TryReserve(evt("weather", "rain_started")); d != DeniedRandom {
		t.Errorf("TryReserve = %v, want random_not_met", d)
	}
	// A denial must not consume quota or mark the category.
	snap := s.CurrentState()
	if snap.Remaining != 5 || len(snap.CompletedCategories) != 0 {
		t.Errorf("denied draw mutated state: %+v", snap)
	}
}

func TestQuotaMonotonicityUnderConcurrency(t *testing.T) {
	const total = 3
	s := newTestScheduler(t, total)
	g := NewGate(s, event.NewClaimedSet(nil))

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		cat := testCategories[i%len(testCategories)]
		wg.Add(1)
		go func(cat string) {
			defer wg.Done()
			if g.TryReserve(evt(cat, "any")) == Granted {
				granted.Add(1)
			}
		}(cat)
	}
	wg.Wait()

	if granted.Load() > total {
		t.Errorf("granted %d reservations, quota was %d", granted.Load(), total)
	}
	snap := s.CurrentState()
	if snap.Remaining < 0 {
		t.Errorf("remaining went negative: %d", snap.Remaining)
	}
	if int(granted.Load()) != total-snap.Remaining {
		t.Errorf("granted=%d but remaining=%d of %d", granted.Load(), snap.Remaining, total)
	}
}

func TestOnePerCategoryUnderConcurrency(t *testing.T) {
	s := newTestScheduler(t, 5)
	g := NewGate(s, event.NewClaimedSet(nil))

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryReserve(evt("weather", "rain_started")) == Granted {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != 1 {
		t.Errorf("category granted %d times in one day, want 1", granted.Load())
	}
}

func TestCatchUpResetOnNewDay(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	current := day1
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	s := NewWithRand(alwaysPassConfig(), testCategories, rand.New(rand.NewSource(3)), clock)
	s.ResetForDayWithQuota(dayKey(day1), 1)
	g := NewGate(s, event.NewClaimedSet(nil))

	if d := g.TryReserve(evt("weather", "rain_started")); d != Granted {
		t.Fatalf("day1 reserve = %v, want granted", d)
	}
	if d := g.TryReserve(evt("social", "friend_visit")); d != DeniedQuotaExhausted {
		t.Fatalf("day1 second reserve = %v, want quota_exhausted", d)
	}

	// Cross the boundary; the next reservation triggers the catch-up reset.
	mu.Lock()
	current = day1.Add(2 * time.Hour)
	mu.Unlock()

	snap := s.CurrentState()
	if snap.Day != dayKey(current) {
		t.Errorf("day after boundary = %q, want %q", snap.Day, dayKey(current))
	}
	if len(snap.CompletedCategories) != 0 {
		t.Errorf("completed categories carried across days: %v", snap.CompletedCategories)
	}
}

func TestPreselectModeGatesOnDrawnSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := alwaysPassConfig()
	cfg.Mode = ModePreselect
	s := NewWithRand(cfg, testCategories, rand.New(rand.NewSource(11)), fixedClock(now))
	s.ResetForDayWithQuota(dayKey(now), 2)
	g := NewGate(s, event.NewClaimedSet(nil))

	snap := s.CurrentState()
	if len(snap.Preselected) != 2 {
		t.Fatalf("preselected = %v, want 2 categories", snap.Preselected)
	}
	selected := make(map[string]bool)
	for _, c := range snap.Preselected {
		selected[c] = true
	}
	for _, cat := range testCategories {
		d := g.TryReserve(evt(cat, "any"))
		if selected[cat] && d != Granted {
			t.Errorf("preselected category %q = %v, want granted", cat, d)
		}
		if !selected[cat] && d == Granted {
			t.Errorf("unselected category %q granted", cat)
		}
	}
}

func TestNilRandFallsBackToDefaultQuota(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.DefaultQuota = 2
	s := NewWithRand(cfg, testCategories, nil, fixedClock(now))

	if snap := s.CurrentState(); snap.TotalQuota != 2 {
		t.Errorf("fallback quota = %d, want 2", snap.TotalQuota)
	}
}

func TestQuotaDrawWithinRange(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for seed := int64(0); seed < 20; seed++ {
		s := NewWithRand(DefaultConfig(), testCategories, rand.New(rand.NewSource(seed)), fixedClock(now))
		snap := s.CurrentState()
		if snap.TotalQuota < 0 || snap.TotalQuota > 5 {
			t.Errorf("seed %d: quota %d out of [0,5]", seed, snap.TotalQuota)
		}
	}
}

func TestForcedResetClearsState(t *testing.T) {
	s := newTestScheduler(t, 3)
	g := NewGate(s, event.NewClaimedSet(nil))
	if d := g.TryReserve(evt("weather", "rain_started")); d != Granted {
		t.Fatalf("reserve = %v, want granted", d)
	}

	day := s.CurrentState().Day
	s.ResetForDayWithQuota(day, 4)
	snap := s.CurrentState()
	if snap.Remaining != 4 || len(snap.CompletedCategories) != 0 {
		t.Errorf("forced reset left state: %+v", snap)
	}
}
