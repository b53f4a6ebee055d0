// Package registry maps event categories to diary handlers and tracks
// per-handler health across retried dispatches.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/pawdiary/pawdiary/internal/event"
)

// ErrUnregisteredHandler is returned when no handler exists for a
// category. This is a configuration gap: the event is unroutable and must
// never be charged against quota.
var ErrUnregisteredHandler = errors.New("no handler registered for category")

// Draft is a handler's raw output: the prompt material the provider pool
// turns into finished diary text.
type Draft struct {
	Title        string
	SystemPrompt string
	Prompt       string
	EmotionHints []string
}

// Handler turns an event plus context data into a draft.
type Handler interface {
	ID() string
	Handle(ctx context.Context, ev *event.Event, contextData map[string]any) (*Draft, error)
	// Reset reinitializes the handler's internal state. Registration is
	// untouched; used by the supervisory restart path.
	Reset()
}

// Health is the per-category dispatch telemetry. Lost counter updates
// under race are tolerable; torn structs are not, so all mutation happens
// under the registry lock and reads return copies.
type Health struct {
	Category      string     `json:"category"`
	TotalRequests int64      `json:"totalRequests"`
	SuccessCount  int64      `json:"successCount"`
	FailureCount  int64      `json:"failureCount"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	Status        string     `json:"status"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Config holds dispatch retry settings.
type Config struct {
	MaxAttempts     int           `json:"maxAttempts" envconfig:"MAX_ATTEMPTS"`
	BaseDelay       time.Duration `json:"baseDelay" envconfig:"BASE_DELAY"`
	DispatchTimeout time.Duration `json:"dispatchTimeout" envconfig:"DISPATCH_TIMEOUT"`
}

// DefaultConfig returns sensible dispatch defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       100 * time.Millisecond,
		DispatchTimeout: 10 * time.Second,
	}
}

// Registry holds the category → handler map built at startup.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	handlers map[string]Handler
	health   map[string]*Health
	sleep    func(time.Duration)
	jitter   func(time.Duration) time.Duration
}

// New creates an empty Registry.
func New(cfg Config) *Registry {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	return &Registry{
		cfg:      cfg,
		handlers: make(map[string]Handler),
		health:   make(map[string]*Health),
		sleep:    time.Sleep,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
}

// Register adds a handler for a category, replacing any previous one.
func (r *Registry) Register(category string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[category] = h
	if _, ok := r.health[category]; !ok {
		r.health[category] = &Health{Category: category, Status: StatusHealthy}
	}
	slog.Info("Handler registered", "category", category, "handler", h.ID())
}

// Resolve returns the handler for a category.
func (r *Registry) Resolve(category string) (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredHandler, category)
	}
	return h, nil
}

// Categories returns the registered categories in unspecified order.
func (r *Registry) Categories() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.handlers))
	for cat := range r.handlers {
		out = append(out, cat)
	}
	return out
}

// DispatchWithRetry calls the category's handler with bounded retries,
// exponential backoff, and a per-attempt timeout, updating health after
// every attempt. When every attempt fails the handler flips unhealthy.
func (r *Registry) DispatchWithRetry(ctx context.Context, category string, ev *event.Event, contextData map[string]any) (*Draft, error) {
	h, err := r.Resolve(category)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.DispatchTimeout)
		draft, err := h.Handle(attemptCtx, ev, contextData)
		cancel()
		if err == nil && draft != nil {
			r.recordResult(category, true)
			return draft, nil
		}
		if err == nil {
			err = fmt.Errorf("handler %s returned no draft", h.ID())
		}
		lastErr = err
		r.recordResult(category, false)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < r.cfg.MaxAttempts-1 {
			r.sleep(r.cfg.BaseDelay*time.Duration(1<<attempt) + r.jitter(r.cfg.BaseDelay))
		}
	}

	r.markUnhealthy(category)
	return nil, fmt.Errorf("dispatch %q failed after %d attempts: %w", category, r.cfg.MaxAttempts, lastErr)
}

// Restart reinitializes an unhealthy handler's internal state and clears
// its unhealthy flag. The registration itself is untouched.
func (r *Registry) Restart(category string) error {
	r.mu.Lock()
	h, ok := r.handlers[category]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnregisteredHandler, category)
	}
	if hl, ok := r.health[category]; ok {
		hl.Status = StatusHealthy
	}
	r.mu.Unlock()

	h.Reset()
	slog.Info("Handler restarted", "category", category, "handler", h.ID())
	return nil
}

// Health returns a copy of the category's health record.
func (r *Registry) Health(category string) (Health, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hl, ok := r.health[category]
	if !ok {
		return Health{}, false
	}
	return cloneHealth(hl), true
}

// AllHealth returns copies of every category's health record.
func (r *Registry) AllHealth() []Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Health, 0, len(r.health))
	for _, hl := range r.health {
		out = append(out, cloneHealth(hl))
	}
	return out
}

func (r *Registry) recordResult(category string, success bool) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	hl, ok := r.health[category]
	if !ok {
		hl = &Health{Category: category, Status: StatusHealthy}
		r.health[category] = hl
	}
	hl.TotalRequests++
	if success {
		hl.SuccessCount++
		hl.LastSuccessAt = &now
		hl.Status = StatusHealthy
	} else {
		hl.FailureCount++
		hl.LastFailureAt = &now
	}
}

func (r *Registry) markUnhealthy(category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hl, ok := r.health[category]; ok {
		hl.Status = StatusUnhealthy
	}
	slog.Warn("Handler marked unhealthy", "category", category, "attempts", r.cfg.MaxAttempts)
}

func cloneHealth(in *Health) Health {
	out := *in
	if in.LastSuccessAt != nil {
		t := *in.LastSuccessAt
		out.LastSuccessAt = &t
	}
	if in.LastFailureAt != nil {
		t := *in.LastFailureAt
		out.LastFailureAt = &t
	}
	return out
}
