package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Errors returned by Pool.Generate.
var (
	ErrNoProviders        = errors.New("no enabled providers configured")
	ErrAllProvidersFailed = errors.New("all providers failed")
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryAttempts = 2
	retryBaseDelay       = 200 * time.Millisecond
	retryMaxJitter       = 100 * time.Millisecond
)

type poolEntry struct {
	cfg    Config
	client LLMProvider
}

// Pool executes generation requests against an ordered provider list with
// bounded per-provider retries and circular failover. The active index is
// sticky: once the pool fails over, subsequent calls start on the new
// provider until it too is exhausted.
type Pool struct {
	mu      sync.Mutex
	entries []poolEntry
	current int
	sleep   func(time.Duration)
	jitter  func(time.Duration) time.Duration
}

// NewPool builds a Pool from provider configs, constructing an
// OpenAI-compatible client per enabled entry. Entries are ordered by
// ascending priority; disabled entries are skipped.
func NewPool(configs []Config) (*Pool, error) {
	return NewPoolWithFactory(configs, func(cfg Config) LLMProvider {
		return NewOpenAIProvider(cfg.APIKey, cfg.Endpoint, cfg.Model)
	})
}

// NewPoolWithFactory is NewPool with an injected client constructor,
// used by tests to substitute fake providers.
func NewPoolWithFactory(configs []Config, factory func(Config) LLMProvider) (*Pool, error) {
	ordered := make([]Config, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			ordered = append(ordered, cfg)
		}
	}
	if len(ordered) == 0 {
		return nil, ErrNoProviders
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	p := &Pool{
		sleep: time.Sleep,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
	for _, cfg := range ordered {
		if cfg.Timeout <= 0 {
			cfg.Timeout = defaultTimeout
		}
		if cfg.RetryAttempts <= 0 {
			cfg.RetryAttempts = defaultRetryAttempts
		}
		p.entries = append(p.entries, poolEntry{cfg: cfg, client: factory(cfg)})
	}
	return p, nil
}

// Providers returns the names of the enabled providers in pool order.
func (p *Pool) Providers() []string {
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.cfg.Name
	}
	return out
}

// CurrentProvider returns the name of the currently active provider.
func (p *Pool) CurrentProvider() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[p.current].cfg.Name
}

// SetDefault makes the named provider the initially active one. Reports
// whether the name matched an enabled entry.
func (p *Pool) SetDefault(name string) bool {
	for i, e := range p.entries {
		if e.cfg.Name == name {
			p.setCurrent(i)
			return true
		}
	}
	return false
}

func (p *Pool) setCurrent(idx int) {
	p.mu.Lock()
	if idx >= 0 && idx < len(p.entries) {
		p.current = idx
	}
	p.mu.Unlock()
}

// Generate runs the prompt against the pool, starting at the sticky active
// provider. Each provider gets up to its configured retry attempts with
// exponential backoff and jitter; on exhaustion the pool advances to the
// next enabled provider, wrapping once. After one full pass without
// success it returns ErrAllProvidersFailed. Worst case is the sum of all
// configured retry attempts, never an unbounded spin.
func (p *Pool) Generate(ctx context.Context, systemPrompt, prompt string) (text string, providerName string, err error) {
	p.mu.Lock()
	start := p.current
	n := len(p.entries)
	p.mu.Unlock()
	if n == 0 {
		return "", "", ErrNoProviders
	}

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		entry := p.entries[idx]

		out, attemptErr := p.tryProvider(ctx, entry, systemPrompt, prompt)
		if attemptErr == nil {
			p.setCurrent(idx)
			return out, entry.cfg.Name, nil
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}

		next := (idx + 1) % n
		slog.Warn("Provider exhausted, failing over",
			"provider", entry.cfg.Name,
			"attempts", entry.cfg.RetryAttempts,
			"next", p.entries[next].cfg.Name,
			"error", attemptErr)
		p.setCurrent(next)
	}
	return "", "", ErrAllProvidersFailed
}

// tryProvider runs the bounded retry loop for one provider.
func (p *Pool) tryProvider(ctx context.Context, entry poolEntry, systemPrompt, prompt string) (string, error) {
	req := &ChatRequest{
		Model:       entry.cfg.Model,
		MaxTokens:   entry.cfg.MaxTokens,
		Temperature: entry.cfg.Temperature,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	var lastErr error
	for attempt := 0; attempt < entry.cfg.RetryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, entry.cfg.Timeout)
		resp, err := entry.client.Chat(callCtx, req)
		cancel()
		if err == nil && resp != nil && resp.Content != "" {
			return resp.Content, nil
		}
		if err == nil {
			err = fmt.Errorf("empty completion from %s", entry.cfg.Name)
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < entry.cfg.RetryAttempts-1 {
			p.sleep(retryBaseDelay*time.Duration(1<<attempt) + p.jitter(retryMaxJitter))
		}
	}
	return "", lastErr
}
