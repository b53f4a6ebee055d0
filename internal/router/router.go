// Package router runs the full diary pipeline for one event: validate,
// reserve quota, dispatch the handler, generate text, format the entry.
package router

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pawdiary/pawdiary/internal/event"
	"github.com/pawdiary/pawdiary/internal/format"
	"github.com/pawdiary/pawdiary/internal/quota"
	"github.com/pawdiary/pawdiary/internal/registry"
)

// Route outcome statuses.
const (
	StatusGenerated = "generated"
	StatusSkipped   = "skipped"
	StatusError     = "error"
)

// Skip reasons not produced by the quota gate.
const (
	ReasonInvalidEvent    = "invalid_event"
	ReasonUnknownCategory = "unknown_category"
	ReasonUnknownName     = "unknown_name"
	ReasonNoHandler       = "no_handler"
)

// Result is the outcome of routing one event. Detail carries the error
// text for the wire shape; Err keeps the wrapped error for errors.Is.
type Result struct {
	Status string        `json:"status"`
	Entry  *format.Entry `json:"entry,omitempty"`
	Reason string        `json:"reason,omitempty"`
	Detail string        `json:"error,omitempty"`
	Err    error         `json:"-"`
}

func errResult(reason string, err error) *Result {
	return &Result{Status: StatusError, Reason: reason, Detail: err.Error(), Err: err}
}

// Generator turns prompt material into diary text. Satisfied by
// provider.Pool.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (text string, providerName string, err error)
}

// EventRouter wires the pipeline stages together.
type EventRouter struct {
	catalog   *event.Catalog
	gate      *quota.Gate
	registry  *registry.Registry
	generator Generator
	formatter *format.Formatter
}

// New creates an EventRouter over its collaborators.
func New(catalog *event.Catalog, gate *quota.Gate, reg *registry.Registry, gen Generator, fmtr *format.Formatter) *EventRouter {
	return &EventRouter{
		catalog:   catalog,
		gate:      gate,
		registry:  reg,
		generator: gen,
		formatter: fmtr,
	}
}

// Route processes one event end to end.
//
// Classification happens before any quota is charged: invalid or
// unroutable events are skipped without touching the day's budget. Once
// the gate grants a reservation the unit is spent; a downstream dispatch
// or generation failure yields an error result, never a refund.
func (r *EventRouter) Route(ctx context.Context, ev *event.Event) *Result {
	if reason := r.classify(ev); reason != "" {
		slog.Debug("Event skipped before reservation", "reason", reason)
		return &Result{Status: StatusSkipped, Reason: reason}
	}

	decision := r.gate.TryReserve(ev)
	if decision != quota.Granted {
		slog.Info("Event denied by quota gate",
			"event", ev.ID, "category", ev.Category, "reason", decision.Reason())
		return &Result{Status: StatusSkipped, Reason: decision.Reason()}
	}

	handler, err := r.registry.Resolve(ev.Category)
	if err != nil {
		// classify already checked registration; losing it between the two
		// calls still must not crash the route.
		return errResult("dispatch_failed", err)
	}

	draft, err := r.registry.DispatchWithRetry(ctx, ev.Category, ev, ev.ContextData)
	if err != nil {
		slog.Error("Handler dispatch failed after reservation",
			"event", ev.ID, "category", ev.Category, "error", err)
		return errResult("dispatch_failed", err)
	}

	text, providerName, err := r.generator.Generate(ctx, draft.SystemPrompt, draft.Prompt)
	if err != nil {
		// The reservation stays spent: a consumed slot that fails to
		// produce text is not retried against the same slot today.
		slog.Error("Generation failed after reservation",
			"event", ev.ID, "category", ev.Category, "error", err)
		return errResult("generation_failed", err)
	}

	entry := r.formatter.Finalize(ev, draft.Title, text, draft.EmotionHints, handler.ID(), providerName)
	slog.Info("Diary entry generated",
		"entry", entry.EntryID, "category", entry.Category, "provider", providerName)
	return &Result{Status: StatusGenerated, Entry: entry}
}

// Validate runs the structural check alone, with no side effects.
func (r *EventRouter) Validate(ev *event.Event) error {
	return r.catalog.Validate(ev)
}

// classify validates the event against the catalog and handler registry
// before any quota is spent. Returns "" when the event is routable.
func (r *EventRouter) classify(ev *event.Event) string {
	if err := r.catalog.Validate(ev); err != nil {
		switch {
		case errors.Is(err, event.ErrUnknownCategory):
			return ReasonUnknownCategory
		case errors.Is(err, event.ErrUnknownName):
			return ReasonUnknownName
		default:
			return ReasonInvalidEvent
		}
	}
	if _, err := r.registry.Resolve(ev.Category); err != nil {
		return ReasonNoHandler
	}
	return ""
}
