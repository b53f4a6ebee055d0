package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pawdiary/pawdiary/internal/event"
)

// CategorySpec is the per-category configuration that parameterizes the
// generic prompt handler: one dispatch path for every category, no
// per-category subclassing.
type CategorySpec struct {
	Category     string   `json:"category"`
	Names        []string `json:"names"`
	Title        string   `json:"title,omitempty"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Template     string   `json:"template,omitempty"`
	EmotionHints []string `json:"emotionHints,omitempty"`
}

const defaultSystemPrompt = "You are a companion pet writing a one-line diary entry in its own voice. " +
	"Reply with only the entry text, at most 35 characters, no quotes."

const defaultTemplate = "Today this happened: {name} (category: {category}). Context: {context}. " +
	"Write a short first-person diary line about it."

// PromptHandler is the generic handler implementation. Its only mutable
// state is a dispatch counter, reinitialized by Reset.
type PromptHandler struct {
	spec CategorySpec

	mu        sync.Mutex
	dispatchN int
}

// NewPromptHandler creates a handler from its category spec.
func NewPromptHandler(spec CategorySpec) *PromptHandler {
	if strings.TrimSpace(spec.SystemPrompt) == "" {
		spec.SystemPrompt = defaultSystemPrompt
	}
	if strings.TrimSpace(spec.Template) == "" {
		spec.Template = defaultTemplate
	}
	return &PromptHandler{spec: spec}
}

// ID returns the handler identifier.
func (h *PromptHandler) ID() string {
	return "prompt:" + h.spec.Category
}

// Handle renders the category template into a draft.
func (h *PromptHandler) Handle(ctx context.Context, ev *event.Event, contextData map[string]any) (*Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ev.Category != h.spec.Category {
		return nil, fmt.Errorf("handler %s received category %q", h.ID(), ev.Category)
	}

	h.mu.Lock()
	h.dispatchN++
	h.mu.Unlock()

	ctxJSON := "{}"
	if len(contextData) > 0 {
		if data, err := json.Marshal(contextData); err == nil {
			ctxJSON = string(data)
		}
	}

	replacer := strings.NewReplacer(
		"{name}", strings.ReplaceAll(ev.Name, "_", " "),
		"{category}", ev.Category,
		"{context}", ctxJSON,
	)

	title := h.spec.Title
	if title == "" {
		title = ev.Category
	}
	return &Draft{
		Title:        title,
		SystemPrompt: h.spec.SystemPrompt,
		Prompt:       replacer.Replace(h.spec.Template),
		EmotionHints: h.spec.EmotionHints,
	}, nil
}

// Reset clears the handler's internal dispatch state.
func (h *PromptHandler) Reset() {
	h.mu.Lock()
	h.dispatchN = 0
	h.mu.Unlock()
}

// Dispatches reports how many events this handler has rendered since the
// last reset.
func (h *PromptHandler) Dispatches() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dispatchN
}
