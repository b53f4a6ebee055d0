// Package config defines the engine configuration and its loading rules.
package config

import (
	"time"

	"github.com/pawdiary/pawdiary/internal/intake"
	"github.com/pawdiary/pawdiary/internal/provider"
	"github.com/pawdiary/pawdiary/internal/quota"
	"github.com/pawdiary/pawdiary/internal/registry"
)

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	Home      string `json:"home" envconfig:"HOME"`
	JournalDB string `json:"journalDb" envconfig:"JOURNAL_DB"`
}

// GatewayConfig holds the admin HTTP listener settings.
type GatewayConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"ENABLED"`
	Host     string `json:"host" envconfig:"HOST"`
	Port     int    `json:"port" envconfig:"PORT"`
	APIToken string `json:"apiToken" envconfig:"API_TOKEN"`
}

// EngineConfig holds router worker settings.
type EngineConfig struct {
	Workers int `json:"workers" envconfig:"WORKERS"`
}

// ClaimedPair names one (category, name) event that must always produce
// an entry.
type ClaimedPair struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

// Config is the root configuration.
type Config struct {
	Paths           PathsConfig             `json:"paths"`
	Quota           quota.Config            `json:"quota"`
	Dispatch        registry.Config         `json:"dispatch"`
	Providers       []provider.Config       `json:"providers"`
	DefaultProvider string                  `json:"defaultProvider,omitempty"`
	Intake          intake.Config           `json:"intake"`
	Gateway         GatewayConfig           `json:"gateway"`
	Engine          EngineConfig            `json:"engine"`
	Categories      []registry.CategorySpec `json:"categories"`
	Claimed         []ClaimedPair           `json:"claimed,omitempty"`
}

// DefaultConfig returns the configuration defaults, including the stock
// category universe.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Home:      "~/.pawdiary",
			JournalDB: "~/.pawdiary/journal.db",
		},
		Quota:    quota.DefaultConfig(),
		Dispatch: registry.DefaultConfig(),
		Providers: []provider.Config{
			{
				Name:          "openai",
				Endpoint:      "https://api.openai.com/v1",
				Model:         "gpt-4o-mini",
				MaxTokens:     120,
				Temperature:   0.9,
				Timeout:       30 * time.Second,
				RetryAttempts: 2,
				Priority:      0,
				Enabled:       true,
			},
		},
		DefaultProvider: "openai",
		Intake:          intake.DefaultConfig(),
		Gateway: GatewayConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8990,
		},
		Engine:     EngineConfig{Workers: 4},
		Categories: defaultCategories(),
		Claimed: []ClaimedPair{
			{Category: "keepsake", Name: "birthday"},
			{Category: "keepsake", Name: "adoption_day"},
		},
	}
}

// defaultCategories is the stock category → event-name universe. Deployments
// replace or extend it in the config file.
func defaultCategories() []registry.CategorySpec {
	return []registry.CategorySpec{
		{
			Category:     "weather",
			Names:        []string{"rain_started", "rain_stopped", "sunny_morning", "snow_started", "storm_warning"},
			Title:        "weather",
			EmotionHints: []string{"curious", "calm"},
		},
		{
			Category:     "social",
			Names:        []string{"friend_visit", "friend_left", "new_friend"},
			Title:        "friend",
			EmotionHints: []string{"happy", "excited", "loved"},
		},
		{
			Category:     "play",
			Names:        []string{"fetch_session", "tug_of_war", "new_toy"},
			Title:        "play",
			EmotionHints: []string{"excited", "happy"},
		},
		{
			Category:     "meal",
			Names:        []string{"breakfast", "dinner", "treat_time"},
			Title:        "food",
			EmotionHints: []string{"happy", "grumpy"},
		},
		{
			Category:     "nap",
			Names:        []string{"nap_started", "long_sleep", "woke_up_early"},
			Title:        "zzz",
			EmotionHints: []string{"sleepy", "calm"},
		},
		{
			Category:     "keepsake",
			Names:        []string{"birthday", "adoption_day", "first_walk"},
			Title:        "keepsake",
			EmotionHints: []string{"loved", "proud", "surprised"},
		},
	}
}

// CategoryUniverse flattens the category specs into the catalog mapping.
func (c *Config) CategoryUniverse() map[string][]string {
	out := make(map[string][]string, len(c.Categories))
	for _, spec := range c.Categories {
		out[spec.Category] = spec.Names
	}
	return out
}

// ClaimedPairs returns the claimed set in pair form.
func (c *Config) ClaimedPairs() [][2]string {
	out := make([][2]string, 0, len(c.Claimed))
	for _, p := range c.Claimed {
		out = append(out, [2]string{p.Category, p.Name})
	}
	return out
}
