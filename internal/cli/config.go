// Package cli implements the catalog command-line interface.
package cli

import (
	"context"
	"strings"

	"github.com/okian/catalog/internal/config"
)

// loadConfig loads the layered configuration and applies flag overrides.
func loadConfig(ctx context.Context, venues string, events []string, format string) (*config.Config, error) {
	if _, err := config.LoadEnvFile(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if venues != "" {
		cfg.VenuesURL = venues
		cfg.VenuesFormat = format
	}
	if len(events) > 0 {
		cfg.EventsURL = ""
		cfg.EventFeeds = make([]config.FeedConfig, 0, len(events))
		for _, e := range events {
			fc := parseFeedFlag(e)
			fc.Format = format
			cfg.EventFeeds = append(cfg.EventFeeds, fc)
		}
	}
	return cfg, cfg.Validate()
}

// parseFeedFlag reads "name=location" or a bare location.
func parseFeedFlag(v string) config.FeedConfig {
	name, loc, ok := strings.Cut(v, "=")
	if ok && name != "" && !strings.ContainsAny(name, ":/\\") {
		return config.FeedConfig{Name: strings.TrimSpace(name), URL: strings.TrimSpace(loc)}
	}
	return config.FeedConfig{URL: strings.TrimSpace(v)}
}
