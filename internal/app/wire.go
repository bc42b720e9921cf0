package service

import (
	"fmt"
	"strings"

	"github.com/okian/catalog/internal/adapters/feed"
	"github.com/okian/catalog/internal/config"
	"github.com/okian/catalog/internal/domain/fingerprint"
	"github.com/okian/catalog/internal/domain/validate"
)

// FromConfig builds a Service from cfg. Feeds are opened but not fetched;
// a missing venue feed surfaces as ErrNoVenueSource on the first pass.
// Options in opts are applied after the configured ones.
func FromConfig(cfg *config.Config, opts ...Option) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var base []Option
	if strings.TrimSpace(cfg.VenuesURL) != "" {
		vf, err := VenueFeedFor(cfg)
		if err != nil {
			return nil, err
		}
		base = append(base, WithVenueSource(vf))
	}

	sources := make([]EventSource, 0, len(cfg.Feeds()))
	for _, fc := range cfg.Feeds() {
		ef, err := eventFeed(cfg, fc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ef)
	}

	base = append(base,
		WithEventSources(sources...),
		WithRowWorkers(cfg.RowWorkers),
		WithPassTimeout(cfg.PassTimeout()),
		WithValidator(validate.New(
			validate.WithLocation(loc),
			validate.WithListSeparator(cfg.ListSeparator),
			validate.WithCategoryAliases(cfg.CategoryAliases),
		)),
		WithFingerprintEngine(fingerprint.New(fingerprint.WithBucketMinutes(cfg.TimeBucketMinutes))),
	)
	return New(append(base, opts...)...), nil
}

// VenueFeedFor opens the venue feed configured in cfg.
func VenueFeedFor(cfg *config.Config) (feed.VenueFeed, error) {
	format, err := feed.ParseFormat(cfg.VenuesFormat)
	if err != nil {
		return feed.VenueFeed{}, fmt.Errorf("venues_format: %w", err)
	}
	fetcher, err := feed.Open(cfg.VenuesURL, httpOptions(cfg)...)
	if err != nil {
		return feed.VenueFeed{}, fmt.Errorf("venues_url: %w", err)
	}
	return feed.VenueFeed{
		Fetcher:       fetcher,
		Format:        feed.FormatFor(cfg.VenuesURL, format),
		ListSeparator: cfg.ListSeparator,
	}, nil
}

func eventFeed(cfg *config.Config, fc config.FeedConfig) (feed.EventFeed, error) {
	format, err := feed.ParseFormat(fc.Format)
	if err != nil {
		return feed.EventFeed{}, fmt.Errorf("feed %s: %w", fc.Name, err)
	}
	fetcher, err := feed.Open(fc.URL, httpOptions(cfg)...)
	if err != nil {
		return feed.EventFeed{}, fmt.Errorf("feed %s: %w", fc.Name, err)
	}
	return feed.EventFeed{
		Name:    fc.Name,
		Fetcher: fetcher,
		Format:  feed.FormatFor(fc.URL, format),
	}, nil
}

func httpOptions(cfg *config.Config) []feed.HTTPOption {
	return []feed.HTTPOption{
		feed.WithTimeout(cfg.FetchTimeout()),
		feed.WithRetries(cfg.FetchRetries),
		feed.WithBackoff(cfg.FetchBackoff()),
	}
}
