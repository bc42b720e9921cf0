// Package dedupe merges repeated observations of one real-world event into a
// single canonical record with an audit ledger.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/validate"
	"github.com/okian/catalog/internal/domain/venue"
)

// Label recorded when a row carries neither a source name nor a feed name.
const unlabelled = "unknown"

// Observation is one validated, resolved and fingerprinted row.
type Observation struct {
	Record      validate.Record
	Venue       venue.Resolved
	Fingerprint string
	SourceLabel string
}

// Ledger holds the canonical events of one ingestion pass keyed by
// fingerprint. Events keep first-observation order.
type Ledger struct {
	mu     sync.RWMutex
	events map[string]*model.Event
	order  []string
	now    func() time.Time
	merged atomic.Int64
}

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithClock sets the time source used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates an empty Ledger with configuration options.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		events: make(map[string]*model.Event),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Observe merges obs into the ledger. It returns the resulting event and
// whether obs matched an event already present.
func (l *Ledger) Observe(obs Observation) (model.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, found := l.events[obs.Fingerprint]
	ev := Merge(existing, obs, l.now())
	if found {
		l.merged.Add(1)
	} else {
		l.order = append(l.order, obs.Fingerprint)
	}
	l.events[obs.Fingerprint] = &ev
	return clone(ev), found
}

// Events returns a snapshot of the canonical events in first-seen order.
func (l *Ledger) Events() []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.Event, 0, len(l.order))
	for _, fp := range l.order {
		out = append(out, clone(*l.events[fp]))
	}
	return out
}

// DuplicatesMerged returns how many observations matched an existing event.
func (l *Ledger) DuplicatesMerged() int64 {
	return l.merged.Load()
}

// Size returns the number of canonical events.
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Merge folds obs into existing and returns the new event value; existing
// is not modified. A nil existing creates a fresh event. Display fields are
// overwritten only when the change hash differs. The source list holds each
// label once, so merging the same observation twice is a no-op apart from
// last_seen_at.
func Merge(existing *model.Event, obs Observation, now time.Time) model.Event {
	label := strings.TrimSpace(obs.SourceLabel)
	if label == "" {
		label = unlabelled
	}
	hash := ChangeHash(obs)

	if existing == nil {
		ev := model.Event{
			EventID:     obs.Record.EventID,
			Fingerprint: obs.Fingerprint,
			FirstSeenAt: now,
			LastSeenAt:  now,
			ChangedAt:   now,
			ChangeHash:  hash,
			SourceCount: 1,
			Sources:     []string{label},
		}
		applyDisplay(&ev, obs)
		return ev
	}

	ev := clone(*existing)
	if hash != ev.ChangeHash {
		applyDisplay(&ev, obs)
		ev.ChangeHash = hash
		ev.ChangedAt = now
	}
	if now.After(ev.LastSeenAt) {
		ev.LastSeenAt = now
	}
	if !slices.Contains(ev.Sources, label) {
		ev.Sources = append(ev.Sources, label)
	}
	ev.SourceCount = len(ev.Sources)
	return ev
}

// ChangeHash hashes the core fields of obs: title, start and end times,
// venue, price range and status. Instants are compared in UTC so one moment
// stated in two offsets hashes the same.
func ChangeHash(obs Observation) string {
	rec := obs.Record
	parts := []string{
		rec.Title,
		rec.StartAt.UTC().Format(time.RFC3339Nano),
		formatTime(rec.EndAt),
		obs.Venue.VenueID,
		formatFloat(rec.PriceMin),
		formatFloat(rec.PriceMax),
		rec.Status,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func applyDisplay(ev *model.Event, obs Observation) {
	rec := obs.Record
	ev.Title = rec.Title
	ev.StartAt = rec.StartAt
	ev.EndAt = rec.EndAt
	ev.VenueID = obs.Venue.VenueID
	ev.VenueName = obs.Venue.VenueName
	ev.VenueMatchedBy = string(obs.Venue.MatchedBy)
	ev.Category = rec.Category
	ev.Tags = append([]string(nil), rec.Tags...)
	ev.PriceMin = rec.PriceMin
	ev.PriceMax = rec.PriceMax
	ev.Currency = rec.Currency
	ev.Status = rec.Status
	ev.TicketURL = strings.TrimSpace(rec.Row.TicketURL)
	ev.PrimaryImageURL = strings.TrimSpace(rec.Row.PrimaryImageURL)
	ev.Promoter = strings.TrimSpace(rec.Row.Promoter)
	ev.Description = strings.TrimSpace(rec.Row.Description)
	ev.Latitude = rec.Latitude
	ev.Longitude = rec.Longitude
}

// clone copies the slice fields so callers cannot mutate ledger state.
func clone(ev model.Event) model.Event {
	ev.Sources = append([]string(nil), ev.Sources...)
	if ev.Tags != nil {
		ev.Tags = append([]string(nil), ev.Tags...)
	}
	return ev
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
