// Package validate checks raw event rows and normalizes their fields.
//
// Checks run in a fixed order and the first failure wins:
//  1. event id present            -> missing_event_id
//  2. title present               -> missing_title
//  3. start datetime present      -> missing_start_datetime
//  4. start datetime parses       -> invalid_datetime
//  5. remaining fields normalize  -> parse_error
package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/normalize"
)

// Defaults.
const (
	defaultListSeparator = "|"
	defaultStatus        = "scheduled"
)

// Rejection is returned for a row that fails validation. It is a value
// describing the row, not a pipeline failure.
type Rejection struct {
	Reason model.QuarantineReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return string(r.Reason) + ": " + r.Detail
}

func reject(reason model.QuarantineReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the quarantine reason from err. Errors that are not a
// Rejection map to unknown.
func ReasonOf(err error) model.QuarantineReason {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return model.ReasonUnknown
}

// Record is a row that passed validation, with typed and normalized fields.
type Record struct {
	Row model.RawEventRow

	EventID   string
	Title     string
	StartAt   time.Time
	EndAt     *time.Time
	Category  string
	Tags      []string
	PriceMin  *float64
	PriceMax  *float64
	Currency  string
	Status    string
	Latitude  *float64
	Longitude *float64
}

// Validator validates rows. It holds only immutable configuration and is
// safe for concurrent use.
type Validator struct {
	location        *time.Location
	listSeparator   string
	categoryAliases map[string]string
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithLocation sets the timezone used for timestamps without an offset.
func WithLocation(loc *time.Location) Option {
	return func(v *Validator) {
		if loc != nil {
			v.location = loc
		}
	}
}

// WithListSeparator sets the separator for multi-valued cells such as tags.
func WithListSeparator(sep string) Option {
	return func(v *Validator) {
		if sep != "" {
			v.listSeparator = sep
		}
	}
}

// WithCategoryAliases sets the category dictionary. Keys and values are
// normalized; the map is copied so later changes by the caller are not seen.
func WithCategoryAliases(aliases map[string]string) Option {
	return func(v *Validator) {
		v.categoryAliases = make(map[string]string, len(aliases))
		for from, to := range aliases {
			if k := normalize.Text(from); k != "" {
				v.categoryAliases[k] = normalize.Text(to)
			}
		}
	}
}

// New creates a Validator with configuration options.
func New(opts ...Option) *Validator {
	v := &Validator{
		location:        time.UTC,
		listSeparator:   defaultListSeparator,
		categoryAliases: map[string]string{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks row and returns the normalized record. On failure the
// error is a *Rejection carrying exactly one reason.
func (v *Validator) Validate(row model.RawEventRow) (Record, error) {
	eventID := strings.TrimSpace(row.EventID)
	if eventID == "" {
		return Record{}, &Rejection{Reason: model.ReasonMissingEventID}
	}
	title := strings.Join(strings.Fields(row.Title), " ")
	if title == "" {
		return Record{}, &Rejection{Reason: model.ReasonMissingTitle}
	}
	rawStart := strings.TrimSpace(row.StartDatetime)
	if rawStart == "" {
		return Record{}, &Rejection{Reason: model.ReasonMissingStartDatetime}
	}
	startAt, err := ParseDatetime(rawStart, v.location)
	if err != nil {
		return Record{}, reject(model.ReasonInvalidDatetime, "start_datetime %q: %v", rawStart, err)
	}

	rec := Record{
		Row:      row,
		EventID:  eventID,
		Title:    title,
		StartAt:  startAt,
		Currency: strings.ToUpper(strings.TrimSpace(row.Currency)),
	}
	if err := v.normalizeRest(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// normalizeRest normalizes the optional columns; any failure is a parse_error.
func (v *Validator) normalizeRest(rec *Record) error {
	row := &rec.Row

	if raw := strings.TrimSpace(row.EndDatetime); raw != "" {
		endAt, err := ParseDatetime(raw, v.location)
		if err != nil {
			return reject(model.ReasonParseError, "end_datetime %q: %v", raw, err)
		}
		if endAt.Before(rec.StartAt) {
			return reject(model.ReasonParseError, "end_datetime %q precedes start_datetime", raw)
		}
		rec.EndAt = &endAt
	}

	var err error
	if rec.PriceMin, err = parsePrice("price_min", row.PriceMin); err != nil {
		return err
	}
	if rec.PriceMax, err = parsePrice("price_max", row.PriceMax); err != nil {
		return err
	}
	if rec.PriceMin != nil && rec.PriceMax != nil && *rec.PriceMin > *rec.PriceMax {
		return reject(model.ReasonParseError, "price_min %v exceeds price_max %v", *rec.PriceMin, *rec.PriceMax)
	}

	if rec.Latitude, err = parseCoordinate("latitude", row.Latitude, 90); err != nil {
		return err
	}
	if rec.Longitude, err = parseCoordinate("longitude", row.Longitude, 180); err != nil {
		return err
	}

	rec.Tags = SplitList(row.Tags, v.listSeparator)
	rec.Category = v.category(row.Category)
	rec.Status = normalizeStatus(row.Status)
	return nil
}

func (v *Validator) category(raw string) string {
	c := normalize.Text(raw)
	if mapped, ok := v.categoryAliases[c]; ok {
		return mapped
	}
	return c
}

func normalizeStatus(raw string) string {
	s := strings.Join(strings.Fields(strings.ToLower(raw)), "_")
	switch s {
	case "":
		return defaultStatus
	case "canceled":
		return "cancelled"
	case "soldout", "sold-out":
		return "sold_out"
	}
	return s
}

// SplitList splits a multi-valued cell, trimming items and dropping blanks
// and repeats while keeping first-seen order.
func SplitList(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if sep == "" {
		sep = defaultListSeparator
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
