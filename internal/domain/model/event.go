// Package model contains domain models passed between layers.
package model

import "time"

// UnknownVenueID is the canonical venue id of an unresolved reference.
const UnknownVenueID = "unknown"

// RawEventRow is one as-fetched feed record after column alias resolution.
// Every field is optional at this stage; the validator decides what is required.
type RawEventRow struct {
	EventID         string `json:"event_id,omitempty"`
	Title           string `json:"title,omitempty"`
	StartDatetime   string `json:"start_datetime,omitempty"`
	EndDatetime     string `json:"end_datetime,omitempty"`
	VenueID         string `json:"venue_id,omitempty"`
	VenueName       string `json:"venue_name,omitempty"`
	SourceName      string `json:"source_name,omitempty"`
	Category        string `json:"category,omitempty"`
	Tags            string `json:"tags,omitempty"`
	PriceMin        string `json:"price_min,omitempty"`
	PriceMax        string `json:"price_max,omitempty"`
	Currency        string `json:"currency,omitempty"`
	Status          string `json:"status,omitempty"`
	TicketURL       string `json:"ticket_url,omitempty"`
	PrimaryImageURL string `json:"primary_image_url,omitempty"`
	Promoter        string `json:"promoter,omitempty"`
	Description     string `json:"description,omitempty"`
	Latitude        string `json:"latitude,omitempty"`
	Longitude       string `json:"longitude,omitempty"`

	// Extra keeps columns the schema does not declare.
	Extra map[string]string `json:"extra,omitempty"`

	// Feed is the name of the feed the row came from; Line is its 1-based
	// record number within that feed (header excluded).
	Feed string `json:"feed,omitempty"`
	Line int    `json:"line,omitempty"`
}

// SourceLabel returns the label recorded in an event's sources ledger.
func (r *RawEventRow) SourceLabel() string {
	if r.SourceName != "" {
		return r.SourceName
	}
	return r.Feed
}

// Event is the canonical, de-duplicated catalog record.
type Event struct {
	EventID         string     `json:"event_id"`
	Title           string     `json:"title"`
	StartAt         time.Time  `json:"start_datetime"`
	EndAt           *time.Time `json:"end_datetime,omitempty"`
	VenueID         string     `json:"venue_id"`
	VenueName       string     `json:"venue_name"`
	VenueMatchedBy  string     `json:"venue_matched_by"`
	Category        string     `json:"category,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	PriceMin        *float64   `json:"price_min,omitempty"`
	PriceMax        *float64   `json:"price_max,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Status          string     `json:"status"`
	TicketURL       string     `json:"ticket_url,omitempty"`
	PrimaryImageURL string     `json:"primary_image_url,omitempty"`
	Promoter        string     `json:"promoter,omitempty"`
	Description     string     `json:"description,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`

	Fingerprint string `json:"fingerprint"`

	// Ledger fields.
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	ChangedAt   time.Time `json:"changed_at"`
	ChangeHash  string    `json:"change_hash"`
	SourceCount int       `json:"source_count"`
	Sources     []string  `json:"sources"`
}

// Result is the terminal output of one ingestion pass.
type Result struct {
	PassID      string          `json:"pass_id"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Events      []Event         `json:"events"`
	Quarantined []Quarantined   `json:"quarantined"`
	Stats       *IngestionStats `json:"stats"`
}
