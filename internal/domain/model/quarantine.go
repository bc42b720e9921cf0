package model

// QuarantineReason classifies why a row was excluded from the catalog.
type QuarantineReason string

// Quarantine reasons. Exactly one is assigned per quarantined row.
const (
	ReasonMissingEventID        QuarantineReason = "missing_event_id"
	ReasonMissingTitle          QuarantineReason = "missing_title"
	ReasonMissingStartDatetime  QuarantineReason = "missing_start_datetime"
	ReasonInvalidDatetime       QuarantineReason = "invalid_datetime"
	ReasonVenueResolutionFailed QuarantineReason = "venue_resolution_failed"
	ReasonParseError            QuarantineReason = "parse_error"
	ReasonUnknown               QuarantineReason = "unknown"
)

// AllReasons returns every quarantine reason in declaration order.
func AllReasons() []QuarantineReason {
	return []QuarantineReason{
		ReasonMissingEventID,
		ReasonMissingTitle,
		ReasonMissingStartDatetime,
		ReasonInvalidDatetime,
		ReasonVenueResolutionFailed,
		ReasonParseError,
		ReasonUnknown,
	}
}

// Valid reports whether r is one of the declared reasons.
func (r QuarantineReason) Valid() bool {
	for _, known := range AllReasons() {
		if r == known {
			return true
		}
	}
	return false
}

// Quarantined is a row excluded from the catalog together with its reason.
type Quarantined struct {
	Row    RawEventRow      `json:"row"`
	Reason QuarantineReason `json:"reason"`
	Detail string           `json:"detail,omitempty"`
	// VenueLabel is the raw venue text kept for manual review when the
	// reason is venue_resolution_failed.
	VenueLabel string `json:"venue_label,omitempty"`
}

// IngestionStats summarizes one pass. It is computed fresh on every pass.
type IngestionStats struct {
	TotalRows           int                      `json:"totalRows"`
	LoadedCount         int                      `json:"loadedCount"`
	QuarantinedByReason map[QuarantineReason]int `json:"quarantinedByReason"`
	DuplicatesMerged    int                      `json:"duplicatesMerged"`
}

// NewIngestionStats returns stats with every reason present at zero.
func NewIngestionStats() *IngestionStats {
	byReason := make(map[QuarantineReason]int, len(AllReasons()))
	for _, r := range AllReasons() {
		byReason[r] = 0
	}
	return &IngestionStats{QuarantinedByReason: byReason}
}

// Quarantine records one quarantined row.
func (s *IngestionStats) Quarantine(reason QuarantineReason) {
	if !reason.Valid() {
		reason = ReasonUnknown
	}
	s.QuarantinedByReason[reason]++
}

// QuarantinedTotal sums quarantined rows across all reasons.
func (s *IngestionStats) QuarantinedTotal() int {
	total := 0
	for _, n := range s.QuarantinedByReason {
		total += n
	}
	return total
}
