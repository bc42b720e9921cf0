package feed

import (
	"context"
	"strconv"
	"strings"

	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/validate"
)

// VenueFeed is the source of venue records.
type VenueFeed struct {
	Fetcher       Fetcher
	Format        Format
	ListSeparator string
}

// VenueSet is a decoded venue feed.
type VenueSet struct {
	Venues []model.Venue
	// Skipped counts rows with no id or name.
	Skipped int
	// Inactive counts rows flagged inactive.
	Inactive int
}

// Venues fetches and decodes the feed. Rows lacking an id or a name are
// skipped, as are rows whose active flag is false.
func (f VenueFeed) Venues(ctx context.Context) (*VenueSet, error) {
	table, err := fetchTable(ctx, f.Fetcher, f.Format)
	if err != nil {
		return nil, err
	}
	names, known := VenueSchema.Resolve(table.Header)

	set := &VenueSet{Venues: make([]model.Venue, 0, len(table.Records))}
	for _, rec := range table.Records {
		cells := make(map[string]string, len(names))
		for i, name := range names {
			if known[i] && i < len(rec) {
				cells[name] = rec[i]
			}
		}
		if inactive(cells["active"]) {
			set.Inactive++
			continue
		}
		v := model.Venue{
			VenueID:         cells["venue_id"],
			Name:            cells["name"],
			Slug:            cells["slug"],
			Aliases:         validate.SplitList(cells["aliases"], f.ListSeparator),
			InstagramHandle: cells["instagram_handle"],
			InstagramURL:    cells["instagram_url"],
			Address:         cells["address"],
			City:            cells["city"],
			Country:         cells["country"],
			Latitude:        optionalFloat(cells["latitude"]),
			Longitude:       optionalFloat(cells["longitude"]),
			Tags:            validate.SplitList(cells["tags"], f.ListSeparator),
		}
		if v.VenueID == "" || v.Name == "" {
			set.Skipped++
			continue
		}
		set.Venues = append(set.Venues, v)
	}
	return set, nil
}

func inactive(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "false", "0", "no", "n":
		return true
	}
	return false
}

// optionalFloat parses a coordinate. Malformed values yield nil.
func optionalFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &f
}
