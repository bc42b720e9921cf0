package feed

import (
	"context"
	"fmt"

	"github.com/okian/catalog/internal/domain/model"
)

// EventFeed is one named source of event rows.
type EventFeed struct {
	Name    string
	Fetcher Fetcher
	Format  Format
}

// Rows fetches and decodes the feed. Each row is stamped with the feed name
// and its 1-based record number.
func (f EventFeed) Rows(ctx context.Context) ([]model.RawEventRow, error) {
	table, err := fetchTable(ctx, f.Fetcher, f.Format)
	if err != nil {
		return nil, err
	}
	names, known := EventSchema.Resolve(table.Header)

	rows := make([]model.RawEventRow, 0, len(table.Records))
	for n, rec := range table.Records {
		row := model.RawEventRow{Feed: f.Name, Line: n + 1}
		for i, name := range names {
			if i >= len(rec) {
				break
			}
			if known[i] {
				setEventField(&row, name, rec[i])
				continue
			}
			if rec[i] == "" || name == "" {
				continue
			}
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[name] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func fetchTable(ctx context.Context, fetcher Fetcher, format Format) (*Table, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher", ErrFetch)
	}
	body, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	table, err := Decode(body, FormatFor(fetcher.Location(), format))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fetcher.Location(), err)
	}
	return table, nil
}

func setEventField(row *model.RawEventRow, name, value string) {
	switch name {
	case "event_id":
		row.EventID = value
	case "title":
		row.Title = value
	case "start_datetime":
		row.StartDatetime = value
	case "end_datetime":
		row.EndDatetime = value
	case "venue_id":
		row.VenueID = value
	case "venue_name":
		row.VenueName = value
	case "source_name":
		row.SourceName = value
	case "category":
		row.Category = value
	case "tags":
		row.Tags = value
	case "price_min":
		row.PriceMin = value
	case "price_max":
		row.PriceMax = value
	case "currency":
		row.Currency = value
	case "status":
		row.Status = value
	case "ticket_url":
		row.TicketURL = value
	case "primary_image_url":
		row.PrimaryImageURL = value
	case "promoter":
		row.Promoter = value
	case "description":
		row.Description = value
	case "latitude":
		row.Latitude = value
	case "longitude":
		row.Longitude = value
	}
}

// FeedName returns the feed name used as the fallback source label.
func (f EventFeed) FeedName() string { return f.Name }
