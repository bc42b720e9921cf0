package feed

import "strings"

// Schema declares a feed's current column names and the legacy names that
// map onto them.
type Schema struct {
	Columns []string
	Legacy  map[string]string
}

// EventSchema is the column layout of event feeds.
var EventSchema = Schema{
	Columns: []string{
		"event_id", "title", "start_datetime", "end_datetime", "venue_id", "venue_name",
		"source_name", "category", "tags", "price_min", "price_max", "currency", "status",
		"ticket_url", "primary_image_url", "promoter", "description", "latitude", "longitude",
	},
	Legacy: map[string]string{
		"id":        "event_id",
		"image_url": "primary_image_url",
		"lat":       "latitude",
		"lng":       "longitude",
		"start":     "start_datetime",
		"end":       "end_datetime",
		"venue":     "venue_name",
		"source":    "source_name",
	},
}

// VenueSchema is the column layout of venue feeds.
var VenueSchema = Schema{
	Columns: []string{
		"venue_id", "name", "slug", "aliases", "instagram_handle", "instagram_url",
		"address", "city", "country", "latitude", "longitude", "tags", "active",
	},
	Legacy: map[string]string{
		"venue_name": "name",
		"id":         "venue_id",
		"instagram":  "instagram_handle",
		"lat":        "latitude",
		"lng":        "longitude",
	},
}

// Resolve maps each header column to its canonical name. Each canonical
// name is assigned once; a current column wins over a legacy one. Unknown
// and shadowed columns keep their lowercased name and the second result
// reports whether the column is declared by the schema.
func (s Schema) Resolve(header []string) (names []string, known []bool) {
	current := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		current[c] = struct{}{}
	}
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[columnKey(h)] = struct{}{}
	}

	names = make([]string, len(header))
	known = make([]bool, len(header))
	assigned := make(map[string]struct{}, len(header))
	for i, h := range header {
		key := columnKey(h)
		names[i] = key

		target := ""
		if _, ok := current[key]; ok {
			target = key
		} else if to, ok := s.Legacy[key]; ok {
			if _, shadowed := present[to]; !shadowed {
				target = to
			}
		}
		if target == "" {
			continue
		}
		if _, dup := assigned[target]; dup {
			continue
		}
		assigned[target] = struct{}{}
		names[i] = target
		known[i] = true
	}
	return names, known
}

func columnKey(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
