package model

// Venue is a canonical venue record, immutable for the duration of a pass.
type Venue struct {
	VenueID         string   `json:"venue_id"`
	Name            string   `json:"name"`
	Slug            string   `json:"slug,omitempty"`
	Aliases         []string `json:"aliases,omitempty"`
	InstagramHandle string   `json:"instagram_handle,omitempty"`
	InstagramURL    string   `json:"instagram_url,omitempty"`
	Address         string   `json:"address,omitempty"`
	City            string   `json:"city,omitempty"`
	Country         string   `json:"country,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}
