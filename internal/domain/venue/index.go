// Package venue builds the multi-key venue index and resolves noisy venue
// references against it.
package venue

import (
	"regexp"
	"strings"

	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/normalize"
)

// KeyKind names one of the index mappings.
type KeyKind string

// Index mappings.
const (
	KeyID     KeyKind = "id"
	KeyName   KeyKind = "name"
	KeyAlias  KeyKind = "alias"
	KeyHandle KeyKind = "handle"
)

// Collision describes a key claimed by two different venues. The later venue
// keeps the key.
type Collision struct {
	Kind       KeyKind
	Key        string
	PreviousID string
	VenueID    string
}

// Index is the per-pass lookup structure. Each mapping has its own key rule:
//   - ByID: trimmed venue_id
//   - ByName: normalize.Text of name and of slug
//   - ByAlias: normalize.Text of every alias
//   - ByHandle: normalize.Handle of instagram_handle and of the handle found
//     in instagram_url
//
// An Index is never mutated after BuildIndex returns.
type Index struct {
	ByID     map[string]model.Venue
	ByName   map[string]string
	ByAlias  map[string]string
	ByHandle map[string]string
}

// BuildOption configures BuildIndex.
type BuildOption func(*builder)

// WithCollisionHandler registers fn to observe key collisions.
func WithCollisionHandler(fn func(Collision)) BuildOption {
	return func(b *builder) {
		if fn != nil {
			b.onCollision = fn
		}
	}
}

type builder struct {
	idx         *Index
	onCollision func(Collision)
}

// instagramPath captures the first path segment after instagram.com/.
var instagramPath = regexp.MustCompile(`(?i)instagram\.com/([A-Za-z0-9._]+)`)

// Path segments on instagram.com that are not profiles.
var instagramReserved = map[string]struct{}{
	"p": {}, "reel": {}, "reels": {}, "explore": {}, "stories": {}, "accounts": {}, "tv": {},
}

// HandleFromURL extracts a normalized profile handle from an Instagram URL.
// It returns "" when the URL holds no profile segment.
func HandleFromURL(rawURL string) string {
	m := instagramPath.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	h := normalize.Handle(m[1])
	if _, reserved := instagramReserved[h]; reserved {
		return ""
	}
	return h
}

// BuildIndex builds an Index from venues. Later venues overwrite earlier
// ones on key collision. Venues with an empty id or name are ignored, so
// every indexed venue was at least inserted under its own name.
func BuildIndex(venues []model.Venue, opts ...BuildOption) *Index {
	b := &builder{
		idx: &Index{
			ByID:     make(map[string]model.Venue, len(venues)),
			ByName:   make(map[string]string, len(venues)*2),
			ByAlias:  make(map[string]string, len(venues)),
			ByHandle: make(map[string]string, len(venues)),
		},
		onCollision: func(Collision) {},
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, v := range venues {
		id := strings.TrimSpace(v.VenueID)
		if id == "" || normalize.Text(v.Name) == "" {
			continue
		}
		v.VenueID = id
		if _, exists := b.idx.ByID[id]; exists {
			b.onCollision(Collision{Kind: KeyID, Key: id, PreviousID: id, VenueID: id})
		}
		b.idx.ByID[id] = v

		b.put(b.idx.ByName, KeyName, normalize.Text(v.Name), id)
		b.put(b.idx.ByName, KeyName, normalize.Text(v.Slug), id)
		for _, alias := range v.Aliases {
			b.put(b.idx.ByAlias, KeyAlias, normalize.Text(alias), id)
		}
		b.put(b.idx.ByHandle, KeyHandle, normalize.Handle(v.InstagramHandle), id)
		b.put(b.idx.ByHandle, KeyHandle, HandleFromURL(v.InstagramURL), id)
	}
	return b.idx
}

func (b *builder) put(m map[string]string, kind KeyKind, key, id string) {
	if key == "" {
		return
	}
	if prev, exists := m[key]; exists && prev != id {
		b.onCollision(Collision{Kind: kind, Key: key, PreviousID: prev, VenueID: id})
	}
	m[key] = id
}

// Len returns the number of venues in the index.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.ByID)
}
