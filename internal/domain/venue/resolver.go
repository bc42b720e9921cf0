package venue

import (
	"strings"

	"github.com/okian/catalog/internal/domain/model"
	"github.com/okian/catalog/internal/domain/normalize"
)

// Resolution is the outcome of resolving one venue reference. It is either
// Resolved or Unresolved; callers type-switch on it.
type Resolution interface {
	// CanonicalID is the venue id an event should carry.
	CanonicalID() string
	sealed()
}

// Resolved means the reference matched an index entry.
type Resolved struct {
	VenueID   string
	VenueName string
	MatchedBy KeyKind
}

// CanonicalID returns the matched venue id.
func (r Resolved) CanonicalID() string { return r.VenueID }

func (Resolved) sealed() {}

// Unresolved means no index entry matched. RawName keeps the best raw label
// for manual review.
type Unresolved struct {
	RawName string
}

// CanonicalID returns the "unknown" sentinel.
func (Unresolved) CanonicalID() string { return model.UnknownVenueID }

func (Unresolved) sealed() {}

// Reference is a raw venue reference as it appears on an event row.
type Reference struct {
	VenueID    string
	VenueName  string
	SourceName string
}

// Resolve maps ref to a canonical venue. First hit wins:
//  1. venue id present in ByID
//  2. handle of source name (or venue name when there is no source name) in ByHandle
//  3. normalized venue name in ByName, then in ByAlias
//
// Otherwise the reference is Unresolved. There is no partial matching.
func (i *Index) Resolve(ref Reference) Resolution {
	if i == nil {
		return Unresolved{RawName: rawLabel(ref)}
	}

	if id := strings.TrimSpace(ref.VenueID); id != "" {
		if v, ok := i.ByID[id]; ok {
			return Resolved{VenueID: v.VenueID, VenueName: v.Name, MatchedBy: KeyID}
		}
	}

	handleSource := ref.SourceName
	if strings.TrimSpace(handleSource) == "" {
		handleSource = ref.VenueName
	}
	if h := normalize.Handle(handleSource); h != "" {
		if id, ok := i.ByHandle[h]; ok {
			return i.resolved(id, KeyHandle)
		}
	}

	if name := normalize.Text(ref.VenueName); name != "" {
		if id, ok := i.ByName[name]; ok {
			return i.resolved(id, KeyName)
		}
		if id, ok := i.ByAlias[name]; ok {
			return i.resolved(id, KeyAlias)
		}
	}

	return Unresolved{RawName: rawLabel(ref)}
}

func (i *Index) resolved(id string, by KeyKind) Resolution {
	return Resolved{VenueID: id, VenueName: i.ByID[id].Name, MatchedBy: by}
}

func rawLabel(ref Reference) string {
	if name := strings.TrimSpace(ref.VenueName); name != "" {
		return name
	}
	if id := strings.TrimSpace(ref.VenueID); id != "" {
		return id
	}
	return model.UnknownVenueID
}
