package venue

import (
	"strings"
)

// Stage names the matching step that produced a venue key.
type Stage string

const (
	StageVenueID     Stage = "venue_id"
	StageSlugExact   Stage = "slug_exact"
	StageSlugPrefix  Stage = "slug_prefix"
	StageHandleExact Stage = "handle_exact"
	StageHandleFuzzy Stage = "handle_fuzzy"
	StageNameSlug    Stage = "name_slug"
	StageFallback    Stage = "fallback"
	StageNone        Stage = "none"
)

// minPrefixLen is the shortest slug or handle allowed to match by prefix.
const minPrefixLen = 3

// Query is what an event row says about its venue.
type Query struct {
	VenueID string
	Name    string
	Handle  string
	Address string
}

// Match is the outcome of resolving a Query.
type Match struct {
	Key   string
	Stage Stage
}

// Resolver maps loose venue references to canonical keys. It only reads
// its registry and is safe for concurrent use.
type Resolver struct {
	reg *Registry
}

// NewResolver returns a Resolver over reg. A nil registry matches nothing,
// so every query falls through to its fallback key.
func NewResolver(reg *Registry) *Resolver {
	if reg == nil {
		reg = NewRegistry(nil)
	}
	return &Resolver{reg: reg}
}

// Resolve runs the matching stages in order; the first stage with a
// candidate wins. Within a stage the longest common prefix wins, then the
// highest Priority, then registry order.
func (r *Resolver) Resolve(q Query) Match {
	if id := strings.TrimSpace(q.VenueID); id != "" && !strings.EqualFold(id, "unknown") {
		return Match{Key: id, Stage: StageVenueID}
	}

	slug := Slugify(q.Name)
	handle := NormalizeHandle(q.Handle)
	handleNoDot := stripDots(handle)

	if slug != "" {
		if e, ok := r.best(func(e *entry) (int, bool) {
			return len(slug), e.Key == slug
		}); ok {
			return Match{Key: e.Key, Stage: StageSlugExact}
		}
		if len(slug) >= minPrefixLen {
			if e, ok := r.best(func(e *entry) (int, bool) {
				return len(slug), strings.HasPrefix(e.Key, slug)
			}); ok {
				return Match{Key: e.Key, Stage: StageSlugPrefix}
			}
		}
	}

	if handle != "" {
		if e, ok := r.best(func(e *entry) (int, bool) {
			return len(handle), e.handle != "" && e.handle == handle
		}); ok {
			return Match{Key: e.Key, Stage: StageHandleExact}
		}
		if e, ok := r.best(func(e *entry) (int, bool) {
			return handlePrefixMatch(handleNoDot, e.handleNoDot)
		}); ok {
			return Match{Key: e.Key, Stage: StageHandleFuzzy}
		}
	}

	if slug != "" {
		if e, ok := r.best(func(e *entry) (int, bool) {
			for _, s := range e.nameSlugs {
				if s == slug {
					return len(slug), true
				}
			}
			return 0, false
		}); ok {
			return Match{Key: e.Key, Stage: StageNameSlug}
		}
	}

	if key := FallbackKey(q.Name, q.Address); key != "" {
		return Match{Key: key, Stage: StageFallback}
	}
	// A handle is the only identifying field left.
	if handle != "" {
		return Match{Key: handle, Stage: StageFallback}
	}
	return Match{Stage: StageNone}
}

// handlePrefixMatch reports whether two dot-stripped handles are equal or
// one is a prefix (of at least minPrefixLen) of the other, and the length
// of the shared prefix.
func handlePrefixMatch(a, b string) (int, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	if a == b {
		return len(a), true
	}
	if len(a) >= minPrefixLen && strings.HasPrefix(b, a) {
		return len(a), true
	}
	if len(b) >= minPrefixLen && strings.HasPrefix(a, b) {
		return len(b), true
	}
	return 0, false
}

// best scans the registry for matching entries and returns the winner.
// match returns the common prefix length (higher is better) and whether e
// matches.
func (r *Resolver) best(match func(e *entry) (int, bool)) (*entry, bool) {
	var (
		winner  *entry
		bestLen int
	)
	for i := range r.reg.entries {
		e := &r.reg.entries[i]
		n, ok := match(e)
		if !ok {
			continue
		}
		switch {
		case winner == nil:
		case n > bestLen:
		case n == bestLen && e.Priority > winner.Priority:
		default:
			continue
		}
		winner, bestLen = e, n
	}
	return winner, winner != nil
}
