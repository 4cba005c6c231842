// Package dedupe collapses rows that describe the same logical event.
package dedupe

import (
	"time"

	"cityevents/internal/model"
)

// FallbackKey is the composite identity used when neither a dedupe key nor
// a shared event id ties two rows together.
func FallbackKey(e model.Event) string {
	return e.Title + "|" + e.Start.UTC().Format(time.RFC3339Nano) + "|" + e.VenueKey
}

// group keeps the current winner for one key and how many rows offered it.
type group struct {
	winner model.Event
	size   int
}

// index is an insertion-ordered map of key to winning event.
type index struct {
	keys   []string
	groups map[string]*group
}

func newIndex(n int) *index {
	return &index{groups: make(map[string]*group, n)}
}

// add offers e for key. e replaces the current winner when its updated_at is
// greater than or equal to the winner's, so the later row wins a tie.
func (x *index) add(key string, e model.Event) {
	g, ok := x.groups[key]
	if !ok {
		x.keys = append(x.keys, key)
		x.groups[key] = &group{winner: e, size: 1}
		return
	}
	g.size++
	if !updatedAt(e).Before(updatedAt(g.winner)) {
		g.winner = e
	}
}

func updatedAt(e model.Event) time.Time {
	if e.UpdatedAt == nil {
		return time.Time{}
	}
	return *e.UpdatedAt
}

// Dedupe returns one event per logical event. Rows sharing a dedupe_key
// collapse to one and are all kept. Rows without one collapse on event_id
// and then on title|start|venue_key; an event_id already taken by a keyed
// row is skipped. No event_id appears twice in the result, and
// Dedupe(Dedupe(x)) equals Dedupe(x).
func Dedupe(events []model.Event) []model.Event {
	byDedupe := newIndex(len(events))
	byID := newIndex(len(events))
	for _, e := range events {
		if e.DedupeKey != "" {
			byDedupe.add(e.DedupeKey, e)
			continue
		}
		byID.add(e.EventID, e)
	}

	out := make([]model.Event, 0, len(byDedupe.keys)+len(byID.keys))
	included := make(map[string]struct{}, cap(out))
	for _, k := range byDedupe.keys {
		w := byDedupe.groups[k].winner
		if _, ok := included[w.EventID]; ok {
			continue
		}
		included[w.EventID] = struct{}{}
		out = append(out, w)
	}

	byFallback := newIndex(len(byID.keys))
	for _, id := range byID.keys {
		if _, ok := included[id]; ok {
			continue
		}
		w := byID.groups[id].winner
		byFallback.add(FallbackKey(w), w)
	}

	for _, id := range byID.keys {
		if _, ok := included[id]; ok {
			continue
		}
		w := byID.groups[id].winner
		if byFallback.groups[FallbackKey(w)].size == 1 {
			included[id] = struct{}{}
			out = append(out, w)
		}
	}
	for _, k := range byFallback.keys {
		g := byFallback.groups[k]
		if g.size == 1 {
			continue
		}
		if _, ok := included[g.winner.EventID]; ok {
			continue
		}
		included[g.winner.EventID] = struct{}{}
		out = append(out, g.winner)
	}
	return out
}
