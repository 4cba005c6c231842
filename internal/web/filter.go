package web

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"cityevents/internal/model"
	"cityevents/internal/normalize"
	"cityevents/internal/tags"
)

// eventFilter narrows the event list for API and calendar consumers. Zero
// fields match everything.
type eventFilter struct {
	venue      string
	category   string
	tag        string
	status     model.Status
	collection string
	from       *time.Time
	to         *time.Time
	free       *bool
	limit      int
}

func parseFilter(q url.Values, loc *time.Location) (eventFilter, error) {
	f := eventFilter{
		venue:      strings.TrimSpace(q.Get("venue")),
		category:   tags.CanonicalKey(tags.MergeCategory(q.Get("category"))),
		tag:        tags.CanonicalKey(q.Get("tag")),
		collection: strings.TrimSpace(q.Get("collection")),
		limit:      parseIntDefault(q.Get("limit"), 0),
	}
	if s := q.Get("status"); s != "" {
		f.status = normalize.MapStatus(s)
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.from}, {"to", &f.to}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := normalize.ParseTime(v, loc)
		if err != nil {
			return f, fmt.Errorf("invalid %s: %q", p.name, v)
		}
		*p.dst = &t
	}
	if v := q.Get("free"); v != "" {
		b := normalize.ParseBool(v, false)
		f.free = &b
	}
	return f, nil
}

func (f eventFilter) apply(events []model.Event, collections []model.Collection) []model.Event {
	var members map[string]struct{}
	if f.collection != "" {
		members = map[string]struct{}{}
		for _, c := range collections {
			if c.CollectionID != f.collection && c.Slug != f.collection {
				continue
			}
			for _, id := range c.EventIDs {
				members[id] = struct{}{}
			}
		}
	}

	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if f.limit > 0 && len(out) >= f.limit {
			break
		}
		if f.venue != "" && e.VenueKey != f.venue {
			continue
		}
		if f.category != "" && tags.CanonicalKey(e.Category) != f.category {
			continue
		}
		if f.tag != "" && !hasTag(e.Tags, f.tag) {
			continue
		}
		if f.status != "" && e.Status != f.status {
			continue
		}
		if members != nil {
			if _, ok := members[e.EventID]; !ok {
				continue
			}
		}
		if f.from != nil && e.Start.Before(*f.from) {
			continue
		}
		if f.to != nil && e.Start.After(*f.to) {
			continue
		}
		if f.free != nil && e.IsFree != *f.free {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasTag(values []string, key string) bool {
	for _, v := range values {
		if tags.CanonicalKey(v) == key {
			return true
		}
	}
	return false
}
