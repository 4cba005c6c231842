// Package tags folds tag and category spellings onto one display form per
// canonical key.
package tags

import (
	"strings"
	"unicode/utf8"

	"cityevents/internal/model"
)

// CanonicalKey lowercases s, turns hyphen and underscore runs into spaces,
// collapses whitespace and strips a plural "s" from words longer than four
// letters that do not end in "ss". Irregular plurals are not handled.
func CanonicalKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > 4 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		s = s[:len(s)-1]
	}
	return s
}

// Canonicalize maps every canonical key found in values to its
// representative: the shortest original spelling, preferring one without
// hyphens on a tie, then the first seen.
func Canonicalize(values []string) map[string]string {
	out := make(map[string]string, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := CanonicalKey(v)
		if key == "" {
			continue
		}
		cur, ok := out[key]
		if !ok || better(v, cur) {
			out[key] = v
		}
	}
	return out
}

func better(candidate, current string) bool {
	cl, ol := utf8.RuneCountInString(candidate), utf8.RuneCountInString(current)
	if cl != ol {
		return cl < ol
	}
	return !strings.Contains(candidate, "-") && strings.Contains(current, "-")
}

// categoryMerge folds domain synonyms before generic canonicalization.
// Keys are canonical keys.
var categoryMerge = map[string]string{
	"art":            "art",
	"arts":           "art",
	"visual art":     "art",
	"exhibition":     "art",
	"cinema":         "film",
	"movie":          "film",
	"screening":      "film",
	"theater":        "theatre",
	"stand up":       "comedy",
	"standup":        "comedy",
	"gig":            "music",
	"gigs":           "music",
	"concert":        "music",
	"club":           "nightlife",
	"clubbing":       "nightlife",
	"party":          "nightlife",
	"food and drink": "food & drink",
	"food drink":     "food & drink",
	"kid":            "family",
	"kids":           "family",
	"children":       "family",
}

// MergeCategory applies the category synonym table to one value.
func MergeCategory(s string) string {
	if m, ok := categoryMerge[CanonicalKey(s)]; ok {
		return m
	}
	return strings.TrimSpace(s)
}

// Canonicalizer rewrites event and venue tags to their representatives.
// An empty allow-list accepts every tag.
type Canonicalizer struct {
	eventAllow map[string]struct{}
	venueAllow map[string]struct{}
}

// NewCanonicalizer builds a Canonicalizer from optional allow-lists.
func NewCanonicalizer(eventAllow, venueAllow []string) *Canonicalizer {
	return &Canonicalizer{
		eventAllow: keySet(eventAllow),
		venueAllow: keySet(venueAllow),
	}
}

func keySet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if k := CanonicalKey(v); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// Events returns copies of events with canonical tags and categories,
// picking representatives across the whole batch.
func (c *Canonicalizer) Events(events []model.Event) []model.Event {
	var allTags, allCats []string
	for _, e := range events {
		allTags = append(allTags, e.Tags...)
		if e.Category != "" {
			allCats = append(allCats, MergeCategory(e.Category))
		}
	}
	tagRep := Canonicalize(allTags)
	catRep := Canonicalize(allCats)

	out := make([]model.Event, len(events))
	for i, e := range events {
		e.Tags = apply(e.Tags, tagRep, c.eventAllow)
		if e.Category != "" {
			e.Category = catRep[CanonicalKey(MergeCategory(e.Category))]
		}
		out[i] = e
	}
	return out
}

// Venues is Events for venue tags.
func (c *Canonicalizer) Venues(venues []model.Venue) []model.Venue {
	var all []string
	for _, v := range venues {
		all = append(all, v.Tags...)
	}
	rep := Canonicalize(all)

	out := make([]model.Venue, len(venues))
	for i, v := range venues {
		v.Tags = apply(v.Tags, rep, c.venueAllow)
		out[i] = v
	}
	return out
}

// apply maps values to representatives, drops repeats by key and, when
// allow is non-empty, anything outside it. The result is never nil.
func apply(values []string, rep map[string]string, allow map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		key := CanonicalKey(v)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if allow != nil {
			if _, ok := allow[key]; !ok {
				continue
			}
		}
		seen[key] = struct{}{}
		r, ok := rep[key]
		if !ok {
			r = strings.TrimSpace(v)
		}
		out = append(out, r)
	}
	return out
}
