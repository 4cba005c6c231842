package venue

import (
	"strings"

	"cityevents/internal/model"
)

// Registry is a read-only, ordered list of canonical venues used for
// matching. Order is the final tie-break between equally good candidates.
type Registry struct {
	entries []entry
}

// entry caches the normalized forms of one canonical venue.
type entry struct {
	model.CanonicalVenue
	order       int
	handle      string
	handleNoDot string
	nameSlugs   []string
}

// NewRegistry builds a Registry from canonical venue descriptors. Entries
// with an empty key are ignored; a repeated key keeps its first entry.
func NewRegistry(venues []model.CanonicalVenue) *Registry {
	r := &Registry{entries: make([]entry, 0, len(venues))}
	seen := make(map[string]struct{}, len(venues))
	for _, v := range venues {
		v.Key = strings.TrimSpace(v.Key)
		if v.Key == "" {
			continue
		}
		if _, dup := seen[v.Key]; dup {
			continue
		}
		seen[v.Key] = struct{}{}

		h := NormalizeHandle(v.Handle)
		e := entry{
			CanonicalVenue: v,
			order:          len(r.entries),
			handle:         h,
			handleNoDot:    stripDots(h),
		}
		for _, n := range append([]string{v.Name}, v.Aliases...) {
			if s := Slugify(n); s != "" {
				e.nameSlugs = append(e.nameSlugs, s)
			}
		}
		r.entries = append(r.entries, e)
	}
	return r
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Lookup returns the entry with the given key.
func (r *Registry) Lookup(key string) (model.CanonicalVenue, bool) {
	if r == nil {
		return model.CanonicalVenue{}, false
	}
	for _, e := range r.entries {
		if e.Key == key {
			return e.CanonicalVenue, true
		}
	}
	return model.CanonicalVenue{}, false
}

// Venues lists the registry entries as venue records, in registry order.
func (r *Registry) Venues() []model.Venue {
	if r == nil {
		return nil
	}
	out := make([]model.Venue, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, model.Venue{
			VenueID:      e.Key,
			Name:         e.Name,
			Slug:         Slugify(e.Name),
			Aliases:      append([]string(nil), e.Aliases...),
			SourceHandle: e.Handle,
			Tags:         []string{},
		})
	}
	return out
}

// NewIndex builds the per-fetch lookup structure from the loaded venues
// feed. The venue id is the canonical key; its slug, when it differs from
// the slugified name, is kept as an alias.
func NewIndex(venues []model.Venue) *Registry {
	descs := make([]model.CanonicalVenue, 0, len(venues))
	for _, v := range venues {
		key := v.VenueID
		if key == "" {
			key = v.Slug
		}
		aliases := append([]string(nil), v.Aliases...)
		if v.Slug != "" && v.Slug != Slugify(v.Name) {
			aliases = append(aliases, v.Slug)
		}
		descs = append(descs, model.CanonicalVenue{
			Key:     key,
			Name:    v.Name,
			Handle:  v.SourceHandle,
			Aliases: aliases,
		})
	}
	return NewRegistry(descs)
}

// DefaultRegistry is the static fallback used when no venues feed is
// configured.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultVenues)
}

var defaultVenues = []model.CanonicalVenue{
	{Key: "bleza", Name: "B.Leza", Handle: "b.leza"},
	{Key: "rumuclub", Name: "Rumu Club", Handle: "rumu.club"},
	{Key: "musicbox", Name: "Musicbox Lisboa", Handle: "musicboxlisboa"},
	{Key: "luxfragil", Name: "Lux Frágil", Handle: "luxfragil", Aliases: []string{"Lux"}},
	{Key: "zedosbois", Name: "Galeria Zé dos Bois", Handle: "zedosbois", Aliases: []string{"ZDB", "Zé dos Bois"}},
	{Key: "hotclube", Name: "Hot Clube de Portugal", Handle: "hotclubeportugal"},
	{Key: "village-underground", Name: "Village Underground Lisboa", Handle: "vulisboa"},
	{Key: "titanicsurmer", Name: "Titanic Sur Mer", Handle: "titanic.sur.mer"},
	{Key: "capitolio", Name: "Cineteatro Capitólio", Handle: "capitolio.lisboa", Aliases: []string{"Capitólio"}},
	{Key: "coliseu", Name: "Coliseu dos Recreios", Handle: "coliseulisboa", Aliases: []string{"Coliseu de Lisboa"}},
	{Key: "culturgest", Name: "Culturgest", Handle: "culturgest"},
	{Key: "maat", Name: "MAAT", Handle: "maat.museum", Aliases: []string{"Museu de Arte, Arquitetura e Tecnologia"}},
	{Key: "damas", Name: "Damas", Handle: "damas.lisboa"},
	{Key: "tabacaria", Name: "Tabacaria", Handle: "tabacaria.lx"},
}
