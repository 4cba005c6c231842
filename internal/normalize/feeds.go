package normalize

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"cityevents/internal/model"
)

// pickStr returns the first non-empty trimmed value among keys.
func pickStr(row model.RawRow, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(row[k]); v != "" {
			return v
		}
	}
	return ""
}

// NormalizeVenue converts one venues-feed row. Rows with neither an id nor
// a name are skipped.
func NormalizeVenue(row model.RawRow, slugify func(string) string) (model.Venue, bool) {
	v := model.Venue{
		VenueID:      pickStr(row, "venue_id", "id", "key"),
		Name:         pickStr(row, "name", "venue_name", "display_name"),
		Slug:         pickStr(row, "slug"),
		Aliases:      ParseList(pickStr(row, "aliases", "alias")),
		SourceHandle: pickStr(row, "source_handle", "handle", "instagram_handle"),
		Address:      pickStr(row, "address", "venue_address"),
		Neighborhood: pickStr(row, "neighborhood"),
		City:         pickStr(row, "city"),
		Latitude:     ParseNumber(pickStr(row, "latitude", "lat")),
		Longitude:    ParseNumber(pickStr(row, "longitude", "lng", "lon")),
		WebsiteURL:   pickStr(row, "website_url", "website", "url"),
		Tags:         ParseTags(pickStr(row, "tags")),
	}
	if v.VenueID == "" && v.Name == "" {
		return model.Venue{}, false
	}
	if v.Slug == "" && slugify != nil {
		v.Slug = slugify(v.Name)
	}
	if v.VenueID == "" {
		v.VenueID = v.Slug
	}
	if v.Latitude != nil && (*v.Latitude < -90 || *v.Latitude > 90) {
		v.Latitude = nil
	}
	if v.Longitude != nil && (*v.Longitude < -180 || *v.Longitude > 180) {
		v.Longitude = nil
	}
	return v, v.VenueID != ""
}

// TagList reads a tag allow-list feed: one tag per row.
func TagList(rows []model.RawRow) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if t := pickStr(row, "tag", "name", "slug", "label"); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Collections joins the collections feed with its items feed. Items are
// ordered by their position column, then feed order; items pointing at an
// unknown collection are dropped.
func Collections(collections, items []model.RawRow) []model.Collection {
	out := make([]model.Collection, 0, len(collections))
	byID := make(map[string]int, len(collections))
	for _, row := range collections {
		id := pickStr(row, "collection_id", "id")
		if id == "" {
			continue
		}
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = len(out)
		out = append(out, model.Collection{
			CollectionID: id,
			Title:        pickStr(row, "title", "name"),
			Slug:         pickStr(row, "slug"),
			Description:  pickStr(row, "description"),
			EventIDs:     []string{},
		})
	}

	type item struct {
		eventID  string
		position int
		seq      int
	}
	grouped := make(map[int][]item)
	for seq, row := range items {
		idx, ok := byID[pickStr(row, "collection_id")]
		if !ok {
			continue
		}
		eventID := pickStr(row, "event_id", "id")
		if eventID == "" {
			continue
		}
		pos, err := strconv.Atoi(pickStr(row, "position", "sort_order"))
		if err != nil {
			pos = math.MaxInt
		}
		grouped[idx] = append(grouped[idx], item{eventID: eventID, position: pos, seq: seq})
	}

	for idx, its := range grouped {
		sort.SliceStable(its, func(i, j int) bool {
			if its[i].position != its[j].position {
				return its[i].position < its[j].position
			}
			return its[i].seq < its[j].seq
		})
		seen := make(map[string]struct{}, len(its))
		for _, it := range its {
			if _, dup := seen[it.eventID]; dup {
				continue
			}
			seen[it.eventID] = struct{}{}
			out[idx].EventIDs = append(out[idx].EventIDs, it.eventID)
		}
	}
	return out
}
