package normalize

import (
	"strings"

	"cityevents/internal/model"
)

// statusAliases maps normalized source vocabulary to canonical statuses.
// Keys are lowercase with spaces and hyphens folded to underscores.
var statusAliases = map[string]model.Status{
	"scheduled":    model.StatusScheduled,
	"active":       model.StatusScheduled,
	"needs_review": model.StatusScheduled,
	"published":    model.StatusScheduled,
	"confirmed":    model.StatusScheduled,
	"live":         model.StatusScheduled,
	"cancelled":    model.StatusCancelled,
	"canceled":     model.StatusCancelled,
	"postponed":    model.StatusPostponed,
	"rescheduled":  model.StatusPostponed,
	"sold_out":     model.StatusSoldOut,
	"soldout":      model.StatusSoldOut,
	"draft":        model.StatusDraft,
	"archived":     model.StatusArchived,
	"past":         model.StatusArchived,
}

// MapStatus maps a source status string to the canonical enum. Unknown or
// empty input is scheduled so that the event stays visible.
func MapStatus(s string) model.Status {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.Join(strings.FieldsFunc(k, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
	if st, ok := statusAliases[k]; ok {
		return st
	}
	return model.StatusScheduled
}
