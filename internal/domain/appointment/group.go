package appointment

import (
	"sort"
	"time"

	"golang.org/x/text/language"

	"github.com/dentflow/dentflow/internal/platform/locale"
	"github.com/dentflow/dentflow/internal/platform/validation"
)

// Group is the appointments sharing one date, titled for display.
type Group struct {
	Title string         `json:"title"`
	Data  []*Appointment `json:"data"`
}

// GroupByDate stable-sorts items by their parsed date, with unparsable
// dates last, and buckets them by the exact date string in that order.
// Titles are "D MMMM" in lang; a date that does not parse is its own title.
func GroupByDate(items []*Appointment, lang language.Tag) []Group {
	type keyed struct {
		a  *Appointment
		t  time.Time
		ok bool
	}
	sorted := make([]keyed, len(items))
	for i, a := range items {
		t, err := time.Parse(validation.DateLayout, a.Date)
		sorted[i] = keyed{a: a, t: t, ok: err == nil}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ok != sorted[j].ok {
			return sorted[i].ok
		}
		return sorted[i].ok && sorted[i].t.Before(sorted[j].t)
	})

	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, k := range sorted {
		i, seen := index[k.a.Date]
		if !seen {
			title := k.a.Date
			if k.ok {
				title = locale.DayMonth(lang, k.t)
			}
			i = len(groups)
			index[k.a.Date] = i
			groups = append(groups, Group{Title: title})
		}
		groups[i].Data = append(groups[i].Data, k.a)
	}
	return groups
}
