// Package agenda merges resolved occurrences from every calendar source
// into one ordered list of agenda entries per day.
package agenda

import (
	"sort"
	"strings"
	"time"

	appLog "dayplan/internal/log"
	"dayplan/internal/model"
)

// AllDayLabel is the display time of all-day entries.
const AllDayLabel = "All day"

// Source is one calendar's resolved occurrences. A non-nil Err marks the
// source as failed; it then contributes nothing.
type Source struct {
	ID          string
	Occurrences []model.Occurrence
	Err         error
}

type ranked struct {
	entry  model.AgendaEntry
	source int
	pos    int
}

// Merge returns the agenda for day (any instant on the wanted local date).
//
// Timed occurrences are included when their local start date is day;
// all-day occurrences when day falls in [start date, end date).
// Entries are ordered all-day first, then by start instant, then by the
// source's position in sources, then by position within the source.
// Identical events from different sources are all kept.
func Merge(sources []Source, day time.Time, loc *time.Location) []model.AgendaEntry {
	if loc == nil {
		loc = time.Local
	}
	dayStart := startOfDay(day.In(loc))

	var rows []ranked
	for si, src := range sources {
		if src.Err != nil {
			appLog.Warn("agenda: source skipped", "id", src.ID, "err", src.Err)
			continue
		}
		for pi, occ := range src.Occurrences {
			if !onDay(occ, dayStart, loc) {
				continue
			}
			rows = append(rows, ranked{
				entry:  newEntry(src.ID, occ, loc),
				source: si,
				pos:    pi,
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.entry.AllDay != b.entry.AllDay {
			return a.entry.AllDay
		}
		if !a.entry.Start.Equal(b.entry.Start) {
			return a.entry.Start.Before(b.entry.Start)
		}
		if a.source != b.source {
			return a.source < b.source
		}
		return a.pos < b.pos
	})

	out := make([]model.AgendaEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry
	}
	return out
}

func onDay(occ model.Occurrence, dayStart time.Time, loc *time.Location) bool {
	startDay := startOfDay(occ.Start.In(loc))
	if !occ.AllDay {
		return startDay.Equal(dayStart)
	}

	endDay := startOfDay(occ.End.In(loc))
	if !endDay.After(startDay) {
		endDay = startDay.AddDate(0, 0, 1)
	}
	return !dayStart.Before(startDay) && dayStart.Before(endDay)
}

func newEntry(sourceID string, occ model.Occurrence, loc *time.Location) model.AgendaEntry {
	icon := occ.Icon
	if icon == "" {
		icon = IconFor(occ.Summary)
	}
	summary := strings.TrimSpace(occ.Summary)
	if summary == "" {
		summary = "(no title)"
	}
	return model.AgendaEntry{
		SourceID:    sourceID,
		UID:         occ.UID,
		DisplayTime: DisplayTime(occ, loc),
		Icon:        icon,
		Summary:     summary,
		Location:    occ.Location,
		AllDay:      occ.AllDay,
		Start:       occ.Start.In(loc),
		End:         occ.End.In(loc),
	}
}

// DisplayTime renders "All day", "HH:MM-HH:MM", or "HH:MM" when the end
// equals the start.
func DisplayTime(occ model.Occurrence, loc *time.Location) string {
	if occ.AllDay {
		return AllDayLabel
	}
	start := occ.Start.In(loc).Format("15:04")
	if occ.End.IsZero() || !occ.End.After(occ.Start) {
		return start
	}
	return start + "-" + occ.End.In(loc).Format("15:04")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
