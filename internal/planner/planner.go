// Package planner runs the pure pipeline from parsed sources and forecasts
// to the page descriptors of one planning document:
// expand, resolve, merge, then partition, for today and tomorrow.
package planner

import (
	"errors"
	"fmt"
	"time"

	"dayplan/internal/agenda"
	"dayplan/internal/ics"
	appLog "dayplan/internal/log"
	"dayplan/internal/model"
	"dayplan/internal/pager"
	"dayplan/internal/weather"
)

const (
	DefaultPrefix       = "NMS"
	DefaultItemsPerPage = 6
	DefaultLookbackDays = 7
)

// ErrSourceExpansion marks a calendar source that could not be expanded.
// The source contributes nothing; other sources are unaffected.
var ErrSourceExpansion = errors.New("source expansion failed")

// dayInitials is indexed by time.Weekday.
var dayInitials = [...]string{"Su", "M", "T", "W", "R", "F", "Sa"}

// Input is a fully materialized snapshot of everything a run needs.
type Input struct {
	// Now picks the "today" date in Location.
	Now      time.Time
	Location *time.Location

	ItemsPerPage int
	// LookbackDays widens the expansion window backwards so multi-day
	// all-day events that started earlier still cover today.
	LookbackDays    int
	LikelyThreshold int

	DocumentPrefix string
	TodayPrefix    string
	TomorrowPrefix string

	TodayEpigraph    *model.Epigraph
	TomorrowEpigraph *model.Epigraph

	Sources   []model.SourceResult
	Forecasts []weather.Result

	TodayTasks    []model.TaskItem
	TomorrowTasks []model.TaskItem
}

func (in Input) normalize() Input {
	if in.Location == nil {
		in.Location = time.Local
	}
	if in.ItemsPerPage == 0 {
		in.ItemsPerPage = DefaultItemsPerPage
	}
	if in.LookbackDays < 0 {
		in.LookbackDays = 0
	}
	if in.LikelyThreshold <= 0 {
		in.LikelyThreshold = weather.DefaultLikelyThreshold
	}
	if in.DocumentPrefix == "" {
		in.DocumentPrefix = DefaultPrefix
	}
	if in.TodayPrefix == "" {
		in.TodayPrefix = in.DocumentPrefix
	}
	if in.TomorrowPrefix == "" {
		in.TomorrowPrefix = in.DocumentPrefix
	}
	return in
}

// Plan builds the document: today's pages and notes page, then tomorrow's.
// It performs no I/O and returns the same document for the same input.
// Only a pagination contract violation is returned as an error.
func Plan(in Input) (model.Document, error) {
	in = in.normalize()
	loc := in.Location

	now := in.Now.In(loc)
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	cfg := ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      today.AddDate(0, 0, -in.LookbackDays),
		RangeEnd:        today.AddDate(0, 0, 2),
	}
	sources := Resolve(in.Sources, cfg)

	todayWeather := summaries(in.Forecasts, dateKey(today), in.LikelyThreshold)
	tomorrowWeather := summaries(in.Forecasts, dateKey(tomorrow), in.LikelyThreshold)

	todayPages, err := pager.Partition(
		agenda.Merge(sources, today, loc),
		in.TodayTasks,
		in.ItemsPerPage,
		pager.Day{
			Label:       pager.LabelToday,
			Date:        dateKey(today),
			Header:      Header(in.TodayPrefix, today),
			NotesHeader: Header("Notes", today),
			Epigraph:    in.TodayEpigraph,
			Weather:     todayWeather,
			Preview:     tomorrowWeather,
		},
	)
	if err != nil {
		return model.Document{}, fmt.Errorf("paginate today: %w", err)
	}

	tomorrowPages, err := pager.Partition(
		agenda.Merge(sources, tomorrow, loc),
		in.TomorrowTasks,
		in.ItemsPerPage,
		pager.Day{
			Label:       pager.LabelTomorrow,
			Date:        dateKey(tomorrow),
			Header:      Header(in.TomorrowPrefix, tomorrow),
			NotesHeader: Header("Notes", tomorrow),
			Epigraph:    in.TomorrowEpigraph,
			Weather:     tomorrowWeather,
		},
	)
	if err != nil {
		return model.Document{}, fmt.Errorf("paginate tomorrow: %w", err)
	}

	pages := append(todayPages, tomorrowPages...)
	for i := range pages {
		pages[i].DocumentPage = i + 1
		pages[i].DocumentPages = len(pages)
	}

	return model.Document{
		Name:         DocumentName(in.DocumentPrefix, today),
		VisibleName:  VisibleName(in.DocumentPrefix, today),
		GeneratedAt:  now,
		Timezone:     loc.String(),
		ItemsPerPage: in.ItemsPerPage,
		Pages:        pages,
	}, nil
}

// Resolve expands and resolves every source in order. A failed source, or
// one that cannot be expanded, is kept as an empty failed entry so the
// merger can report it.
func Resolve(results []model.SourceResult, cfg ics.ExpandConfig) []agenda.Source {
	out := make([]agenda.Source, 0, len(results))
	for _, res := range results {
		src := agenda.Source{ID: res.SourceID}
		if res.Status == model.StatusFailed {
			src.Err = fmt.Errorf("%w: %s: %v", ErrSourceExpansion, res.SourceID, res.Err)
			out = append(out, src)
			continue
		}

		expanded, err := ics.ExpandAll(res.Batch.Definitions, cfg)
		if err != nil {
			src.Err = fmt.Errorf("%w: %s: %v", ErrSourceExpansion, res.SourceID, err)
			out = append(out, src)
			continue
		}

		occ, stats := ics.Resolve(expanded.Occurrences, res.Batch.Overrides)
		appLog.Debug("source resolved",
			"id", res.SourceID,
			"status", res.Status,
			"occurrences", len(occ),
			"cancelled", stats.Cancelled,
			"replaced", stats.Replaced,
			"unmatched", stats.Unmatched,
		)
		src.Occurrences = occ
		out = append(out, src)
	}
	return out
}

func summaries(results []weather.Result, date string, threshold int) []model.WeatherSummary {
	var out []model.WeatherSummary
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		f, ok := r.Day(date)
		if !ok {
			continue
		}
		out = append(out, weather.Summarize(f, threshold))
	}
	return out
}

// Header renders "<prefix>: Monday, 2 January 2006".
func Header(prefix string, day time.Time) string {
	return prefix + ": " + day.Format("Monday, 2 January 2006")
}

// DocumentName renders "<prefix>_2006_01_02_<day initial>".
func DocumentName(prefix string, day time.Time) string {
	return prefix + "_" + day.Format("2006_01_02") + "_" + dayInitials[day.Weekday()]
}

// VisibleName renders "<prefix>_2_Jan_06", the name shown on the device.
func VisibleName(prefix string, day time.Time) string {
	return prefix + "_" + day.Format("2_Jan_06")
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
