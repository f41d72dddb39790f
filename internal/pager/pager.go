// Package pager lays a day's agenda and task list out over fixed-capacity
// pages, followed by a blank notes page.
package pager

import (
	"errors"
	"fmt"

	"dayplan/internal/model"
)

// Labels and texts the renderer depends on.
const (
	LabelToday    = "today"
	LabelTomorrow = "tomorrow"
	LabelNotes    = "notes"

	EventsTitle = "Events"
	TasksTitle  = "Top Tasks"

	EventsContinued = "Events continued from previous page"
	TasksContinued  = "Tasks continued from previous page"

	NoEvents = "No events scheduled"
	NoTasks  = "No tasks listed"
)

// ErrPartitionInvariant reports a broken pagination contract. It is a
// programming error, never a data problem.
var ErrPartitionInvariant = errors.New("partition invariant violated")

// Day carries the per-day metadata placed on the pages.
type Day struct {
	Label       string // LabelToday or LabelTomorrow
	Date        string // YYYY-MM-DD
	Header      string
	NotesHeader string
	Epigraph    *model.Epigraph

	// Weather goes on the first page only.
	Weather []model.WeatherSummary
	// Preview goes on the last content page (tomorrow's forecast on today).
	Preview []model.WeatherSummary
}

type state int

const (
	stateFirstPage state = iota
	stateContinuation
	stateNotesPage
	stateDone
)

// Partition splits agenda and tasks into pages of at most capacity
// entries each. Events and tasks share a page while both have chunks left;
// the longer list then continues alone. The result always holds at least
// one content page and ends with exactly one notes page.
func Partition(agenda []model.AgendaEntry, tasks []model.TaskItem, capacity int, day Day) ([]model.PageDescriptor, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrPartitionInvariant, capacity)
	}

	eventChunks := chunk(agenda, capacity)
	taskChunks := chunk(tasks, capacity)

	contentPages := max(len(eventChunks), len(taskChunks), 1)
	total := contentPages + 1

	pages := make([]model.PageDescriptor, 0, total)
	st := stateFirstPage
	i := 0

	for st != stateDone {
		switch st {
		case stateFirstPage, stateContinuation:
			p := contentPage(day, i, total)
			p.Events = section(EventsTitle, eventChunks, i, EventsContinued, NoEvents)
			p.Tasks = section(TasksTitle, taskChunks, i, TasksContinued, NoTasks)

			if st == stateFirstPage {
				p.Header = day.Header
				p.Epigraph = day.Epigraph
				p.Weather = day.Weather
			}
			if i == contentPages-1 {
				p.TomorrowWeather = day.Preview
			}
			pages = append(pages, p)

			i++
			if i < contentPages {
				st = stateContinuation
			} else {
				st = stateNotesPage
			}

		case stateNotesPage:
			pages = append(pages, model.PageDescriptor{
				Kind:      model.PageNotes,
				Label:     LabelNotes,
				Day:       day.Label,
				Date:      day.Date,
				Header:    day.NotesHeader,
				PageIndex: total,
				PageCount: total,
			})
			st = stateDone
		}
	}

	if err := verify(pages, agenda, tasks, total); err != nil {
		return nil, err
	}
	return pages, nil
}

func contentPage(day Day, i, total int) model.PageDescriptor {
	return model.PageDescriptor{
		Kind:      model.PageContent,
		Label:     day.Label,
		Day:       day.Label,
		Date:      day.Date,
		PageIndex: i + 1,
		PageCount: total,
	}
}

// section builds the state of one list on content page i. Once a list's
// chunks run out its remaining pages show the empty message.
func section[T any](title string, chunks [][]T, i int, continued, empty string) model.Section[T] {
	s := model.Section[T]{Title: title, Items: []T{}}
	if i >= len(chunks) {
		s.EmptyText = empty
		return s
	}
	s.Items = chunks[i]
	if i > 0 {
		s.Continued = true
		s.ContinuationText = continued
	}
	return s
}

func chunk[T any](items []T, n int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += n {
		end := min(start+n, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// verify checks that the pages reproduce both input lists exactly.
func verify(pages []model.PageDescriptor, agenda []model.AgendaEntry, tasks []model.TaskItem, total int) error {
	if len(pages) != total || pages[len(pages)-1].Kind != model.PageNotes {
		return fmt.Errorf("%w: got %d pages, want %d ending in notes", ErrPartitionInvariant, len(pages), total)
	}

	var events, items int
	for _, p := range pages {
		if p.Kind != model.PageContent {
			continue
		}
		for _, e := range p.Events.Items {
			if events >= len(agenda) || e != agenda[events] {
				return fmt.Errorf("%w: events out of order at %d", ErrPartitionInvariant, events)
			}
			events++
		}
		for _, t := range p.Tasks.Items {
			if items >= len(tasks) || t != tasks[items] {
				return fmt.Errorf("%w: tasks out of order at %d", ErrPartitionInvariant, items)
			}
			items++
		}
	}
	if events != len(agenda) || items != len(tasks) {
		return fmt.Errorf("%w: placed %d/%d events and %d/%d tasks",
			ErrPartitionInvariant, events, len(agenda), items, len(tasks))
	}
	return nil
}
