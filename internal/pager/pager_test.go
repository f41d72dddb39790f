package pager

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayplan/internal/model"
)

func entries(n int) []model.AgendaEntry {
	out := make([]model.AgendaEntry, n)
	for i := range out {
		start := time.Date(2025, 7, 9, 8+i, 0, 0, 0, time.UTC)
		out[i] = model.AgendaEntry{
			UID:         fmt.Sprintf("e%d", i),
			Summary:     fmt.Sprintf("Event %d", i),
			DisplayTime: start.Format("15:04"),
			Start:       start,
			End:         start.Add(time.Hour),
		}
	}
	return out
}

func tasks(n int) []model.TaskItem {
	out := make([]model.TaskItem, n)
	for i := range out {
		out[i] = model.TaskItem{Text: fmt.Sprintf("Task %d", i)}
	}
	return out
}

var today = Day{
	Label:       LabelToday,
	Date:        "2025-07-09",
	Header:      "NMS: Wednesday, 9 July 2025",
	NotesHeader: "Notes: Wednesday, 9 July 2025",
	Epigraph:    &model.Epigraph{Quote: "Begin.", Author: "Anon"},
	Weather:     []model.WeatherSummary{{Location: "Home", Narrative: "20°C"}},
	Preview:     []model.WeatherSummary{{Location: "Home", Narrative: "22°C"}},
}

func TestPartitionEightEventsNoTasks(t *testing.T) {
	pages, err := Partition(entries(8), nil, 6, today)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	first := pages[0]
	assert.Equal(t, model.PageContent, first.Kind)
	assert.Len(t, first.Events.Items, 6)
	assert.False(t, first.Events.Continued)
	assert.Equal(t, NoTasks, first.Tasks.EmptyText)
	assert.Equal(t, today.Header, first.Header)
	assert.Equal(t, today.Weather, first.Weather)
	assert.Equal(t, today.Epigraph, first.Epigraph)
	assert.Nil(t, first.TomorrowWeather)

	second := pages[1]
	assert.Len(t, second.Events.Items, 2)
	assert.True(t, second.Events.Continued)
	assert.Equal(t, EventsContinued, second.Events.ContinuationText)
	assert.Empty(t, second.Tasks.Items)
	assert.Equal(t, NoTasks, second.Tasks.EmptyText)
	assert.Empty(t, second.Header)
	assert.Nil(t, second.Weather)
	assert.Nil(t, second.Epigraph)
	assert.Equal(t, today.Preview, second.TomorrowWeather)

	notes := pages[2]
	assert.Equal(t, model.PageNotes, notes.Kind)
	assert.Equal(t, LabelNotes, notes.Label)
	assert.Equal(t, LabelToday, notes.Day)
	assert.Equal(t, today.NotesHeader, notes.Header)

	for i, p := range pages {
		assert.Equal(t, i+1, p.PageIndex)
		assert.Equal(t, 3, p.PageCount)
	}
}

func TestPartitionEmptyDay(t *testing.T) {
	pages, err := Partition(nil, nil, 6, today)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, NoEvents, pages[0].Events.EmptyText)
	assert.Equal(t, NoTasks, pages[0].Tasks.EmptyText)
	assert.NotNil(t, pages[0].Events.Items)
	assert.Equal(t, today.Preview, pages[0].TomorrowWeather)
	assert.Equal(t, model.PageNotes, pages[1].Kind)
}

func TestPartitionListsOverflowIndependently(t *testing.T) {
	pages, err := Partition(entries(3), tasks(14), 5, today)
	require.NoError(t, err)
	require.Len(t, pages, 4)

	assert.Len(t, pages[0].Events.Items, 3)
	assert.Len(t, pages[0].Tasks.Items, 5)

	assert.Equal(t, NoEvents, pages[1].Events.EmptyText)
	assert.False(t, pages[1].Events.Continued)
	assert.Len(t, pages[1].Tasks.Items, 5)
	assert.True(t, pages[1].Tasks.Continued)
	assert.Equal(t, TasksContinued, pages[1].Tasks.ContinuationText)

	assert.Len(t, pages[2].Tasks.Items, 4)
	assert.Equal(t, model.PageNotes, pages[3].Kind)
}

func TestPartitionCoverage(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 6, 10} {
		for _, ne := range []int{0, 1, 5, 6, 7, 13} {
			for _, nt := range []int{0, 4, 6, 12} {
				name := fmt.Sprintf("cap%d/e%d/t%d", capacity, ne, nt)
				t.Run(name, func(t *testing.T) {
					agenda, list := entries(ne), tasks(nt)
					pages, err := Partition(agenda, list, capacity, today)
					require.NoError(t, err)
					require.GreaterOrEqual(t, len(pages), 2)

					var gotE []model.AgendaEntry
					var gotT []model.TaskItem
					for _, p := range pages {
						assert.LessOrEqual(t, len(p.Events.Items), capacity)
						assert.LessOrEqual(t, len(p.Tasks.Items), capacity)
						gotE = append(gotE, p.Events.Items...)
						gotT = append(gotT, p.Tasks.Items...)
					}
					assert.Equal(t, len(agenda), len(gotE))
					assert.Equal(t, len(list), len(gotT))
					for i := range gotE {
						assert.Equal(t, agenda[i].UID, gotE[i].UID)
					}
					for i := range gotT {
						assert.Equal(t, list[i], gotT[i])
					}
					assert.Equal(t, model.PageNotes, pages[len(pages)-1].Kind)
				})
			}
		}
	}
}

func TestPartitionDeterministic(t *testing.T) {
	a, err := Partition(entries(9), tasks(7), 4, today)
	require.NoError(t, err)
	b, err := Partition(entries(9), tasks(7), 4, today)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPartitionRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, -3} {
		_, err := Partition(entries(2), nil, capacity, today)
		assert.ErrorIs(t, err, ErrPartitionInvariant)
	}
}
