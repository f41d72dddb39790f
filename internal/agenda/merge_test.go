package agenda

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayplan/internal/model"
)

func occ(uid, summary string, start, end time.Time, allDay bool) model.Occurrence {
	return model.Occurrence{
		UID:           uid,
		Summary:       summary,
		AllDay:        allDay,
		OriginalStart: start,
		Start:         start,
		End:           end,
	}
}

func ts(day, hour, minute int) time.Time {
	return time.Date(2025, 7, day, hour, minute, 0, 0, time.UTC)
}

func uids(entries []model.AgendaEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UID
	}
	return out
}

func TestMergeOrdering(t *testing.T) {
	work := Source{ID: "work", Occurrences: []model.Occurrence{
		occ("w-late", "Review", ts(9, 15, 0), ts(9, 16, 0), false),
		occ("w-early", "Standup", ts(9, 9, 0), ts(9, 9, 15), false),
		occ("w-same", "Sync", ts(9, 11, 0), ts(9, 12, 0), false),
	}}
	home := Source{ID: "home", Occurrences: []model.Occurrence{
		occ("h-same", "Call mum", ts(9, 11, 0), ts(9, 11, 30), false),
		occ("h-allday", "Holiday", ts(9, 0, 0), ts(10, 0, 0), true),
		occ("h-tomorrow", "Dentist", ts(10, 9, 0), ts(10, 10, 0), false),
	}}

	got := Merge([]Source{work, home}, ts(9, 12, 0), time.UTC)
	assert.Equal(t, []string{"h-allday", "w-early", "w-same", "h-same", "w-late"}, uids(got))

	// Source registration order breaks ties.
	got = Merge([]Source{home, work}, ts(9, 0, 0), time.UTC)
	assert.Equal(t, []string{"h-allday", "w-early", "h-same", "w-same", "w-late"}, uids(got))
}

func TestMergeKeepsCrossSourceDuplicates(t *testing.T) {
	a := Source{ID: "a", Occurrences: []model.Occurrence{occ("x", "Lunch", ts(9, 12, 0), ts(9, 13, 0), false)}}
	b := Source{ID: "b", Occurrences: []model.Occurrence{occ("x", "Lunch", ts(9, 12, 0), ts(9, 13, 0), false)}}

	got := Merge([]Source{a, b}, ts(9, 0, 0), time.UTC)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SourceID)
	assert.Equal(t, "b", got[1].SourceID)
}

func TestMergeFailedSourceContributesNothing(t *testing.T) {
	ok := Source{ID: "ok", Occurrences: []model.Occurrence{occ("a", "A", ts(9, 8, 0), ts(9, 9, 0), false)}}
	bad := Source{ID: "bad", Occurrences: []model.Occurrence{occ("b", "B", ts(9, 8, 0), ts(9, 9, 0), false)}, Err: errors.New("boom")}

	got := Merge([]Source{bad, ok}, ts(9, 0, 0), time.UTC)
	assert.Equal(t, []string{"a"}, uids(got))
}

func TestMergeMultiDayAllDay(t *testing.T) {
	trip := Source{ID: "p", Occurrences: []model.Occurrence{
		occ("trip", "Trip", ts(7, 0, 0), ts(10, 0, 0), true),
		occ("zero", "Marker", ts(9, 0, 0), ts(9, 0, 0), true),
	}}

	assert.Equal(t, []string{"trip"}, uids(Merge([]Source{trip}, ts(8, 0, 0), time.UTC)))
	assert.Equal(t, []string{"trip", "zero"}, uids(Merge([]Source{trip}, ts(9, 0, 0), time.UTC)))
	assert.Empty(t, Merge([]Source{trip}, ts(10, 0, 0), time.UTC))
}

func TestMergeUsesLocalDate(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on the 8th is 05:00 on the 9th in Tokyo.
	src := Source{ID: "s", Occurrences: []model.Occurrence{occ("a", "Early", ts(8, 20, 0), ts(8, 21, 0), false)}}

	got := Merge([]Source{src}, time.Date(2025, 7, 9, 0, 0, 0, 0, tokyo), tokyo)
	require.Len(t, got, 1)
	assert.Equal(t, "05:00-06:00", got[0].DisplayTime)
	assert.Empty(t, Merge([]Source{src}, time.Date(2025, 7, 8, 12, 0, 0, 0, tokyo), tokyo))
}

func TestDisplayTime(t *testing.T) {
	assert.Equal(t, AllDayLabel, DisplayTime(occ("a", "", ts(9, 0, 0), ts(10, 0, 0), true), time.UTC))
	assert.Equal(t, "09:00-10:30", DisplayTime(occ("a", "", ts(9, 9, 0), ts(9, 10, 30), false), time.UTC))
	assert.Equal(t, "09:00", DisplayTime(occ("a", "", ts(9, 9, 0), ts(9, 9, 0), false), time.UTC))
}

func TestIcons(t *testing.T) {
	src := Source{ID: "s", Occurrences: []model.Occurrence{
		occ("a", "Team Meeting", ts(9, 9, 0), ts(9, 10, 0), false),
		occ("b", "Pick up parcel", ts(9, 11, 0), ts(9, 12, 0), false),
	}}
	src.Occurrences = append(src.Occurrences, model.Occurrence{
		UID: "c", Summary: "Meeting", Icon: "⭐", Start: ts(9, 13, 0), End: ts(9, 14, 0), OriginalStart: ts(9, 13, 0),
	})

	got := Merge([]Source{src}, ts(9, 0, 0), time.UTC)
	require.Len(t, got, 3)
	assert.Equal(t, "👥", got[0].Icon)
	assert.Equal(t, DefaultIcon, got[1].Icon)
	assert.Equal(t, "⭐", got[2].Icon)

	assert.Equal(t, "🍴", IconFor("Lunch with Sam"))
	assert.Equal(t, "💪", IconFor("GYM"))
}
