package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayplan/internal/model"
)

const sampleYAML = `
events:
  - uid: gym
    summary: Gym
    start: "2025-07-07T07:00"
    end: "2025-07-07T08:00"
    rrule: FREQ=WEEKLY;BYDAY=MO,WE,FR
    exdates: ["2025-07-09T07:00"]
    overrides:
      - original_start: "2025-07-11T07:00"
        start: "2025-07-11T18:00"
        end: "2025-07-11T19:00"
  - uid: trip
    summary: Trip
    start: "2025-07-10"
    end: "2025-07-13"
  - uid: old
    summary: Old
    start: "2025-07-10T10:00"
    cancelled: true
  - summary: nameless
    start: "2025-07-10T10:00"
`

func TestYAMLIngesterParse(t *testing.T) {
	src := Source{ID: "personal", Kind: KindYAML, Icon: "⭐"}
	batch, err := YAMLIngester{Location: time.UTC}.Parse(src, []byte(sampleYAML))
	require.ErrorIs(t, err, ErrSkippedEvents)

	require.Len(t, batch.Definitions, 2)
	gym := batch.Definitions[0]
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,WE,FR", gym.Rule)
	assert.Equal(t, "⭐", gym.Icon)
	assert.Equal(t, time.Hour, gym.End.Sub(gym.Start))

	trip := batch.Definitions[1]
	assert.True(t, trip.AllDay)
	assert.Equal(t, 72*time.Hour, trip.End.Sub(trip.Start))

	require.Len(t, batch.Overrides, 2)
	assert.Equal(t, model.OverrideCancel, batch.Overrides[0].Kind)
	assert.Equal(t, model.OverrideReplace, batch.Overrides[1].Kind)
	assert.Equal(t, 18, batch.Overrides[1].Start.Hour())
}

func TestYAMLIngesterExpandsWithOverrides(t *testing.T) {
	batch, err := YAMLIngester{Location: time.UTC}.Parse(Source{ID: "p"}, []byte(sampleYAML))
	require.ErrorIs(t, err, ErrSkippedEvents)

	res, err := ExpandAll(batch.Definitions[:1], window(time.UTC, "2025-07-07", "2025-07-12"))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 3) // Mon, Wed, Fri

	occ, _ := Resolve(res.Occurrences, batch.Overrides)
	require.Len(t, occ, 2)
	assert.Equal(t, time.Monday, occ[0].Start.Weekday())
	assert.Equal(t, 18, occ[1].Start.Hour())
}

func TestYAMLIngesterTimezone(t *testing.T) {
	batch, err := YAMLIngester{Location: time.UTC}.Parse(Source{ID: "p"}, []byte(`
timezone: Asia/Tokyo
events:
  - uid: a
    start: "2025-07-09T09:00"
`))
	require.NoError(t, err)
	require.Len(t, batch.Definitions, 1)
	assert.Equal(t, "Asia/Tokyo", batch.Definitions[0].Start.Location().String())
}

func TestYAMLIngesterErrors(t *testing.T) {
	_, err := YAMLIngester{}.Parse(Source{ID: "p"}, nil)
	assert.Error(t, err)

	_, err = YAMLIngester{}.Parse(Source{ID: "p"}, []byte("events: [unterminated"))
	assert.Error(t, err)

	_, err = YAMLIngester{}.Parse(Source{ID: "p"}, []byte("timezone: Nowhere/Else\n"))
	assert.Error(t, err)
}
