package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayplan/internal/model"
)

func weeklySeries(t *testing.T) []model.Occurrence {
	t.Helper()
	def := model.Definition{
		UID:     "standup",
		Summary: "Standup",
		Start:   at(time.UTC, "2025-07-07T09:00"),
		End:     at(time.UTC, "2025-07-07T09:15"),
		Rule:    "FREQ=DAILY;COUNT=5",
	}
	occ, err := Expand(def, window(time.UTC, "2025-07-01", "2025-07-31"))
	require.NoError(t, err)
	require.Len(t, occ, 5)
	return occ
}

func TestResolveCancellation(t *testing.T) {
	occ := weeklySeries(t)

	out, stats := Resolve(occ, []model.Override{
		{UID: "standup", OriginalStart: at(time.UTC, "2025-07-09T09:00"), Kind: model.OverrideCancel},
	})

	require.Len(t, out, 4)
	assert.Equal(t, 1, stats.Cancelled)
	for _, o := range out {
		assert.NotEqual(t, at(time.UTC, "2025-07-09T09:00"), o.Start)
	}
}

func TestResolveOverrideForOtherInstantHasNoEffect(t *testing.T) {
	occ := weeklySeries(t)

	out, stats := Resolve(occ, []model.Override{
		{UID: "standup", OriginalStart: at(time.UTC, "2025-07-09T10:00"), Kind: model.OverrideCancel},
		{UID: "other", OriginalStart: at(time.UTC, "2025-07-09T09:00"), Kind: model.OverrideCancel},
	})

	assert.Equal(t, occ, out)
	assert.Equal(t, 2, stats.Unmatched)
}

func TestResolveReplacementKeepsIdentity(t *testing.T) {
	occ := weeklySeries(t)
	orig := at(time.UTC, "2025-07-08T09:00")

	out, stats := Resolve(occ, []model.Override{{
		UID:           "standup",
		OriginalStart: orig,
		Kind:          model.OverrideReplace,
		Start:         at(time.UTC, "2025-07-08T11:00"),
		Summary:       "Standup (moved)",
	}})

	require.Len(t, out, 5)
	assert.Equal(t, 1, stats.Replaced)

	moved := out[1]
	assert.Equal(t, "standup", moved.UID)
	assert.Equal(t, orig, moved.OriginalStart)
	assert.Equal(t, at(time.UTC, "2025-07-08T11:00"), moved.Start)
	assert.Equal(t, at(time.UTC, "2025-07-08T11:15"), moved.End)
	assert.Equal(t, "Standup (moved)", moved.Summary)
}

func TestResolveCancellationWinsOverReplacement(t *testing.T) {
	occ := weeklySeries(t)
	orig := at(time.UTC, "2025-07-10T09:00")

	out, stats := Resolve(occ, []model.Override{
		{UID: "standup", OriginalStart: orig, Kind: model.OverrideCancel},
		{UID: "standup", OriginalStart: orig, Kind: model.OverrideReplace, Summary: "x"},
	})

	assert.Len(t, out, 4)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Zero(t, stats.Replaced)
}

func TestResolveDropsDuplicateOccurrences(t *testing.T) {
	occ := weeklySeries(t)
	dup := append(append([]model.Occurrence{}, occ...), occ[0])

	out, stats := Resolve(dup, nil)
	assert.Len(t, out, 5)
	assert.Equal(t, 1, stats.Duplicates)
}
