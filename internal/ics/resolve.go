package ics

import (
	"dayplan/internal/model"
)

// ResolveStats counts what Resolve did, for logging.
type ResolveStats struct {
	Cancelled  int
	Replaced   int
	Duplicates int
	// Unmatched counts overrides whose target occurrence was not in the
	// expanded set (e.g. an exception outside the window). They have no effect.
	Unmatched int
}

// Resolve applies per-occurrence overrides to an expanded occurrence set.
//
//   - cancellation: the occurrence is dropped
//   - replacement: start/end/summary/location are substituted, identity and
//     OriginalStart are kept
//   - no override: passed through unchanged
//
// At most one occurrence survives per (UID, original start); the first one
// wins. Input order is preserved.
func Resolve(occs []model.Occurrence, overrides []model.Override) ([]model.Occurrence, ResolveStats) {
	var stats ResolveStats

	byKey := make(map[model.OccurrenceKey]model.Override, len(overrides))
	for _, ov := range overrides {
		k := ov.Key()
		if prev, ok := byKey[k]; ok && prev.Kind == model.OverrideCancel {
			// A cancellation is never downgraded by a later replacement.
			continue
		}
		byKey[k] = ov
	}

	used := make(map[model.OccurrenceKey]bool, len(byKey))
	seen := make(map[model.OccurrenceKey]bool, len(occs))
	out := make([]model.Occurrence, 0, len(occs))

	for _, occ := range occs {
		k := occ.Key()
		if seen[k] {
			stats.Duplicates++
			continue
		}
		seen[k] = true

		ov, ok := byKey[k]
		if !ok {
			out = append(out, occ)
			continue
		}
		used[k] = true

		if ov.Kind == model.OverrideCancel {
			stats.Cancelled++
			continue
		}
		out = append(out, applyReplacement(occ, ov))
		stats.Replaced++
	}

	stats.Unmatched = len(byKey) - len(used)
	return out, stats
}

func applyReplacement(occ model.Occurrence, ov model.Override) model.Occurrence {
	loc := occ.Start.Location()
	dur := occ.End.Sub(occ.Start)

	if !ov.Start.IsZero() {
		occ.Start = ov.Start.In(loc)
		occ.AllDay = ov.AllDay
		if ov.AllDay {
			occ.Start = startOfDay(occ.Start)
		}
		if ov.End.IsZero() || !ov.End.After(ov.Start) {
			occ.End = occ.Start.Add(dur)
		} else {
			occ.End = ov.End.In(loc)
		}
	} else if !ov.End.IsZero() && ov.End.After(occ.Start) {
		occ.End = ov.End.In(loc)
	}

	if ov.Summary != "" {
		occ.Summary = ov.Summary
	}
	if ov.Location != "" {
		occ.Location = ov.Location
	}
	return occ
}
