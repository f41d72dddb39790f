package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "dayplan/internal/log"
	"dayplan/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	defaultTimedDuration = time.Hour
)

// ErrRecurrenceRule reports an RRULE that could not be parsed or stepped.
var ErrRecurrenceRule = errors.New("recurrence rule")

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd)
	// an occurrence's start must fall in.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid extremely large
	// expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

func (c ExpandConfig) normalize() (ExpandConfig, error) {
	if c.RangeEnd.Before(c.RangeStart) {
		return c, errors.New("expand: RangeEnd is before RangeStart")
	}
	if c.DisplayLocation == nil {
		c.DisplayLocation = time.Local
	}
	if c.MaxOccurrencesPerEvent <= 0 {
		c.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	return c, nil
}

func (c ExpandConfig) contains(t time.Time) bool {
	return !t.Before(c.RangeStart) && t.Before(c.RangeEnd)
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
	// FallbackEvents records UIDs whose rule was unusable and were expanded
	// from their anchor only.
	FallbackEvents []string
}

// ExpandAll expands every definition in order. Output order is definition
// order, then chronological within a definition.
func ExpandAll(defs []model.Definition, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	cfg, err := cfg.normalize()
	if err != nil {
		return result, err
	}

	all := make([]model.Occurrence, 0, len(defs))
	for _, def := range defs {
		occ, hitCap, ruleErr := expand(def, cfg)
		if ruleErr != nil {
			result.FallbackEvents = append(result.FallbackEvents, def.UID)
			appLog.Warn("expand: unusable RRULE; using anchor occurrence only",
				"uid", def.UID,
				"source", def.SourceID,
				"rrule", def.Rule,
				"err", ruleErr,
			)
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, def.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", def.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		all = append(all, occ...)
	}

	result.Occurrences = all
	return result, nil
}

// Expand converts one definition into its concrete occurrences within the
// configured window. A malformed rule falls back to the anchor occurrence.
func Expand(def model.Definition, cfg ExpandConfig) ([]model.Occurrence, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	occ, _, _ := expand(def, cfg)
	return occ, nil
}

// expand returns the occurrences, whether the cap was hit, and the rule
// error that forced an anchor-only fallback, if any.
func expand(def model.Definition, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	if !def.Recurring() {
		return expandSingle(def, cfg), false, nil
	}

	occ, hitCap, err := expandRecurring(def, cfg)
	if err != nil {
		return expandSingle(def, cfg), false, err
	}
	return occ, hitCap, nil
}

func expandSingle(def model.Definition, cfg ExpandConfig) []model.Occurrence {
	if def.Start.IsZero() || !cfg.contains(def.Start) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(def, def.Start, cfg.DisplayLocation)}
}

func expandRecurring(def model.Definition, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	if def.Start.IsZero() {
		return nil, false, fmt.Errorf("%w: missing anchor start", ErrRecurrenceRule)
	}

	r, err := rrule.StrToRRule(def.Rule)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRecurrenceRule, err)
	}

	// Step from the event's DTSTART in its own timezone so DST shifts keep
	// the wall-clock time.
	r.DTStart(def.Start)

	rangeStart := cfg.RangeStart.In(def.Start.Location())
	rangeEnd := cfg.RangeEnd.In(def.Start.Location())

	// Between stops at rangeEnd, which bounds unterminated rules.
	times := r.Between(rangeStart, rangeEnd, true)

	out := make([]model.Occurrence, 0, len(times))
	hitCap := false
	for _, t := range times {
		if !cfg.contains(t) {
			continue
		}
		if len(out) == cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}
		out = append(out, makeOccurrence(def, t, cfg.DisplayLocation))
	}
	return out, hitCap, nil
}

// makeOccurrence builds the occurrence starting at start, preserving the
// definition's duration, normalized into displayLoc.
func makeOccurrence(def model.Definition, start time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	endLocal := start.Add(duration(def)).In(displayLoc)

	if def.AllDay {
		// All-day: keep whole local dates.
		startLocal = startOfDay(startLocal)
		days := int(duration(def).Round(24*time.Hour) / (24 * time.Hour))
		if days < 1 {
			days = 1
		}
		endLocal = startLocal.AddDate(0, 0, days)
	}

	return model.Occurrence{
		SourceID:      def.SourceID,
		UID:           def.UID,
		InstanceKey:   startLocal.Format(time.RFC3339),
		Summary:       def.Summary,
		Description:   def.Description,
		Location:      def.Location,
		Icon:          def.Icon,
		AllDay:        def.AllDay,
		OriginalStart: startLocal,
		Start:         startLocal,
		End:           endLocal,
	}
}

func duration(def model.Definition) time.Duration {
	d := def.End.Sub(def.Start)
	if def.End.IsZero() || d <= 0 {
		if def.AllDay {
			return 24 * time.Hour
		}
		return defaultTimedDuration
	}
	return d
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
