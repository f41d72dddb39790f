package model

import "time"

// Definition is a calendar entry as ingested from one source, before
// recurrence expansion. It is immutable once parsed.
type Definition struct {
	SourceID string // calendar source ID (e.g., config calendar ID)
	UID      string // iCalendar UID

	Summary     string
	Description string
	Location    string

	// Icon, if set, is used instead of keyword-based icon selection.
	Icon string

	AllDay bool

	// Start / End are in the event's own timezone. Floating values have
	// already been placed in the display timezone by the ingester.
	Start time.Time
	End   time.Time

	// Rule is the raw RRULE value without the "RRULE:" prefix; empty for
	// single events.
	Rule string
}

// Recurring reports whether the definition carries a recurrence rule.
func (d Definition) Recurring() bool {
	return d.Rule != ""
}

// OverrideKind selects what an Override does to its occurrence.
type OverrideKind int

const (
	OverrideReplace OverrideKind = iota
	OverrideCancel
)

func (k OverrideKind) String() string {
	if k == OverrideCancel {
		return "cancel"
	}
	return "replace"
}

// Override cancels or corrects exactly one occurrence, identified by the
// event UID and the occurrence's original start instant.
type Override struct {
	UID           string
	OriginalStart time.Time

	Kind OverrideKind

	// Replacement values; zero values keep the occurrence's own.
	Start    time.Time
	End      time.Time
	AllDay   bool
	Summary  string
	Location string
}

// Key returns the lookup key of the occurrence this override targets.
func (o Override) Key() OccurrenceKey {
	return NewOccurrenceKey(o.UID, o.OriginalStart)
}

// OccurrenceKey identifies one occurrence: (identity, original start).
type OccurrenceKey struct {
	UID   string
	Start int64 // unix seconds of the original start
}

func NewOccurrenceKey(uid string, start time.Time) OccurrenceKey {
	return OccurrenceKey{UID: uid, Start: start.Unix()}
}

// SourceBatch is everything one calendar source supplied, already parsed
// from its wire format.
type SourceBatch struct {
	SourceID    string
	Definitions []Definition
	Overrides   []Override
}

// Status classifies the outcome of a boundary-facing operation.
type Status int

const (
	StatusOK Status = iota
	StatusDegraded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SourceResult is what the data layer hands the planner for one source.
// A failed source carries an empty batch and the cause in Err.
type SourceResult struct {
	SourceID string
	Batch    SourceBatch
	Status   Status
	Err      error
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the original local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string
	Icon        string

	AllDay bool

	// OriginalStart is the start the recurrence produced, before any
	// override moved it. Overrides are matched against it.
	OriginalStart time.Time

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Key returns the (identity, original start) key of the occurrence.
func (o Occurrence) Key() OccurrenceKey {
	return NewOccurrenceKey(o.UID, o.OriginalStart)
}
