package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "dayplan/internal/log"
	"dayplan/internal/model"
)

// ICSIngester parses iCalendar payloads.
//
//   - DATE values are all-day and floating.
//   - DATE-TIME values ending in Z are UTC; with TZID they are zoned
//     (IANA or Windows names; an unknown TZID falls back to Location);
//     otherwise floating.
//   - DTEND wins over DURATION; with neither, the event lasts one hour
//     (timed) or one day (all-day).
//   - Floating values are placed in Location.
//   - RRULE is kept raw; expansion happens in Expand.
//   - EXDATE and RECURRENCE-ID become overrides.
type ICSIngester struct {
	Location *time.Location
}

func (p ICSIngester) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// Parse implements Ingester.
func (p ICSIngester) Parse(src Source, body []byte) (model.SourceBatch, error) {
	batch := model.SourceBatch{SourceID: src.ID}
	if len(bytes.TrimSpace(body)) == 0 {
		return batch, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return batch, fmt.Errorf("parse ICS: %w", err)
	}

	skipped := 0
	for _, ve := range cal.Events() {
		def, ovs, perr := p.parseVEvent(src, ve)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			skipped++
			appLog.Warn("ics vevent skipped", "id", src.ID, "url", redactURL(src.URL), "err", perr)
			continue
		}
		if def != nil {
			batch.Definitions = append(batch.Definitions, *def)
		}
		batch.Overrides = append(batch.Overrides, ovs...)
	}
	applyIcon(src, batch.Definitions)

	appLog.Info("ics parse completed",
		"id", src.ID,
		"url", redactURL(src.URL),
		"definitions", len(batch.Definitions),
		"overrides", len(batch.Overrides),
		"skipped", skipped,
	)

	if skipped > 0 {
		return batch, fmt.Errorf("%w: %d VEVENT(s) in %s", ErrSkippedEvents, skipped, src.ID)
	}
	return batch, nil
}

// parseVEvent returns the definition (nil for exception instances and
// cancelled masters) and any overrides the VEVENT carries.
func (p ICSIngester) parseVEvent(src Source, ve *ical.VEvent) (*model.Definition, []model.Override, error) {
	loc := p.location()

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return nil, nil, errors.New("missing UID")
	}
	uid := strings.TrimSpace(uidProp.Value)

	summary := propValue(ve, ical.ComponentPropertySummary)
	description := propValue(ve, ical.ComponentPropertyDescription)
	location := propValue(ve, ical.ComponentPropertyLocation)
	cancelled := strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "CANCELLED")

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return nil, nil, fmt.Errorf("uid %s: missing DTSTART", uid)
	}
	start, allDay, err := parseICSTime(dtStart.Value, dtStart.ICalParameters, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("uid %s: DTSTART: %w", uid, err)
	}

	var end time.Time
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		if end, _, err = parseICSTime(dtEnd.Value, dtEnd.ICalParameters, loc); err != nil {
			return nil, nil, fmt.Errorf("uid %s: DTEND: %w", uid, err)
		}
	} else if dur := ve.GetProperty(ical.ComponentPropertyDuration); dur != nil {
		d, err := parseICSDuration(dur.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("uid %s: %w", uid, err)
		}
		end = d.addTo(start)
	}
	if end.IsZero() || !end.After(start) {
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(defaultTimedDuration)
		}
	}

	// RECURRENCE-ID: this VEVENT corrects one instance of a series.
	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		orig, _, err := parseICSTime(rid.Value, rid.ICalParameters, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("uid %s: RECURRENCE-ID: %w", uid, err)
		}
		ov := model.Override{UID: uid, OriginalStart: orig}
		if cancelled || (summary == "" && location == "" && description == "") {
			ov.Kind = model.OverrideCancel
		} else {
			ov.Kind = model.OverrideReplace
			ov.Start = start
			ov.End = end
			ov.AllDay = allDay
			ov.Summary = summary
			ov.Location = location
		}
		return nil, []model.Override{ov}, nil
	}

	if cancelled {
		appLog.Debug("ics cancelled event dropped", "id", src.ID, "uid", uid)
		return nil, nil, nil
	}

	def := &model.Definition{
		SourceID:    src.ID,
		UID:         uid,
		Summary:     summary,
		Description: description,
		Location:    location,
		AllDay:      allDay,
		Start:       start,
		End:         end,
	}
	if rr := ve.GetProperty(ical.ComponentPropertyRrule); rr != nil {
		def.Rule = strings.TrimPrefix(strings.TrimSpace(rr.Value), "RRULE:")
	}

	var overrides []model.Override
	for _, ex := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(ex.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, _, err := parseICSTime(part, ex.ICalParameters, loc)
			if err != nil {
				appLog.Warn("ics EXDATE ignored", "id", src.ID, "uid", uid, "value", part, "err", err)
				continue
			}
			overrides = append(overrides, model.Override{
				UID:           uid,
				OriginalStart: t,
				Kind:          model.OverrideCancel,
			})
		}
	}

	return def, overrides, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// parseICSTime parses an ICS DATE or DATE-TIME value using its TZID and
// VALUE parameters. It reports whether the value is a DATE (all-day).
func parseICSTime(v string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	isDate := !strings.Contains(v, "T")
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}

	if isDate {
		t, err := time.ParseInLocation("20060102", v, loc)
		return t, true, err
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	zone := loc
	if tzs := params["TZID"]; len(tzs) > 0 && tzs[0] != "" {
		zone = zoneFor(tzs[0], loc)
	}
	t, err := time.ParseInLocation("20060102T150405", v, zone)
	return t, false, err
}
