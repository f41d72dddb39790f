package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "dayplan/internal/log"
	"dayplan/internal/model"
)

// YAMLIngester parses hand-maintained event files:
//
//	timezone: Europe/London      # optional, defaults to the display zone
//	events:
//	  - uid: gym
//	    summary: Gym
//	    start: "2025-07-07T07:00"
//	    end: "2025-07-07T08:00"
//	    rrule: FREQ=WEEKLY;BYDAY=MO,WE,FR
//	    exdates: ["2025-07-09T07:00"]
//	    overrides:
//	      - original_start: "2025-07-11T07:00"
//	        start: "2025-07-11T18:00"
//	        end: "2025-07-11T19:00"
//
// Date-only start values mark all-day events.
type YAMLIngester struct {
	Location *time.Location
}

type yamlFile struct {
	Timezone string      `yaml:"timezone"`
	Events   []yamlEvent `yaml:"events"`
}

type yamlEvent struct {
	UID         string         `yaml:"uid"`
	Summary     string         `yaml:"summary"`
	Description string         `yaml:"description"`
	Location    string         `yaml:"location"`
	Icon        string         `yaml:"icon"`
	Start       string         `yaml:"start"`
	End         string         `yaml:"end"`
	RRule       string         `yaml:"rrule"`
	Cancelled   bool           `yaml:"cancelled"`
	ExDates     []string       `yaml:"exdates"`
	Overrides   []yamlOverride `yaml:"overrides"`
}

type yamlOverride struct {
	OriginalStart string `yaml:"original_start"`
	Cancelled     bool   `yaml:"cancelled"`
	Start         string `yaml:"start"`
	End           string `yaml:"end"`
	Summary       string `yaml:"summary"`
	Location      string `yaml:"location"`
}

var yamlLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Parse implements Ingester.
func (p YAMLIngester) Parse(src Source, raw []byte) (model.SourceBatch, error) {
	batch := model.SourceBatch{SourceID: src.ID}
	if len(bytes.TrimSpace(raw)) == 0 {
		return batch, errors.New("empty YAML body")
	}

	var f yamlFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return batch, fmt.Errorf("parse YAML events: %w", err)
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	if f.Timezone != "" {
		z, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return batch, fmt.Errorf("parse YAML events: timezone %q: %w", f.Timezone, err)
		}
		loc = z
	}

	skipped := 0
	for i, ev := range f.Events {
		def, ovs, err := parseYAMLEvent(src, ev, loc)
		if err != nil {
			skipped++
			appLog.Warn("yaml event skipped", "id", src.ID, "index", i, "err", err)
			continue
		}
		if def != nil {
			batch.Definitions = append(batch.Definitions, *def)
		}
		batch.Overrides = append(batch.Overrides, ovs...)
	}
	applyIcon(src, batch.Definitions)

	appLog.Info("yaml parse completed",
		"id", src.ID,
		"definitions", len(batch.Definitions),
		"overrides", len(batch.Overrides),
		"skipped", skipped,
	)

	if skipped > 0 {
		return batch, fmt.Errorf("%w: %d event(s) in %s", ErrSkippedEvents, skipped, src.ID)
	}
	return batch, nil
}

func parseYAMLEvent(src Source, ev yamlEvent, loc *time.Location) (*model.Definition, []model.Override, error) {
	uid := strings.TrimSpace(ev.UID)
	if uid == "" {
		return nil, nil, errors.New("missing uid")
	}
	if ev.Cancelled {
		return nil, nil, nil
	}

	start, allDay, err := parseYAMLTime(ev.Start, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("uid %s: start: %w", uid, err)
	}

	var end time.Time
	if ev.End != "" {
		if end, _, err = parseYAMLTime(ev.End, loc); err != nil {
			return nil, nil, fmt.Errorf("uid %s: end: %w", uid, err)
		}
	}
	if end.IsZero() || !end.After(start) {
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(defaultTimedDuration)
		}
	}

	def := &model.Definition{
		SourceID:    src.ID,
		UID:         uid,
		Summary:     strings.TrimSpace(ev.Summary),
		Description: strings.TrimSpace(ev.Description),
		Location:    strings.TrimSpace(ev.Location),
		Icon:        ev.Icon,
		AllDay:      allDay,
		Start:       start,
		End:         end,
		Rule:        strings.TrimPrefix(strings.TrimSpace(ev.RRule), "RRULE:"),
	}

	var overrides []model.Override
	for _, ex := range ev.ExDates {
		t, _, err := parseYAMLTime(ex, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("uid %s: exdate: %w", uid, err)
		}
		overrides = append(overrides, model.Override{UID: uid, OriginalStart: t, Kind: model.OverrideCancel})
	}

	for _, o := range ev.Overrides {
		orig, _, err := parseYAMLTime(o.OriginalStart, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("uid %s: override original_start: %w", uid, err)
		}
		ov := model.Override{UID: uid, OriginalStart: orig}
		if o.Cancelled {
			ov.Kind = model.OverrideCancel
			overrides = append(overrides, ov)
			continue
		}
		ov.Kind = model.OverrideReplace
		ov.Summary = strings.TrimSpace(o.Summary)
		ov.Location = strings.TrimSpace(o.Location)
		if o.Start != "" {
			if ov.Start, ov.AllDay, err = parseYAMLTime(o.Start, loc); err != nil {
				return nil, nil, fmt.Errorf("uid %s: override start: %w", uid, err)
			}
		}
		if o.End != "" {
			if ov.End, _, err = parseYAMLTime(o.End, loc); err != nil {
				return nil, nil, fmt.Errorf("uid %s: override end: %w", uid, err)
			}
		}
		overrides = append(overrides, ov)
	}

	return def, overrides, nil
}

// parseYAMLTime accepts RFC 3339, local date-times and bare dates. It
// reports whether the value was a bare date.
func parseYAMLTime(v string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}
	if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
		return t, true, nil
	}
	for _, layout := range yamlLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognised time %q", v)
}
