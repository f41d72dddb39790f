package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "dayplan/internal/log"
	"dayplan/internal/model"
)

// Source kinds accepted in the calendars section of the config.
const (
	KindICS  = "ics"
	KindYAML = "yaml"
)

// ErrSkippedEvents is returned alongside a usable batch when some entries
// of the payload could not be parsed and were dropped.
var ErrSkippedEvents = errors.New("some events were skipped")

// Ingester turns one source payload into normalized definitions and
// overrides. Implementations own every source-specific quirk.
type Ingester interface {
	Parse(src Source, raw []byte) (model.SourceBatch, error)
}

// IngesterFor returns the ingester for a source kind. Floating times are
// placed in loc.
func IngesterFor(kind string, loc *time.Location) (Ingester, error) {
	if loc == nil {
		loc = time.Local
	}
	switch strings.ToLower(kind) {
	case "", KindICS:
		return ICSIngester{Location: loc}, nil
	case KindYAML:
		return YAMLIngester{Location: loc}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

// Ingest parses a fetched payload and classifies the outcome. A payload
// that cannot be parsed at all yields a failed result with an empty batch.
func Ingest(res FetchResult, loc *time.Location) model.SourceResult {
	src := res.Source
	out := model.SourceResult{
		SourceID: src.ID,
		Batch:    model.SourceBatch{SourceID: src.ID},
	}

	if res.Err != nil {
		out.Status = model.StatusFailed
		out.Err = res.Err
		return out
	}

	ing, err := IngesterFor(src.Kind, loc)
	if err != nil {
		out.Status = model.StatusFailed
		out.Err = err
		return out
	}

	batch, err := ing.Parse(src, res.Body)
	switch {
	case err == nil:
		out.Batch = batch
		out.Status = model.StatusOK
		if res.FromCache {
			out.Status = model.StatusDegraded
		}
	case errors.Is(err, ErrSkippedEvents):
		out.Batch = batch
		out.Status = model.StatusDegraded
		out.Err = err
	default:
		out.Status = model.StatusFailed
		out.Err = err
		appLog.Error("source parse failed", err, "id", src.ID, "kind", src.Kind)
		return out
	}

	out.Batch.SourceID = src.ID
	return out
}

func applyIcon(src Source, defs []model.Definition) {
	if src.Icon == "" {
		return
	}
	for i := range defs {
		if defs[i].Icon == "" {
			defs[i].Icon = src.Icon
		}
	}
}
