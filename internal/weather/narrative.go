// Package weather reduces Open-Meteo forecasts into one-line narratives.
package weather

import (
	"fmt"
	"math"
	"strings"
	"time"

	"dayplan/internal/model"
)

// DefaultLikelyThreshold is the precipitation probability (percent) an
// hour must exceed to count towards the "likely" window.
const DefaultLikelyThreshold = 50

// UnavailableNarrative is used when no forecast field is present.
const UnavailableNarrative = "Weather summary unavailable"

// Hour is one hourly forecast slot. Nil fields were missing.
type Hour struct {
	Time              time.Time
	PrecipProbability *float64
	PrecipMM          *float64
	UV                *float64
}

// Forecast is the raw forecast for one location on one day.
type Forecast struct {
	Location string
	Date     string // YYYY-MM-DD

	TempMin *float64
	TempMax *float64
	UVMax   *float64

	Hours []Hour
}

// Summarize builds the WeatherSummary and its narrative, e.g.
// "20–30°C; Rain 5.2mm, likely 08-17, Peak 80% @ 14; UV 8".
// Missing fields drop their clause instead of failing.
func Summarize(f Forecast, likelyThreshold int) model.WeatherSummary {
	s := model.WeatherSummary{Location: f.Location, Date: f.Date}

	var clauses []string

	if c := temperatureClause(f, &s); c != "" {
		clauses = append(clauses, c)
	}
	if c := rainClause(f, likelyThreshold, &s); c != "" {
		clauses = append(clauses, c)
	}
	if c := uvClause(f, &s); c != "" {
		clauses = append(clauses, c)
	}

	if len(clauses) == 0 {
		s.Narrative = UnavailableNarrative
	} else {
		s.Narrative = strings.Join(clauses, "; ")
	}
	return s
}

func temperatureClause(f Forecast, s *model.WeatherSummary) string {
	switch {
	case f.TempMin != nil && f.TempMax != nil:
		lo, hi := roundInt(*f.TempMin), roundInt(*f.TempMax)
		if lo > hi {
			lo, hi = hi, lo
		}
		s.TempMin, s.TempMax = &lo, &hi
		if lo == hi {
			return fmt.Sprintf("%d°C", lo)
		}
		return fmt.Sprintf("%d–%d°C", lo, hi)
	case f.TempMax != nil:
		hi := roundInt(*f.TempMax)
		s.TempMax = &hi
		return fmt.Sprintf("%d°C", hi)
	case f.TempMin != nil:
		lo := roundInt(*f.TempMin)
		s.TempMin = &lo
		return fmt.Sprintf("%d°C", lo)
	}
	return ""
}

func rainClause(f Forecast, threshold int, s *model.WeatherSummary) string {
	var (
		total      float64
		haveAmount bool
		haveProb   bool

		peakProb, peakHour = 0, -1
	)
	var runs []hourRun

	for _, h := range f.Hours {
		if h.PrecipMM != nil {
			haveAmount = true
			total += *h.PrecipMM
		}
		if h.PrecipProbability == nil {
			continue
		}
		haveProb = true
		p := roundInt(*h.PrecipProbability)
		hour := h.Time.Hour()
		if p > threshold {
			if n := len(runs); n > 0 && runs[n-1].to == hour-1 {
				runs[n-1].to = hour
			} else {
				runs = append(runs, hourRun{from: hour, to: hour})
			}
		}
		if p > peakProb {
			peakProb, peakHour = p, hour
		}
	}

	var parts []string
	var likely, peak string
	if len(runs) > 0 {
		s.LikelyFrom, s.LikelyTo = intPtr(runs[0].from), intPtr(runs[0].to)
		spans := make([]string, len(runs))
		for i, r := range runs {
			spans[i] = r.String()
		}
		likely = strings.Join(spans, ", ")
	}
	if peakHour >= 0 {
		s.PeakProbability, s.PeakHour = intPtr(peakProb), intPtr(peakHour)
		peak = fmt.Sprintf("Peak %d%% @ %02d", peakProb, peakHour)
	}

	switch {
	case haveAmount:
		rounded := math.Round(total*10) / 10
		s.RainMM = &rounded
		if rounded <= 0 {
			parts = append(parts, "No rain expected")
			if peak != "" {
				parts = append(parts, peak)
			}
			break
		}
		parts = append(parts, fmt.Sprintf("Rain %.1fmm", rounded))
		if likely != "" {
			parts = append(parts, "likely "+likely)
		}
		if peak != "" {
			parts = append(parts, peak)
		}
	case haveProb:
		if likely != "" {
			parts = append(parts, "Rain likely "+likely)
		}
		if peak != "" {
			parts = append(parts, peak)
		}
		if len(parts) == 0 {
			parts = append(parts, "No rain expected")
		}
	}

	return strings.Join(parts, ", ")
}

// hourRun is a contiguous range of hours above the likely threshold.
type hourRun struct{ from, to int }

func (r hourRun) String() string {
	if r.from == r.to {
		return fmt.Sprintf("%02d", r.from)
	}
	return fmt.Sprintf("%02d-%02d", r.from, r.to)
}

func uvClause(f Forecast, s *model.WeatherSummary) string {
	uv := f.UVMax
	if uv == nil {
		for _, h := range f.Hours {
			if h.UV != nil && (uv == nil || *h.UV > *uv) {
				v := *h.UV
				uv = &v
			}
		}
	}
	if uv == nil {
		return ""
	}
	n := roundInt(*uv)
	s.UV = &n
	return fmt.Sprintf("UV %d", n)
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func intPtr(v int) *int {
	return &v
}
