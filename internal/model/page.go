package model

import "time"

// AgendaEntry is a display-ready agenda line for one day.
type AgendaEntry struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	DisplayTime string    `json:"display_time"`
	Icon        string    `json:"icon"`
	Summary     string    `json:"summary"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// TaskItem is one line of a day's task list. Order is source order.
type TaskItem struct {
	Text string `json:"text"`
}

// Tasks converts plain strings into task items, dropping blank lines.
func Tasks(lines ...string) []TaskItem {
	out := make([]TaskItem, 0, len(lines))
	for _, l := range lines {
		if l == "" {
			continue
		}
		out = append(out, TaskItem{Text: l})
	}
	return out
}

// WeatherSummary is the reduced forecast for one location and day.
// Nil fields were unavailable in the forecast.
type WeatherSummary struct {
	Location string `json:"location"`
	Date     string `json:"date"` // YYYY-MM-DD

	TempMin *int `json:"temp_min,omitempty"`
	TempMax *int `json:"temp_max,omitempty"`

	RainMM     *float64 `json:"rain_mm,omitempty"`
	// First contiguous run of likely hours; later runs appear only in the
	// narrative.
	LikelyFrom *int     `json:"likely_from,omitempty"`
	LikelyTo   *int     `json:"likely_to,omitempty"`

	PeakProbability *int `json:"peak_probability,omitempty"`
	PeakHour        *int `json:"peak_hour,omitempty"`

	UV *int `json:"uv,omitempty"`

	Narrative string `json:"narrative"`
}

// Epigraph is an optional quote shown on the first page of a day.
type Epigraph struct {
	Quote  string `json:"quote"`
	Author string `json:"author,omitempty"`
}

// PageKind distinguishes content pages from the trailing notes page.
type PageKind string

const (
	PageContent PageKind = "content"
	PageNotes   PageKind = "notes"
)

// Section is the state of one list (events or tasks) on a content page.
// Exactly one of: items present, or EmptyText set.
type Section[T any] struct {
	Title            string `json:"title"`
	Items            []T    `json:"items"`
	Continued        bool   `json:"continued"`
	ContinuationText string `json:"continuation_text,omitempty"`
	EmptyText        string `json:"empty_text,omitempty"`
}

// PageDescriptor is one page of the planning document. Field names are
// consumed by the renderer and must stay stable.
type PageDescriptor struct {
	Kind  PageKind `json:"kind"`
	Label string   `json:"label"` // today, tomorrow or notes
	Day   string   `json:"day"`   // today or tomorrow
	Date  string   `json:"date"`  // YYYY-MM-DD

	Header   string    `json:"header,omitempty"`
	Epigraph *Epigraph `json:"epigraph,omitempty"`

	Weather         []WeatherSummary `json:"weather,omitempty"`
	TomorrowWeather []WeatherSummary `json:"tomorrow_weather,omitempty"`

	Events Section[AgendaEntry] `json:"events"`
	Tasks  Section[TaskItem]    `json:"tasks"`

	// PageIndex is 1-based within the day; PageCount includes the notes page.
	PageIndex int `json:"page_index"`
	PageCount int `json:"page_count"`

	// DocumentPage / DocumentPages number the page within the whole document.
	DocumentPage  int `json:"document_page"`
	DocumentPages int `json:"document_pages"`
}

// Document is the ordered page sequence handed to the renderer: today's
// pages (notes page inline) followed by tomorrow's.
type Document struct {
	Name         string           `json:"name"`
	VisibleName  string           `json:"visible_name"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Timezone     string           `json:"timezone"`
	ItemsPerPage int              `json:"items_per_page"`
	Pages        []PageDescriptor `json:"pages"`
}
