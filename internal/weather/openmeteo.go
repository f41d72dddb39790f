package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "dayplan/internal/log"
)

// DefaultBaseURL is the Open-Meteo forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// ErrForecastUnavailable reports a forecast that could not be fetched or
// decoded. The location is then omitted from the document.
var ErrForecastUnavailable = errors.New("forecast unavailable")

// Location is a named point to fetch a forecast for.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Result is the outcome for one location: one Forecast per day, or Err.
type Result struct {
	Location Location
	Days     []Forecast
	Err      error
}

// Day returns the forecast for date (YYYY-MM-DD), if present.
func (r Result) Day(date string) (Forecast, bool) {
	for _, d := range r.Days {
		if d.Date == date {
			return d, true
		}
	}
	return Forecast{}, false
}

// Client fetches forecasts from Open-Meteo.
type Client struct {
	baseURL string
	http    *http.Client
	days    int
}

// NewClient creates a Client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		days:    2,
	}
}

type apiResponse struct {
	Daily struct {
		Time  []string   `json:"time"`
		TMax  []*float64 `json:"temperature_2m_max"`
		TMin  []*float64 `json:"temperature_2m_min"`
		UVMax []*float64 `json:"uv_index_max"`
	} `json:"daily"`
	Hourly struct {
		Time        []string   `json:"time"`
		Probability []*float64 `json:"precipitation_probability"`
		Precip      []*float64 `json:"precipitation"`
		UV          []*float64 `json:"uv_index"`
	} `json:"hourly"`
}

// FetchAll fetches every location in parallel. The result slice is aligned
// with locs; a failed location carries Err wrapping ErrForecastUnavailable.
func (c *Client) FetchAll(ctx context.Context, locs []Location, tz *time.Location) []Result {
	results := make([]Result, len(locs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, loc := range locs {
		g.Go(func() error {
			days, err := c.Forecast(gctx, loc, tz)
			if err != nil {
				appLog.Warn("weather: location omitted", "location", loc.Name, "err", err)
			}
			results[i] = Result{Location: loc, Days: days, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Forecast fetches the daily and hourly forecast for loc, split by date in tz.
func (c *Client) Forecast(ctx context.Context, loc Location, tz *time.Location) ([]Forecast, error) {
	if tz == nil {
		tz = time.Local
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrForecastUnavailable, err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("timezone", tz.String())
	q.Set("daily", "temperature_2m_max,temperature_2m_min,uv_index_max")
	q.Set("hourly", "precipitation_probability,precipitation,uv_index")
	q.Set("forecast_days", strconv.Itoa(c.days))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForecastUnavailable, err)
	}

	appLog.Debug("weather fetch start", "location", loc.Name)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForecastUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrForecastUnavailable, resp.Status)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrForecastUnavailable, err)
	}

	days := body.toForecasts(loc.Name, tz)
	appLog.Info("weather fetch success", "location", loc.Name, "days", len(days))
	return days, nil
}

func (r apiResponse) toForecasts(name string, tz *time.Location) []Forecast {
	days := make([]Forecast, len(r.Daily.Time))
	index := make(map[string]int, len(days))
	for i, date := range r.Daily.Time {
		days[i] = Forecast{
			Location: name,
			Date:     date,
			TempMax:  at(r.Daily.TMax, i),
			TempMin:  at(r.Daily.TMin, i),
			UVMax:    at(r.Daily.UVMax, i),
		}
		index[date] = i
	}

	for i, raw := range r.Hourly.Time {
		t, err := time.ParseInLocation("2006-01-02T15:04", raw, tz)
		if err != nil {
			continue
		}
		di, ok := index[t.Format("2006-01-02")]
		if !ok {
			continue
		}
		days[di].Hours = append(days[di].Hours, Hour{
			Time:              t,
			PrecipProbability: at(r.Hourly.Probability, i),
			PrecipMM:          at(r.Hourly.Precip, i),
			UV:                at(r.Hourly.UV, i),
		})
	}
	return days
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}
