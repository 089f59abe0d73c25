package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pairsense-backend/internal/models"
)

// WeatherLookup is the external weather collaborator. Failures are soft:
// the caller logs and drops the event, the next qualifying change retries
// naturally.
type WeatherLookup interface {
	Lookup(ctx context.Context, lat, lng float64) (*models.WeatherSnapshot, error)
}

// WeatherClient queries an OpenWeather-compatible endpoint.
type WeatherClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ WeatherLookup = (*WeatherClient)(nil)

// NewWeatherClient creates a weather client
func NewWeatherClient(baseURL, apiKey string, timeout time.Duration) *WeatherClient {
	return &WeatherClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// weatherResponse is the subset of the upstream body the pipeline uses.
type weatherResponse struct {
	Weather []struct {
		Main string `json:"main"`
		Icon string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

// Lookup fetches current conditions for a coordinate and maps them onto the
// closed snapshot vocabulary. The snapshot's UpdatedAt is left zero; the
// write path assigns it.
func (c *WeatherClient) Lookup(ctx context.Context, lat, lng float64) (*models.WeatherSnapshot, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lng))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather lookup returned status %d", resp.StatusCode)
	}

	var raw weatherResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse weather response: %w", err)
	}

	snapshot := &models.WeatherSnapshot{
		Condition:    models.WeatherUnknown,
		TemperatureC: raw.Main.Temp,
		IsDaytime:    Daytime(raw.Dt, raw.Sys.Sunrise, raw.Sys.Sunset),
	}
	if len(raw.Weather) > 0 {
		snapshot.Condition = MapCondition(raw.Weather[0].Main)
		if raw.Weather[0].Icon != "" {
			icon := raw.Weather[0].Icon
			snapshot.IconCode = &icon
		}
	}
	return snapshot, nil
}

// MapCondition folds a raw upstream condition string into the closed enum
// by keyword.
func MapCondition(main string) models.WeatherCondition {
	m := strings.ToLower(main)
	switch {
	case strings.Contains(m, "clear"):
		return models.WeatherClear
	case strings.Contains(m, "cloud"):
		return models.WeatherCloudy
	case strings.Contains(m, "rain"), strings.Contains(m, "drizzle"):
		return models.WeatherRain
	case strings.Contains(m, "thunder"):
		return models.WeatherStorm
	case strings.Contains(m, "snow"):
		return models.WeatherSnow
	default:
		return models.WeatherUnknown
	}
}

// Daytime computes sunrise <= observation < sunset, or nil when any of the
// three epochs is missing.
func Daytime(dt, sunrise, sunset int64) *bool {
	if dt == 0 || sunrise == 0 || sunset == 0 {
		return nil
	}
	day := dt >= sunrise && dt < sunset
	return &day
}
