package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/meteomarkets/weather-oracle/internal/weather"
)

// OpenWeatherProvider fetches current temperature from OpenWeatherMap.
// It queries by city name and requests imperial units.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	cfg     TransportConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		cfg:     defaultTransport(client),
		circuit: newBreaker("openweathermap"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, city weather.City) (weather.TemperatureReading, error) {
	if p.apiKey == "" {
		return weather.TemperatureReading{}, fmt.Errorf("openweathermap: %w", errMissingAPIKey)
	}
	info, ok := city.Info()
	if !ok {
		return weather.TemperatureReading{}, fmt.Errorf("openweathermap: unsupported city %q", city)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", info.Name)
		values.Set("appid", p.apiKey)
		values.Set("units", "imperial")
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.cfg, p.circuit, buildRequest)
	if err != nil {
		return weather.TemperatureReading{}, fmt.Errorf("openweathermap: %w", err)
	}

	var payload struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
	}
	if err := decodeJSON(resp, &payload); err != nil {
		return weather.TemperatureReading{}, fmt.Errorf("openweathermap: %w", err)
	}
	if payload.Main.Temp == nil {
		return weather.TemperatureReading{}, fmt.Errorf("openweathermap: response missing main.temp")
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	return weather.TemperatureReading{
		Source:       p.name,
		TemperatureF: *payload.Main.Temp,
		ObservedAt:   ts,
	}, nil
}
