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

// TomorrowProvider fetches realtime temperature from Tomorrow.io. It
// queries by coordinates and requests imperial units.
type TomorrowProvider struct {
	name    string
	apiKey  string
	baseURL string
	cfg     TransportConfig
	circuit *gobreaker.CircuitBreaker
}

func NewTomorrowProvider(client *http.Client, apiKey string) *TomorrowProvider {
	return &TomorrowProvider{
		name:    "tomorrow.io",
		apiKey:  apiKey,
		baseURL: "https://api.tomorrow.io/v4/weather/realtime",
		cfg:     defaultTransport(client),
		circuit: newBreaker("tomorrow.io"),
	}
}

func (p *TomorrowProvider) Name() string {
	return p.name
}

func (p *TomorrowProvider) Fetch(ctx context.Context, city weather.City) (weather.TemperatureReading, error) {
	if p.apiKey == "" {
		return weather.TemperatureReading{}, fmt.Errorf("tomorrow.io: %w", errMissingAPIKey)
	}
	info, ok := city.Info()
	if !ok {
		return weather.TemperatureReading{}, fmt.Errorf("tomorrow.io: unsupported city %q", city)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("location", fmt.Sprintf("%.4f,%.4f", info.Lat, info.Lon))
		values.Set("apikey", p.apiKey)
		values.Set("units", "imperial")
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.cfg, p.circuit, buildRequest)
	if err != nil {
		return weather.TemperatureReading{}, fmt.Errorf("tomorrow.io: %w", err)
	}

	var payload struct {
		Data struct {
			Values struct {
				Temperature *float64 `json:"temperature"`
			} `json:"values"`
		} `json:"data"`
	}
	if err := decodeJSON(resp, &payload); err != nil {
		return weather.TemperatureReading{}, fmt.Errorf("tomorrow.io: %w", err)
	}
	if payload.Data.Values.Temperature == nil {
		return weather.TemperatureReading{}, fmt.Errorf("tomorrow.io: response missing data.values.temperature")
	}

	return weather.TemperatureReading{
		Source:       p.name,
		TemperatureF: *payload.Data.Values.Temperature,
		ObservedAt:   time.Now().UTC(),
	}, nil
}
