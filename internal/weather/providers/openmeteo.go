package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/meteomarkets/weather-oracle/internal/weather"
)

// OpenMeteoProvider fetches current temperature from Open-Meteo. No API key
// is required; it queries by coordinates.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	cfg     TransportConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		cfg:     defaultTransport(client),
		circuit: newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, city weather.City) (weather.TemperatureReading, error) {
	info, ok := city.Info()
	if !ok {
		return weather.TemperatureReading{}, fmt.Errorf("openmeteo: unsupported city %q", city)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(info.Lat, 'f', 4, 64))
		values.Set("longitude", strconv.FormatFloat(info.Lon, 'f', 4, 64))
		values.Set("current", "temperature_2m")
		values.Set("temperature_unit", "fahrenheit")
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.cfg, p.circuit, buildRequest)
	if err != nil {
		return weather.TemperatureReading{}, fmt.Errorf("openmeteo: %w", err)
	}

	var payload struct {
		Current struct {
			Temperature *float64 `json:"temperature_2m"`
		} `json:"current"`
	}
	if err := decodeJSON(resp, &payload); err != nil {
		return weather.TemperatureReading{}, fmt.Errorf("openmeteo: %w", err)
	}
	if payload.Current.Temperature == nil {
		return weather.TemperatureReading{}, fmt.Errorf("openmeteo: response missing current.temperature_2m")
	}

	return weather.TemperatureReading{
		Source:       p.name,
		TemperatureF: *payload.Current.Temperature,
		ObservedAt:   time.Now().UTC(),
	}, nil
}
