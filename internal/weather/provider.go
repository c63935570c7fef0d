package weather

import (
	"context"
)

// Provider abstracts a temperature data source (e.g. OpenWeatherMap,
// Open-Meteo, Tomorrow.io). Fetch returns a single Fahrenheit reading for
// the city, or an error; transport retries live inside the provider.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, city City) (TemperatureReading, error)
}
