package weather

import (
	"time"
)

// City identifies one of the markets' supported metro areas.
type City string

const (
	CityNYC     City = "NYC"
	CityChicago City = "CHICAGO"
	CityMiami   City = "MIAMI"
	CityAustin  City = "AUSTIN"
)

// CityInfo carries the display name and coordinates used by providers
// that query by location rather than by name.
type CityInfo struct {
	Name string
	Lat  float64
	Lon  float64
}

// Cities is the closed table of supported cities.
var Cities = map[City]CityInfo{
	CityNYC:     {Name: "New York City", Lat: 40.7128, Lon: -74.0060},
	CityChicago: {Name: "Chicago", Lat: 41.8781, Lon: -87.6298},
	CityMiami:   {Name: "Miami", Lat: 25.7617, Lon: -80.1918},
	CityAustin:  {Name: "Austin", Lat: 30.2672, Lon: -97.7431},
}

// Info returns the city's metadata. The second return is false for cities
// outside the supported table.
func (c City) Info() (CityInfo, bool) {
	info, ok := Cities[c]
	return info, ok
}

// TemperatureReading is a single provider's observation in Fahrenheit.
type TemperatureReading struct {
	Source       string    `json:"source"`
	TemperatureF float64   `json:"temperatureF"`
	ObservedAt   time.Time `json:"observedAt"` // always UTC
}

// AggregatedTemperature is the quorum-checked view over all provider
// readings for one resolution attempt. It is never mutated after creation
// and is not persisted anywhere.
type AggregatedTemperature struct {
	MedianF  float64              `json:"medianF"`
	Sources  int                  `json:"sources"`
	Readings []TemperatureReading `json:"readings"`
}
