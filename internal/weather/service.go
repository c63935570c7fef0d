package weather

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meteomarkets/weather-oracle/internal/metrics"
)

// Plausible temperature range; anything outside is treated as corrupt
// upstream data and discarded before aggregation.
const (
	MinPlausibleF = -50.0
	MaxPlausibleF = 130.0
)

// MinSources is the quorum: at least this many independent providers must
// agree to produce a valid reading before the median is trusted.
const MinSources = 2

var (
	// ErrQuorumNotMet signals fewer than MinSources valid readings. The
	// market must be escalated; the service never proceeds on a single
	// untrusted source.
	ErrQuorumNotMet = errors.New("weather: quorum not met")

	// ErrNoProviders signals a service constructed without providers.
	ErrNoProviders = errors.New("weather: no providers configured")

	// ErrUnknownCity signals a city outside the supported table.
	ErrUnknownCity = errors.New("weather: unknown city")
)

// Service aggregates temperatures from multiple providers into a single
// trusted value.
type Service struct {
	providers []Provider
	timeout   time.Duration
	log       zerolog.Logger
	rec       *metrics.Recorder
}

// NewService creates a Service over the given providers. timeout bounds a
// whole aggregation attempt so one hung provider cannot stall resolution.
func NewService(providers []Provider, timeout time.Duration, log zerolog.Logger, rec *metrics.Recorder) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		providers: providers,
		timeout:   timeout,
		log:       log.With().Str("component", "weather").Logger(),
		rec:       rec,
	}
}

// AggregateTemperature fetches from all providers concurrently, discards
// implausible readings, and returns the median once quorum is reached.
// Returns ErrQuorumNotMet when fewer than MinSources providers produced a
// valid reading.
func (s *Service) AggregateTemperature(ctx context.Context, city City) (*AggregatedTemperature, error) {
	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}
	if _, ok := city.Info(); !ok {
		return nil, ErrUnknownCity
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// One slot per provider keeps readings in configuration order.
	results := make([]*TemperatureReading, len(s.providers))

	var wg sync.WaitGroup
	for i, p := range s.providers {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := p.Fetch(ctx, city)
			if err != nil {
				// Degrade to "no reading"; partial success is expected.
				s.log.Warn().Err(err).Str("provider", p.Name()).Str("city", string(city)).
					Msg("provider fetch failed")
				s.rec.RecordProviderReading(p.Name(), "error")
				return
			}
			if r.TemperatureF < MinPlausibleF || r.TemperatureF > MaxPlausibleF {
				s.log.Warn().Str("provider", p.Name()).Str("city", string(city)).
					Float64("temperatureF", r.TemperatureF).
					Msg("discarding implausible reading")
				s.rec.RecordProviderReading(p.Name(), "out_of_range")
				return
			}
			s.rec.RecordProviderReading(p.Name(), "ok")
			results[i] = &r
		}()
	}
	wg.Wait()

	valid := make([]TemperatureReading, 0, len(results))
	for _, r := range results {
		if r != nil {
			valid = append(valid, *r)
		}
	}

	s.log.Info().Str("city", string(city)).
		Int("valid", len(valid)).Int("providers", len(s.providers)).
		Msg("weather fetch complete")
	for _, r := range valid {
		s.log.Debug().Str("source", r.Source).Float64("temperatureF", r.TemperatureF).
			Msg("provider reading")
	}

	if len(valid) < MinSources {
		s.rec.RecordAggregationFailure()
		s.log.Error().Str("city", string(city)).
			Int("valid", len(valid)).Int("required", MinSources).
			Msg("quorum not met")
		return nil, ErrQuorumNotMet
	}

	return &AggregatedTemperature{
		MedianF:  median(valid),
		Sources:  len(valid),
		Readings: valid,
	}, nil
}

// median returns the middle temperature for an odd count, or the mean of
// the two middle temperatures for an even count.
func median(readings []TemperatureReading) float64 {
	temps := make([]float64, len(readings))
	for i, r := range readings {
		temps[i] = r.TemperatureF
	}
	sort.Float64s(temps)

	mid := len(temps) / 2
	if len(temps)%2 == 0 {
		return (temps[mid-1] + temps[mid]) / 2
	}
	return temps[mid]
}
