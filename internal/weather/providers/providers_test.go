package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteomarkets/weather-oracle/internal/weather"
)

func fastBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func testClient() *http.Client {
	return &http.Client{Timeout: time.Second}
}

func TestOpenWeatherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "New York City", r.URL.Query().Get("q"))
		assert.Equal(t, "imperial", r.URL.Query().Get("units"))
		w.Write([]byte(`{"dt":1700000000,"main":{"temp":72.5}}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(testClient(), "key")
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	r, err := p.Fetch(context.Background(), weather.CityNYC)
	require.NoError(t, err)
	require.Equal(t, "openweathermap", r.Source)
	require.Equal(t, 72.5, r.TemperatureF)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), r.ObservedAt)
}

func TestOpenWeatherMissingAPIKey(t *testing.T) {
	p := NewOpenWeatherProvider(testClient(), "")

	_, err := p.Fetch(context.Background(), weather.CityNYC)
	require.ErrorIs(t, err, errMissingAPIKey)
}

func TestOpenMeteoFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "temperature_2m", r.URL.Query().Get("current"))
		assert.Equal(t, "fahrenheit", r.URL.Query().Get("temperature_unit"))
		w.Write([]byte(`{"current":{"temperature_2m":68.2}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(testClient())
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	r, err := p.Fetch(context.Background(), weather.CityChicago)
	require.NoError(t, err)
	require.Equal(t, "openmeteo", r.Source)
	require.Equal(t, 68.2, r.TemperatureF)
}

func TestTomorrowFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "imperial", r.URL.Query().Get("units"))
		w.Write([]byte(`{"data":{"values":{"temperature":75.1}}}`))
	}))
	defer srv.Close()

	p := NewTomorrowProvider(testClient(), "key")
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	r, err := p.Fetch(context.Background(), weather.CityMiami)
	require.NoError(t, err)
	require.Equal(t, "tomorrow.io", r.Source)
	require.Equal(t, 75.1, r.TemperatureF)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"current":{"temperature_2m":70}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(testClient())
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	r, err := p.Fetch(context.Background(), weather.CityNYC)
	require.NoError(t, err)
	require.Equal(t, 70.0, r.TemperatureF)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"current":{"temperature_2m":70}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(testClient())
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	_, err := p.Fetch(context.Background(), weather.CityNYC)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(testClient())
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	_, err := p.Fetch(context.Background(), weather.CityNYC)
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx other than 429 must fail immediately")
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(testClient())
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	_, err := p.Fetch(context.Background(), weather.CityNYC)
	require.Error(t, err)
	require.Equal(t, int32(4), atomic.LoadInt32(&calls), "initial attempt plus three retries")
}

func TestFetchMissingFieldIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current":{}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(testClient())
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	_, err := p.Fetch(context.Background(), weather.CityNYC)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing")
}

func TestFetchMalformedJSONIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":`))
	}))
	defer srv.Close()

	p := NewTomorrowProvider(testClient(), "key")
	p.baseURL = srv.URL
	p.cfg.Backoff = fastBackoff()

	_, err := p.Fetch(context.Background(), weather.CityAustin)
	require.Error(t, err)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(testClient())
	p.baseURL = srv.URL
	p.cfg.Backoff = BackoffConfig{MaxRetries: 10, InitialInterval: 50 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Fetch(ctx, weather.CityNYC)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
