package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meteomarkets/weather-oracle/internal/market"
	"github.com/meteomarkets/weather-oracle/internal/scheduler"
	"github.com/meteomarkets/weather-oracle/internal/weather"
)

func newTestApp(t *testing.T) (*fiber.App, *scheduler.Scheduler) {
	t.Helper()

	sched := scheduler.New(nil, nil, time.Hour, time.Minute, zerolog.Nop(), nil)
	t.Cleanup(sched.Stop)

	app := fiber.New()
	RegisterRoutes(app, sched)
	return app, sched
}

func scheduleTestMarket(t *testing.T, sched *scheduler.Scheduler, id string) market.Market {
	t.Helper()

	m := market.Market{
		ConditionID:    common.HexToHash(id),
		City:           weather.CityNYC,
		LowerBoundF:    65,
		UpperBoundF:    75,
		ResolutionTime: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, sched.ScheduleResolution(m))
	return m
}

func TestHealthEndpoint(t *testing.T) {
	app, sched := newTestApp(t)
	scheduleTestMarket(t, sched, "0x01")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status           string `json:"status"`
		ScheduledMarkets int    `json:"scheduledMarkets"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, 1, body.ScheduledMarkets)
}

func TestScheduledMarketsEndpoint(t *testing.T) {
	app, sched := newTestApp(t)
	m := scheduleTestMarket(t, sched, "0x02")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/markets/scheduled", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count        int      `json:"count"`
		ConditionIDs []string `json:"conditionIds"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, []string{m.ConditionID.Hex()}, body.ConditionIDs)
}

func TestCancelScheduledMarket(t *testing.T) {
	app, sched := newTestApp(t)
	m := scheduleTestMarket(t, sched, "0x03")

	url := "/api/v1/markets/scheduled/" + m.ConditionID.Hex()

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, url, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, sched.IsScheduled(m.ConditionID.Hex()))

	// Second cancel finds nothing.
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, url, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
