package scheduler

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/meteomarkets/weather-oracle/internal/market"
	"github.com/meteomarkets/weather-oracle/internal/metrics"
	"github.com/meteomarkets/weather-oracle/internal/weather"
)

// DefaultGraceDelay is how long past a market's resolution time the oracle
// waits before resolving, so provider data catches up to the deadline.
const DefaultGraceDelay = time.Minute

// DefaultFireTimeout bounds one whole resolution attempt
// (aggregate + submit + confirmation wait).
const DefaultFireTimeout = 5 * time.Minute

// Aggregator produces a trusted temperature for a city.
type Aggregator interface {
	AggregateTemperature(ctx context.Context, city weather.City) (*weather.AggregatedTemperature, error)
}

// Resolver submits a market resolution on-chain.
type Resolver interface {
	ResolveMarket(ctx context.Context, req market.ResolutionRequest) (market.ResolutionResult, error)
}

// job is one pending resolution. Owned exclusively by the Scheduler's
// table; it leaves the table exactly once, on fire or cancel.
type job struct {
	market market.Market
	fireAt time.Time
	timer  *time.Timer
}

// Scheduler holds the pending-resolutions table and fires each market's
// one-shot resolution at resolutionTime + grace. Jobs fire independently
// and concurrently; nothing serializes two different markets against each
// other.
type Scheduler struct {
	jobs        cmap.ConcurrentMap[string, *job]
	agg         Aggregator
	resolver    Resolver
	grace       time.Duration
	fireTimeout time.Duration
	log         zerolog.Logger
	rec         *metrics.Recorder
}

func New(agg Aggregator, resolver Resolver, grace, fireTimeout time.Duration, log zerolog.Logger, rec *metrics.Recorder) *Scheduler {
	if grace <= 0 {
		grace = DefaultGraceDelay
	}
	if fireTimeout <= 0 {
		fireTimeout = DefaultFireTimeout
	}
	return &Scheduler{
		jobs:        cmap.New[*job](),
		agg:         agg,
		resolver:    resolver,
		grace:       grace,
		fireTimeout: fireTimeout,
		log:         log.With().Str("component", "scheduler").Logger(),
		rec:         rec,
	}
}

// ScheduleResolution registers a one-shot resolution for the market at
// resolutionTime + grace. Scheduling the same conditionId again replaces
// the pending job; there is never more than one live timer per market.
func (s *Scheduler) ScheduleResolution(m market.Market) error {
	if err := m.Validate(); err != nil {
		return err
	}

	key := m.ConditionID.Hex()
	fireAt := m.ResolutionTime.Add(s.grace)
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	j := &job{market: m, fireAt: fireAt}
	// Arm the timer only after the job is visible in the table, so a
	// zero-delay fire cannot race the insert.
	j.timer = time.AfterFunc(time.Duration(math.MaxInt64), func() { s.fire(key) })

	replaced := false
	s.jobs.Upsert(key, j, func(exists bool, current, incoming *job) *job {
		if exists {
			current.timer.Stop()
			replaced = true
		}
		return incoming
	})
	j.timer.Reset(delay)

	s.rec.SetScheduledJobs(s.jobs.Count())

	evt := s.log.Info().Str("conditionId", key).
		Str("city", string(m.City)).Time("fireAt", fireAt)
	if replaced {
		evt.Msg("replaced pending resolution")
	} else {
		evt.Msg("scheduled resolution")
	}
	return nil
}

// fire runs one market's resolution. Popping the job first makes the
// execution one-shot: a concurrent cancel or replace that loses the pop
// has no further effect, and the job is gone from the table whether the
// resolution succeeds or fails. There is no automatic re-scheduling.
func (s *Scheduler) fire(key string) {
	j, ok := s.jobs.Pop(key)
	if !ok {
		return
	}
	s.rec.SetScheduledJobs(s.jobs.Count())

	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	m := j.market
	s.log.Info().Str("conditionId", key).Str("city", string(m.City)).
		Msg("running scheduled resolution")

	agg, err := s.agg.AggregateTemperature(ctx, m.City)
	if err != nil {
		if errors.Is(err, weather.ErrQuorumNotMet) {
			s.rec.RecordResolution("quorum_failed")
		} else {
			s.rec.RecordResolution("error")
		}
		s.log.Error().Err(err).Str("conditionId", key).Str("city", string(m.City)).
			Msg("RESOLUTION FAILED: could not aggregate weather; manual intervention required")
		return
	}

	res, err := s.resolver.ResolveMarket(ctx, market.ResolutionRequest{
		ConditionID:  m.ConditionID,
		TemperatureF: agg.MedianF,
		LowerBoundF:  m.LowerBoundF,
		UpperBoundF:  m.UpperBoundF,
	})
	if err != nil {
		s.rec.RecordResolution("error")
		s.log.Error().Err(err).Str("conditionId", key).
			Float64("temperatureF", agg.MedianF).
			Msg("RESOLUTION FAILED: submission error; manual intervention required")
		return
	}

	s.rec.RecordResolution(strings.ToLower(string(res.Outcome)))
	s.log.Info().Str("conditionId", key).
		Float64("temperatureF", res.TemperatureF).
		Int32("lowerBoundF", m.LowerBoundF).Int32("upperBoundF", m.UpperBoundF).
		Str("outcome", string(res.Outcome)).
		Str("tx", res.TxHash.Hex()).
		Msg("market resolved")
}

// CancelResolution stops a pending job before it fires. Returns false when
// no job is pending, including when firing has already begun; an in-flight
// resolution always runs to completion.
func (s *Scheduler) CancelResolution(conditionID string) bool {
	j, ok := s.jobs.Pop(conditionID)
	if !ok {
		return false
	}
	j.timer.Stop()
	s.rec.SetScheduledJobs(s.jobs.Count())
	s.log.Info().Str("conditionId", conditionID).Msg("cancelled resolution")
	return true
}

// ScheduledMarkets returns the pending conditionIds, for observability
// only.
func (s *Scheduler) ScheduledMarkets() []string {
	return s.jobs.Keys()
}

// IsScheduled reports whether a job is pending for the conditionId.
func (s *Scheduler) IsScheduled(conditionID string) bool {
	return s.jobs.Has(conditionID)
}

// Count returns the number of pending jobs.
func (s *Scheduler) Count() int {
	return s.jobs.Count()
}

// Stop cancels all pending jobs. In-flight resolutions run to completion.
func (s *Scheduler) Stop() {
	for _, key := range s.jobs.Keys() {
		if j, ok := s.jobs.Pop(key); ok {
			j.timer.Stop()
		}
	}
	s.rec.SetScheduledJobs(0)
}
