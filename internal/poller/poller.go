package poller

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/meteomarkets/weather-oracle/internal/market"
)

// Discoverer scans the chain for markets awaiting resolution.
type Discoverer interface {
	DiscoverMarkets(ctx context.Context) ([]market.Market, error)
}

// Sink receives discovered markets.
type Sink interface {
	ScheduleResolution(m market.Market) error
	IsScheduled(conditionID string) bool
}

// Poller periodically re-runs discovery so markets created after startup
// still get scheduled. Markets already pending are left alone.
type Poller struct {
	cron      *gocron.Scheduler
	discovery Discoverer
	sink      Sink
	interval  time.Duration
	timeout   time.Duration
	log       zerolog.Logger
}

func New(discovery Discoverer, sink Sink, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{
		cron:      gocron.NewScheduler(time.UTC),
		discovery: discovery,
		sink:      sink,
		interval:  interval,
		timeout:   2 * time.Minute,
		log:       log.With().Str("component", "poller").Logger(),
	}
}

// Start runs one discovery pass immediately and then on every interval.
func (p *Poller) Start() error {
	_, err := p.cron.Every(p.interval).StartImmediately().Do(p.runOnce)
	if err != nil {
		return err
	}
	p.cron.StartAsync()
	return nil
}

// Stop stops the rediscovery loop.
func (p *Poller) Stop() {
	p.cron.Stop()
}

func (p *Poller) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	markets, err := p.discovery.DiscoverMarkets(ctx)
	if err != nil {
		// Non-fatal: the process keeps running with whatever is already
		// scheduled and retries on the next interval.
		p.log.Warn().Err(err).Msg("discovery pass failed")
		return
	}

	scheduled := 0
	for _, m := range markets {
		if p.sink.IsScheduled(m.ConditionID.Hex()) {
			continue
		}
		if err := p.sink.ScheduleResolution(m); err != nil {
			p.log.Warn().Err(err).Str("conditionId", m.ConditionID.Hex()).
				Msg("could not schedule discovered market")
			continue
		}
		scheduled++
	}

	p.log.Info().Int("discovered", len(markets)).Int("scheduled", scheduled).
		Msg("discovery pass complete")
}
