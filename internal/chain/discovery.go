package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/meteomarkets/weather-oracle/internal/market"
)

// Discovery reconstructs the set of unresolved markets from the factory's
// historical MarketCreated events.
type Discovery struct {
	backend LogFilterer
	factory common.Address
	log     zerolog.Logger
}

func NewDiscovery(backend LogFilterer, factory common.Address, log zerolog.Logger) *Discovery {
	return &Discovery{
		backend: backend,
		factory: factory,
		log:     log.With().Str("component", "discovery").Logger(),
	}
}

// DiscoverMarkets scans MarketCreated events from genesis to the chain
// head. Markets whose resolution time has already passed are skipped, as
// are events that fail to decode; event order is preserved. An unreachable
// event source fails the scan as a whole.
func (d *Discovery) DiscoverMarkets(ctx context.Context) ([]market.Market, error) {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []common.Address{d.factory},
		Topics:    [][]common.Hash{{factoryABI.Events["MarketCreated"].ID}},
	}

	d.log.Info().Str("factory", d.factory.Hex()).Msg("querying MarketCreated events")

	logs, err := d.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("discovery: filter logs: %w", err)
	}

	d.log.Info().Int("events", len(logs)).Msg("MarketCreated events found")

	now := time.Now().UTC()
	markets := make([]market.Market, 0, len(logs))

	for _, lg := range logs {
		m, err := d.parseEvent(lg)
		if err != nil {
			d.log.Warn().Err(err).Uint64("block", lg.BlockNumber).
				Str("tx", lg.TxHash.Hex()).Msg("skipping undecodable market event")
			continue
		}

		if !m.ResolutionTime.After(now) {
			d.log.Debug().Str("conditionId", m.ConditionID.Hex()).
				Time("resolutionTime", m.ResolutionTime).
				Msg("skipping market already past resolution time")
			continue
		}

		if err := m.Validate(); err != nil {
			d.log.Warn().Err(err).Msg("skipping invalid market")
			continue
		}

		markets = append(markets, m)

		d.log.Info().Str("conditionId", m.ConditionID.Hex()).
			Str("city", string(m.City)).
			Int32("lowerBoundF", m.LowerBoundF).Int32("upperBoundF", m.UpperBoundF).
			Time("resolutionTime", m.ResolutionTime).
			Msg("discovered market")
	}

	return markets, nil
}

func (d *Discovery) parseEvent(lg types.Log) (market.Market, error) {
	if len(lg.Topics) < 3 {
		return market.Market{}, fmt.Errorf("event has %d topics, want 3", len(lg.Topics))
	}

	vals, err := factoryABI.Unpack("MarketCreated", lg.Data)
	if err != nil {
		return market.Market{}, fmt.Errorf("unpack event data: %w", err)
	}
	if len(vals) != 2 {
		return market.Market{}, fmt.Errorf("event data has %d fields, want 2", len(vals))
	}
	rawQuestionID, ok := vals[0].([32]byte)
	if !ok {
		return market.Market{}, fmt.Errorf("questionId field has unexpected type %T", vals[0])
	}

	conditionID := lg.Topics[1]
	marketAddr := common.BytesToAddress(lg.Topics[2].Bytes())
	questionID := common.BytesToHash(rawQuestionID[:])

	decoded, err := market.DecodeQuestionID(questionID)
	if err != nil {
		return market.Market{}, err
	}

	return market.Market{
		ConditionID:    conditionID,
		MarketAddress:  marketAddr,
		QuestionID:     questionID,
		City:           decoded.City,
		LowerBoundF:    decoded.LowerBoundF,
		UpperBoundF:    decoded.UpperBoundF,
		ResolutionTime: decoded.ResolutionTime,
	}, nil
}
