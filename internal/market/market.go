package market

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meteomarkets/weather-oracle/internal/weather"
)

// Market is one discovered temperature prediction market. Bounds are whole
// degrees Fahrenheit; the bracket is half-open [LowerBound, UpperBound).
type Market struct {
	ConditionID    common.Hash
	MarketAddress  common.Address
	QuestionID     common.Hash
	City           weather.City
	LowerBoundF    int32
	UpperBoundF    int32
	ResolutionTime time.Time
}

// Validate checks the bracket invariant.
func (m Market) Validate() error {
	if m.LowerBoundF >= m.UpperBoundF {
		return fmt.Errorf("market %s: lower bound %d must be below upper bound %d",
			m.ConditionID.Hex(), m.LowerBoundF, m.UpperBoundF)
	}
	if _, ok := m.City.Info(); !ok {
		return fmt.Errorf("market %s: unsupported city %q", m.ConditionID.Hex(), m.City)
	}
	return nil
}

// Outcome is the winning side of a resolved market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// DecideOutcome applies the bracket rule: YES wins iff
// lower <= temperature < upper.
func DecideOutcome(temperatureF float64, lowerF, upperF int32) Outcome {
	if temperatureF >= float64(lowerF) && temperatureF < float64(upperF) {
		return OutcomeYes
	}
	return OutcomeNo
}

// ResolutionRequest carries everything the submitter needs for one market.
type ResolutionRequest struct {
	ConditionID  common.Hash
	TemperatureF float64
	LowerBoundF  int32
	UpperBoundF  int32
}

// ResolutionResult is the audit record of a successful on-chain resolution.
type ResolutionResult struct {
	ConditionID  common.Hash
	TemperatureF float64
	Outcome      Outcome
	TxHash       common.Hash
}
