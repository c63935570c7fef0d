package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meteomarkets/weather-oracle/internal/market"
)

func TestGasWithMargin(t *testing.T) {
	cases := []struct {
		estimate uint64
		want     uint64
	}{
		{100, 125},
		{0, 0},
		{1, 2},  // ceil(1.25)
		{3, 4},  // ceil(3.75)
		{4, 5},  // ceil(5.0)
		{80, 100},
		{21000, 26250},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, gasWithMargin(tc.estimate), "estimate %d", tc.estimate)
	}
}

func TestPayoutVector(t *testing.T) {
	yes := PayoutVector(market.OutcomeYes)
	require.Equal(t, []*big.Int{big.NewInt(1), big.NewInt(0)}, yes)

	no := PayoutVector(market.OutcomeNo)
	require.Equal(t, []*big.Int{big.NewInt(0), big.NewInt(1)}, no)
}

func TestResolveMarketCallPacks(t *testing.T) {
	// The resolution call must encode as resolveMarket(bytes32,uint256[]).
	payouts := PayoutVector(market.OutcomeYes)
	data, err := factoryABI.Pack("resolveMarket",
		[32]byte{0xab}, payouts)
	require.NoError(t, err)
	require.Equal(t, factoryABI.Methods["resolveMarket"].ID, data[:4])
}
