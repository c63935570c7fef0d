package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal MarketFactory surface the oracle touches: the creation event it
// scans for and the resolution call it submits. Full ABI ownership stays
// with the contracts repo.
const marketFactoryABIJSON = `[
  {
    "type": "event",
    "name": "MarketCreated",
    "anonymous": false,
    "inputs": [
      {"name": "conditionId", "type": "bytes32", "indexed": true},
      {"name": "market", "type": "address", "indexed": true},
      {"name": "questionId", "type": "bytes32", "indexed": false},
      {"name": "resolutionTime", "type": "uint256", "indexed": false}
    ]
  },
  {
    "type": "function",
    "name": "resolveMarket",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "conditionId", "type": "bytes32"},
      {"name": "payouts", "type": "uint256[]"}
    ],
    "outputs": []
  }
]`

var factoryABI = mustParseABI(marketFactoryABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
