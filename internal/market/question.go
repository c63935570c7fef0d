package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/meteomarkets/weather-oracle/internal/weather"
)

// ErrUnknownCityCode marks a questionId whose city byte is outside the
// supported table. The market carrying it is skipped, not fatal to a scan.
var ErrUnknownCityCode = errors.New("market: unknown city code")

// cityByCode maps the encoded city byte to a City.
var cityByCode = map[uint8]weather.City{
	0: weather.CityNYC,
	1: weather.CityChicago,
	2: weather.CityMiami,
	3: weather.CityAustin,
}

// DecodedQuestion holds the fields packed into a questionId.
type DecodedQuestion struct {
	MarketType     uint32
	CityCode       uint8
	City           weather.City
	LowerBoundF    int32
	UpperBoundF    int32
	ResolutionTime time.Time
	Nonce          uint64
}

// DecodeQuestionID unpacks a 256-bit questionId. Layout, most significant
// bits first:
//
//	bits 224-255  market type (0x01 = temperature)
//	bits 192-223  city id (only the low byte is used)
//	bits 160-191  lower bound, int32 two's complement
//	bits 128-159  upper bound, int32 two's complement
//	bits  64-127  resolution unix timestamp, uint64
//	bits   0-63   nonce
func DecodeQuestionID(questionID common.Hash) (DecodedQuestion, error) {
	bn := new(big.Int).SetBytes(questionID.Bytes())

	marketType := uint32(extract(bn, 224, 32))
	cityCode := uint8(extract(bn, 192, 8))
	lower := toSignedInt32(extract(bn, 160, 32))
	upper := toSignedInt32(extract(bn, 128, 32))
	resolutionUnix := extract(bn, 64, 64)
	nonce := extract(bn, 0, 64)

	city, ok := cityByCode[cityCode]
	if !ok {
		return DecodedQuestion{}, fmt.Errorf("%w: %d in question %s",
			ErrUnknownCityCode, cityCode, questionID.Hex())
	}

	return DecodedQuestion{
		MarketType:     marketType,
		CityCode:       cityCode,
		City:           city,
		LowerBoundF:    lower,
		UpperBoundF:    upper,
		ResolutionTime: time.Unix(int64(resolutionUnix), 0).UTC(),
		Nonce:          nonce,
	}, nil
}

// extract returns width bits of bn starting at the given bit offset.
func extract(bn *big.Int, shift, width uint) uint64 {
	v := new(big.Int).Rsh(bn, shift)
	mask := new(big.Int).Lsh(big.NewInt(1), width)
	mask.Sub(mask, big.NewInt(1))
	return v.And(v, mask).Uint64()
}

// toSignedInt32 reinterprets a raw uint32 as two's-complement int32.
// Solidity stores int32 bounds as uint32 inside the packed questionId.
func toSignedInt32(raw uint64) int32 {
	return int32(uint32(raw))
}
