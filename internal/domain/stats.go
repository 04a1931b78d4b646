package domain

import (
	"math/big"
	"time"
)

// GlobalStatID is the identity of the singleton aggregate row.
const GlobalStatID = "global"

// GlobalStat is the singleton aggregate maintained across all markets.
// TotalVolume is a signed accumulator: it grows on engagements and shrinks on
// exits. TotalUsers is carried in the schema but never populated; counting
// distinct users would need a dedup source this pipeline does not have.
type GlobalStat struct {
	ID           string
	TotalMarkets int64
	TotalVolume  *big.Int
	TotalUsers   int64
	LastUpdated  time.Time
}

// NewGlobalStat returns a zeroed singleton ready for its first mutation.
func NewGlobalStat() GlobalStat {
	return GlobalStat{
		ID:          GlobalStatID,
		TotalVolume: new(big.Int),
	}
}
