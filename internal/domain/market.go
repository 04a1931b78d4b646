package domain

import (
	"math/big"
	"strconv"
	"time"
)

// Market is the materialized view of a single Makao fixture contract. The ID
// is the lowercase hex contract address and never changes after creation.
//
// Pointer fields are optional: a nil deadline, fee, or count means the
// corresponding contract accessor reverted at creation time and the value was
// left unset rather than defaulted.
type Market struct {
	ID                 string
	Creator            string
	Owner              string
	StakeToken         string
	EngagementDeadline *big.Int
	ResolutionDeadline *big.Int
	CreatorFee         *big.Int
	PredictionCount    *big.Int
	IPFSHash           string
	TotalAmount        *big.Int
	IsCancelled        bool
	IsResolved         bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Engagement is an append-only stake record under a Market. The composite ID
// (transaction hash + log index) stays unique even when one transaction
// carries several engagements.
type Engagement struct {
	ID              string
	MarketID        string
	User            string
	Amount          *big.Int
	Timestamp       time.Time
	TransactionHash string
}

// EngagementID builds the composite engagement identity.
func EngagementID(txHash string, logIndex uint) string {
	return txHash + "-" + strconv.FormatUint(uint64(logIndex), 10)
}
