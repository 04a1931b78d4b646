// Package chain decodes Makao factory and fixture contract logs into typed
// events and provides revert-tolerant access to fixture contract state.
package chain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventLog carries the provenance shared by every decoded contract event:
// emitting address, block position, block timestamp, transaction hash and
// sender, and log index. (BlockNumber, LogIndex) defines the total order the
// indexer relies on.
type EventLog struct {
	Address     common.Address
	BlockNumber uint64
	BlockTime   uint64
	TxHash      common.Hash
	TxSender    common.Address
	LogIndex    uint
}

// Log returns the provenance record; it makes every typed event satisfy the
// Event interface by embedding.
func (l EventLog) Log() EventLog { return l }

// Timestamp converts the block timestamp to UTC time.
func (l EventLog) Timestamp() time.Time {
	return time.Unix(int64(l.BlockTime), 0).UTC()
}

// Event is any decoded contract event the indexer can route.
type Event interface {
	Log() EventLog
}

// CreateInstance signals that the factory deployed a new fixture contract.
type CreateInstance struct {
	EventLog
	Instance common.Address
}

// EngageChallenge signals a user staking into a fixture.
type EngageChallenge struct {
	EventLog
	User   common.Address
	Amount *big.Int
}

// ExitEvent signals a user withdrawing a stake from a fixture.
type ExitEvent struct {
	EventLog
	User   common.Address
	Amount *big.Int
}

// EventCancelled signals a fixture being cancelled.
type EventCancelled struct {
	EventLog
}

// ResolveEvent signals a fixture being resolved.
type ResolveEvent struct {
	EventLog
}

// MarketMetadataSet signals a fixture pointing at new IPFS metadata.
type MarketMetadataSet struct {
	EventLog
	IPFSHash string
}
