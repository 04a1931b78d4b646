package chain

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller executes a read-only contract call. *ethclient.Client
// satisfies it; tests substitute a stub.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FixtureReader performs revert-tolerant accessor reads against one fixture
// contract. Every Try method returns (value, false) when the call fails,
// reverts, returns no data, or unpacks to an unexpected shape — it never
// surfaces an error. Callers must branch on the second return and name their
// own fallback; the reader only emits a diagnostic log entry.
type FixtureReader struct {
	caller ContractCaller
	addr   common.Address
	logger *slog.Logger
}

// NewFixtureReader binds a reader to the fixture at addr.
func NewFixtureReader(caller ContractCaller, addr common.Address, logger *slog.Logger) *FixtureReader {
	return &FixtureReader{
		caller: caller,
		addr:   addr,
		logger: logger.With(slog.String("component", "fixture_reader")),
	}
}

// call packs, executes, and unpacks a no-argument accessor. ok=false covers
// every failure mode so handlers see a single "unreadable" outcome.
func (r *FixtureReader) call(ctx context.Context, method string) ([]any, bool) {
	data, err := fixtureABI.Pack(method)
	if err != nil {
		r.logger.Error("pack accessor call",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.addr, Data: data}, nil)
	if err != nil {
		r.logger.Warn("accessor call reverted",
			slog.String("contract", r.addr.Hex()),
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if len(out) == 0 {
		r.logger.Warn("accessor call returned no data",
			slog.String("contract", r.addr.Hex()),
			slog.String("method", method),
		)
		return nil, false
	}

	vals, err := fixtureABI.Unpack(method, out)
	if err != nil || len(vals) == 0 {
		r.logger.Warn("accessor return data unreadable",
			slog.String("contract", r.addr.Hex()),
			slog.String("method", method),
		)
		return nil, false
	}
	return vals, true
}

func (r *FixtureReader) tryAddress(ctx context.Context, method string) (common.Address, bool) {
	vals, ok := r.call(ctx, method)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := vals[0].(common.Address)
	return addr, ok
}

func (r *FixtureReader) tryBigInt(ctx context.Context, method string) (*big.Int, bool) {
	vals, ok := r.call(ctx, method)
	if !ok {
		return nil, false
	}
	n, ok := vals[0].(*big.Int)
	return n, ok
}

func (r *FixtureReader) tryString(ctx context.Context, method string) (string, bool) {
	vals, ok := r.call(ctx, method)
	if !ok {
		return "", false
	}
	s, ok := vals[0].(string)
	return s, ok
}

// TryOwner reads the fixture owner.
func (r *FixtureReader) TryOwner(ctx context.Context) (common.Address, bool) {
	return r.tryAddress(ctx, "owner")
}

// TryStakeToken reads the stake token address.
func (r *FixtureReader) TryStakeToken(ctx context.Context) (common.Address, bool) {
	return r.tryAddress(ctx, "stakeToken")
}

// TryEngagementDeadline reads the engagement deadline.
func (r *FixtureReader) TryEngagementDeadline(ctx context.Context) (*big.Int, bool) {
	return r.tryBigInt(ctx, "engagementDeadline")
}

// TryResolutionDeadline reads the resolution deadline.
func (r *FixtureReader) TryResolutionDeadline(ctx context.Context) (*big.Int, bool) {
	return r.tryBigInt(ctx, "resolutionDeadline")
}

// TryCreatorFee reads the creator fee.
func (r *FixtureReader) TryCreatorFee(ctx context.Context) (*big.Int, bool) {
	return r.tryBigInt(ctx, "creatorFee")
}

// TryPredictionCount reads the prediction count.
func (r *FixtureReader) TryPredictionCount(ctx context.Context) (*big.Int, bool) {
	return r.tryBigInt(ctx, "predictionCount")
}

// TryMetadataHash reads the IPFS content address set at deployment, if any.
func (r *FixtureReader) TryMetadataHash(ctx context.Context) (string, bool) {
	return r.tryString(ctx, "ipfsMetadataHash")
}
