package staker

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nucypher/monitor/internal/contracts"
	"github.com/nucypher/monitor/internal/economics"
	"github.com/nucypher/monitor/internal/nickname"
)

// ErrInvalidAddress is returned for a staker address that is not a 20-byte hex address.
var ErrInvalidAddress = errors.New("invalid staker address")

// Chain is the on-chain state a staker lookup reads.
type Chain interface {
	CurrentPeriod(ctx context.Context) (uint16, error)
	AllTokens(ctx context.Context, staker common.Address) (*big.Int, error)
	LockedTokens(ctx context.Context, staker common.Address, periods uint16) (*big.Int, error)
	Flags(ctx context.Context, staker common.Address) (contracts.Flags, error)
	LastCommittedPeriod(ctx context.Context, staker common.Address) (uint16, error)
	WorkerFromStaker(ctx context.Context, staker common.Address) (common.Address, error)
	Fee(ctx context.Context, staker common.Address) (*big.Int, error)
	MinFeeRate(ctx context.Context, staker common.Address) (*big.Int, error)
}

// Info is the staker status served by the staker endpoint.
type Info struct {
	StakerAddress       string `json:"staker_address"`
	Nickname            string `json:"nickname"`
	OwnedTokens         string `json:"owned_tokens"`
	StakedCurrentPeriod string `json:"staked_current_period"`
	StakedNextPeriod    string `json:"staked_next_period"`
	Restake             bool   `json:"restake"`
	WindDown            bool   `json:"winddown"`
	Snapshots           bool   `json:"snapshots"`
	MissedCommitments   int64  `json:"missed_commitments"`
	WorkerAddress       string `json:"worker_address"`
	UnclaimedFees       string `json:"unclaimed_fees"`
	MinFeeRate          string `json:"min_fee_rate"`
}

// Lookup reads the current status of the staker at address.
func Lookup(ctx context.Context, chain Chain, address string) (*Info, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	staker := common.HexToAddress(address)

	owned, err := chain.AllTokens(ctx, staker)
	if err != nil {
		return nil, err
	}
	lockedNow, err := chain.LockedTokens(ctx, staker, 0)
	if err != nil {
		return nil, err
	}
	lockedNext, err := chain.LockedTokens(ctx, staker, 1)
	if err != nil {
		return nil, err
	}
	flags, err := chain.Flags(ctx, staker)
	if err != nil {
		return nil, err
	}
	lastCommitted, err := chain.LastCommittedPeriod(ctx, staker)
	if err != nil {
		return nil, err
	}
	currentPeriod, err := chain.CurrentPeriod(ctx)
	if err != nil {
		return nil, err
	}
	worker, err := chain.WorkerFromStaker(ctx, staker)
	if err != nil {
		return nil, err
	}
	fee, err := chain.Fee(ctx, staker)
	if err != nil {
		return nil, err
	}
	minRate, err := chain.MinFeeRate(ctx, staker)
	if err != nil {
		return nil, err
	}

	return &Info{
		StakerAddress:       address,
		Nickname:            nickname.FromSeed(address).String(),
		OwnedTokens:         economics.FormatNUnits(owned),
		StakedCurrentPeriod: economics.FormatNUnits(lockedNow),
		StakedNextPeriod:    economics.FormatNUnits(lockedNext),
		Restake:             flags.ReStake,
		WindDown:            flags.WindDown,
		Snapshots:           flags.Snapshots,
		MissedCommitments:   int64(currentPeriod) - int64(lastCommitted),
		WorkerAddress:       worker.Hex(),
		UnclaimedFees:       economics.PrettifyEth(fee),
		MinFeeRate:          economics.PrettifyEth(minRate),
	}, nil
}
