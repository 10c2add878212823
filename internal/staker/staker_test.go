package staker

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucypher/monitor/internal/contracts"
	"github.com/nucypher/monitor/internal/economics"
	"github.com/nucypher/monitor/internal/nickname"
)

const stakerAddress = "0xAaAaaaaaaAaAAAAaaAAAaaaAaAAaAaAaaaAaaaaA"

type fakeChain struct {
	period    uint16
	committed uint16
	owned     *big.Int
	locked    map[uint16]*big.Int
	flags     contracts.Flags
	worker    common.Address
	fee       *big.Int
	minRate   *big.Int
	err       error
}

func (f *fakeChain) CurrentPeriod(context.Context) (uint16, error) { return f.period, f.err }
func (f *fakeChain) AllTokens(context.Context, common.Address) (*big.Int, error) {
	return f.owned, f.err
}
func (f *fakeChain) LockedTokens(_ context.Context, _ common.Address, periods uint16) (*big.Int, error) {
	return f.locked[periods], f.err
}
func (f *fakeChain) Flags(context.Context, common.Address) (contracts.Flags, error) {
	return f.flags, f.err
}
func (f *fakeChain) LastCommittedPeriod(context.Context, common.Address) (uint16, error) {
	return f.committed, f.err
}
func (f *fakeChain) WorkerFromStaker(context.Context, common.Address) (common.Address, error) {
	return f.worker, f.err
}
func (f *fakeChain) Fee(context.Context, common.Address) (*big.Int, error) { return f.fee, f.err }
func (f *fakeChain) MinFeeRate(context.Context, common.Address) (*big.Int, error) {
	return f.minRate, f.err
}

func nu(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), economics.NUnitsPerNU)
}

func TestLookup(t *testing.T) {
	chain := &fakeChain{
		period:    18520,
		committed: 18517,
		owned:     nu(150_000),
		locked:    map[uint16]*big.Int{0: nu(100_000), 1: nu(90_000)},
		flags:     contracts.Flags{ReStake: true, Snapshots: true},
		worker:    common.HexToAddress("0x1234"),
		fee:       big.NewInt(1_000_000_000),
		minRate:   big.NewInt(0),
	}

	t.Run("success", func(t *testing.T) {
		info, err := Lookup(context.Background(), chain, stakerAddress)
		require.NoError(t, err)

		assert.Equal(t, stakerAddress, info.StakerAddress)
		assert.Equal(t, nickname.FromSeed(stakerAddress).String(), info.Nickname)
		assert.Equal(t, "150000.00 NU", info.OwnedTokens)
		assert.Equal(t, "100000.00 NU", info.StakedCurrentPeriod)
		assert.Equal(t, "90000.00 NU", info.StakedNextPeriod)
		assert.True(t, info.Restake)
		assert.False(t, info.WindDown)
		assert.True(t, info.Snapshots)
		assert.Equal(t, int64(3), info.MissedCommitments)
		assert.Equal(t, common.HexToAddress("0x1234").Hex(), info.WorkerAddress)
		assert.Equal(t, "1 gwei", info.UnclaimedFees)
		assert.Equal(t, "0 ETH", info.MinFeeRate)
	})

	t.Run("invalid address", func(t *testing.T) {
		for _, address := range []string{"", "0x123", "not-an-address", "0xZZZZaaaaaAaAAAAaaAAAaaaAaAAaAaAaaaAaaaaA"} {
			_, err := Lookup(context.Background(), chain, address)
			assert.ErrorIs(t, err, ErrInvalidAddress, address)
		}
	})

	t.Run("chain error", func(t *testing.T) {
		rpcErr := errors.New("rpc unavailable")
		_, err := Lookup(context.Background(), &fakeChain{err: rpcErr}, stakerAddress)
		assert.ErrorIs(t, err, rpcErr)
	})
}
