package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/nucypher/monitor/internal/registry"
	"github.com/nucypher/monitor/pkg/ethclient"
)

// Agent performs read-only calls against one deployed contract.
type Agent struct {
	name            string
	version         string
	client          ethclient.EthClient
	contractAddress common.Address
	contractABI     abi.ABI
	logger          *zap.Logger
}

func NewAgent(client ethclient.EthClient, entry registry.Entry, logger *zap.Logger) *Agent {
	return &Agent{
		name:            entry.Name,
		version:         entry.Version,
		client:          client,
		contractAddress: entry.Address,
		contractABI:     entry.ABI,
		logger:          logger.Named("agent").With(zap.String("contract", entry.Name)),
	}
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) Version() string {
	return a.version
}

func (a *Agent) Address() common.Address {
	return a.contractAddress
}

// call packs methodName with args, executes it against the latest block and
// returns the unpacked outputs.
func (a *Agent) call(ctx context.Context, methodName string, args ...interface{}) ([]interface{}, error) {
	callData, err := a.contractABI.Pack(methodName, args...)
	if err != nil {
		a.logger.Error("Failed to pack call data", zap.String("method", methodName), zap.Error(err))
		return nil, fmt.Errorf("failed to pack data for %s: %w", methodName, err)
	}

	msg := ethereum.CallMsg{
		To:   &a.contractAddress,
		Data: callData,
	}
	result, err := a.client.CallContract(ctx, msg, nil)
	if err != nil {
		a.logger.Error("Failed to call contract", zap.String("method", methodName), zap.String("contractAddress", a.contractAddress.Hex()), zap.Error(err))
		return nil, fmt.Errorf("failed to call %s: %w", methodName, err)
	}

	out, err := a.contractABI.Unpack(methodName, result)
	if err != nil {
		a.logger.Error("Failed to unpack call result", zap.String("method", methodName), zap.Error(err))
		return nil, fmt.Errorf("failed to unpack %s result: %w", methodName, err)
	}
	return out, nil
}

// callOne is call for methods with exactly one output of type T.
func callOne[T any](ctx context.Context, a *Agent, methodName string, args ...interface{}) (T, error) {
	var zero T
	out, err := a.call(ctx, methodName, args...)
	if err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, fmt.Errorf("%s returned no values", methodName)
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s returned %T, want %T", methodName, out[0], zero)
	}
	return v, nil
}
