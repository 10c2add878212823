package ethclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	goethclient "github.com/ethereum/go-ethereum/ethclient"
)

// EthClient is the subset of the JSON-RPC client the monitor reads chain state with.
type EthClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dial connects to the provider at rawurl.
func Dial(ctx context.Context, rawurl string) (EthClient, error) {
	client, err := goethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return client, nil
}
