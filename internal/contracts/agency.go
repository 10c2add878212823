package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/nucypher/monitor/internal/registry"
	"github.com/nucypher/monitor/pkg/ethclient"
)

const (
	TokenContract       = "NuCypherToken"
	StakingContract     = "StakingEscrow"
	PolicyContract      = "PolicyManager"
	AdjudicatorContract = "Adjudicator"
)

var chainNames = map[int64]string{
	1:     "mainnet",
	4:     "rinkeby",
	5:     "goerli",
	137:   "polygon",
	80001: "mumbai",
}

// ChainName returns the network name for chainID, or "chain <id>" when unknown.
func ChainName(chainID *big.Int) string {
	if chainID != nil && chainID.IsInt64() {
		if name, ok := chainNames[chainID.Int64()]; ok {
			return name
		}
	}
	return fmt.Sprintf("chain %s", chainID)
}

// Flags are the staker options stored by StakingEscrow.
type Flags struct {
	WindDown    bool
	ReStake     bool
	MeasureWork bool
	Snapshots   bool
}

// Deployment identifies a deployed contract.
type Deployment struct {
	Name    string
	Version string
	Address common.Address
}

// Agency holds one agent per network contract.
type Agency struct {
	client      ethclient.EthClient
	token       *Agent
	staking     *Agent
	policy      *Agent
	adjudicator *Agent
}

// NewAgency builds agents for the network contracts listed in reg.
func NewAgency(client ethclient.EthClient, reg *registry.Registry, logger *zap.Logger) (*Agency, error) {
	agents := make(map[string]*Agent, 4)
	for _, name := range []string{TokenContract, StakingContract, PolicyContract, AdjudicatorContract} {
		entry, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		agents[name] = NewAgent(client, entry, logger)
	}
	return &Agency{
		client:      client,
		token:       agents[TokenContract],
		staking:     agents[StakingContract],
		policy:      agents[PolicyContract],
		adjudicator: agents[AdjudicatorContract],
	}, nil
}

// Agents lists the agents in display order.
func (a *Agency) Agents() []*Agent {
	return []*Agent{a.token, a.staking, a.policy, a.adjudicator}
}

// Deployments describes the agents' contracts in display order.
func (a *Agency) Deployments() []Deployment {
	agents := a.Agents()
	out := make([]Deployment, len(agents))
	for i, agent := range agents {
		out[i] = Deployment{Name: agent.Name(), Version: agent.Version(), Address: agent.Address()}
	}
	return out
}

func (a *Agency) ChainID(ctx context.Context) (*big.Int, error) {
	return a.client.ChainID(ctx)
}

func (a *Agency) TotalSupply(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, a.token, "totalSupply")
}

func (a *Agency) CurrentPeriod(ctx context.Context) (uint16, error) {
	return callOne[uint16](ctx, a.staking, "getCurrentPeriod")
}

func (a *Agency) AllTokens(ctx context.Context, staker common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, a.staking, "getAllTokens", staker)
}

// LockedTokens returns the tokens staker has locked for the period periods ahead of the current one.
func (a *Agency) LockedTokens(ctx context.Context, staker common.Address, periods uint16) (*big.Int, error) {
	return callOne[*big.Int](ctx, a.staking, "getLockedTokens", staker, periods)
}

func (a *Agency) Flags(ctx context.Context, staker common.Address) (Flags, error) {
	out, err := a.staking.call(ctx, "getFlags", staker)
	if err != nil {
		return Flags{}, err
	}
	if len(out) != 4 {
		return Flags{}, fmt.Errorf("getFlags returned %d values", len(out))
	}
	var flags Flags
	for i, dst := range []*bool{&flags.WindDown, &flags.ReStake, &flags.MeasureWork, &flags.Snapshots} {
		v, ok := out[i].(bool)
		if !ok {
			return Flags{}, fmt.Errorf("getFlags value %d is %T", i, out[i])
		}
		*dst = v
	}
	return flags, nil
}

func (a *Agency) LastCommittedPeriod(ctx context.Context, staker common.Address) (uint16, error) {
	return callOne[uint16](ctx, a.staking, "getLastCommittedPeriod", staker)
}

func (a *Agency) WorkerFromStaker(ctx context.Context, staker common.Address) (common.Address, error) {
	return callOne[common.Address](ctx, a.staking, "getWorkerFromStaker", staker)
}

// Fee returns the policy fees accrued by staker and not yet withdrawn.
func (a *Agency) Fee(ctx context.Context, staker common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, a.policy, "nodes", staker)
}

func (a *Agency) MinFeeRate(ctx context.Context, staker common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, a.policy, "getMinFeeRate", staker)
}
