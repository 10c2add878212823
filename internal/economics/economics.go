package economics

import (
	"context"
	"fmt"
	"math/big"
	"strings"
)

// NUnitsPerNU is the number of NuNits in one NU.
var NUnitsPerNU = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Share of the initial supply held by each internal allocation, in thousandths.
var (
	investorsShare = big.NewRat(319+80, 1000)
	teamShare      = big.NewRat(106, 1000)
	companyShare   = big.NewRat(200, 1000)
)

// TokenSupplier reports the current token supply in NuNits.
type TokenSupplier interface {
	TotalSupply(ctx context.Context) (*big.Int, error)
}

type Allocations struct {
	Investors string `json:"investors"`
	Team      string `json:"team"`
	Company   string `json:"company"`
}

// Supply is the token supply breakdown served by the supply endpoint.
type Supply struct {
	TotalSupply          string      `json:"total_supply"`
	InitialSupply        string      `json:"initial_supply"`
	StakingRewardsSupply string      `json:"staking_rewards_supply"`
	InternalAllocations  Allocations `json:"internal_allocations"`
	EstCirculatingSupply string      `json:"est_circulating_supply"`
}

// Breakdown reads the total supply from token and computes the supply breakdown.
func Breakdown(ctx context.Context, token TokenSupplier, initial *big.Int) (Supply, error) {
	total, err := token.TotalSupply(ctx)
	if err != nil {
		return Supply{}, fmt.Errorf("failed to read total supply: %w", err)
	}
	return ComputeSupply(total, initial), nil
}

// ComputeSupply derives the breakdown from total and initial supply, both in NuNits.
func ComputeSupply(total, initial *big.Int) Supply {
	initialRat := new(big.Rat).SetInt(initial)
	investors := new(big.Rat).Mul(initialRat, investorsShare)
	team := new(big.Rat).Mul(initialRat, teamShare)
	company := new(big.Rat).Mul(initialRat, companyShare)

	circulating := new(big.Rat).Set(initialRat)
	circulating.Sub(circulating, investors).Sub(circulating, team).Sub(circulating, company)

	return Supply{
		TotalSupply:          FormatNU(new(big.Rat).SetInt(total)),
		InitialSupply:        FormatNU(initialRat),
		StakingRewardsSupply: FormatNU(new(big.Rat).SetInt(new(big.Int).Sub(total, initial))),
		InternalAllocations: Allocations{
			Investors: FormatNU(investors),
			Team:      FormatNU(team),
			Company:   FormatNU(company),
		},
		EstCirculatingSupply: FormatNU(circulating),
	}
}

// FromNUnits converts an amount of NuNits to NU.
func FromNUnits(nunits *big.Int) *big.Rat {
	return new(big.Rat).SetFrac(nunits, NUnitsPerNU)
}

// ToNUnits parses a decimal NU amount such as "1000000000" or "0.5".
func ToNUnits(nu string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(nu))
	if !ok {
		return nil, fmt.Errorf("invalid NU amount %q", nu)
	}
	r.Mul(r, new(big.Rat).SetInt(NUnitsPerNU))
	if !r.IsInt() {
		return nil, fmt.Errorf("NU amount %q is finer than one NuNit", nu)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatNU renders an amount of NuNits as NU with two decimals, e.g. "600000.00 NU".
func FormatNU(nunits *big.Rat) string {
	nu := new(big.Rat).Quo(nunits, new(big.Rat).SetInt(NUnitsPerNU))
	return nu.FloatString(2) + " NU"
}

// FormatNUnits is FormatNU for an integer amount.
func FormatNUnits(nunits *big.Int) string {
	return FormatNU(new(big.Rat).SetInt(nunits))
}
