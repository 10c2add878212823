package dashboard

import (
	"context"
	"fmt"
	"math/big"

	"gonum.org/v1/gonum/floats"

	"github.com/nucypher/monitor/internal/crawler"
	"github.com/nucypher/monitor/internal/economics"
)

func stakerBreakdown(_ context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	a := snap.Activity
	values := []float64{float64(a.Active), float64(a.Pending), float64(a.Inactive)}
	series := Series{
		Name:   "Stakers",
		Labels: []string{"Active", "Pending", "Inactive"},
		Values: values,
		Shares: shares(values),
	}
	return Fragment{Title: "Staker Breakdown", Chart: &Chart{Kind: ChartPie, Series: []Series{series}}}, nil
}

func topStakers(_ context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	labels := make([]string, 0, len(snap.TopStakers))
	values := make([]float64, 0, len(snap.TopStakers))
	for _, e := range snap.TopStakers {
		labels = append(labels, e.Key)
		values = append(values, toNU(e.Value.Int()))
	}
	series := Series{Name: "Staked (NU)", Labels: labels, Values: values, Shares: shares(values)}
	return Fragment{Title: "Top Stakers", Chart: &Chart{Kind: ChartBar, Series: []Series{series}}}, nil
}

// lockedStake charts past locked tokens and staker counts from the metrics
// store next to the locked tokens already committed for future periods.
func (d *Dashboard) lockedStake(ctx context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	if d.sources.History == nil {
		return Fragment{}, fmt.Errorf("history: %w", errNoSource)
	}
	days := d.opts.HistoryDays
	pastStakers, err := d.sources.History.NumStakersOverRange(ctx, days)
	if err != nil {
		return Fragment{}, err
	}
	pastLocked, err := d.sources.History.LockedTokensOverRange(ctx, days)
	if err != nil {
		return Fragment{}, err
	}

	past := Series{Name: "Past Locked Stake (NU)", Kind: ChartBar}
	for _, p := range pastLocked {
		past.Labels = append(past.Labels, p.Day)
		past.Values = append(past.Values, toNU(p.Value))
	}
	future := Series{Name: "Future Locked Stake (NU)", Kind: ChartBar}
	stakers := Series{Name: "Stakers", Kind: "line"}
	for _, p := range pastStakers {
		stakers.Labels = append(stakers.Labels, p.Day)
		stakers.Values = append(stakers.Values, float64(p.Value))
	}
	for _, e := range snap.FutureLockedTokens {
		future.Labels = append(future.Labels, e.Key)
		future.Values = append(future.Values, toNU(e.Value.LockedTokens.Int()))
		stakers.Labels = append(stakers.Labels, e.Key)
		stakers.Values = append(stakers.Values, float64(e.Value.NumStakers))
	}

	return Fragment{
		Title: "Locked Stake",
		Chart: &Chart{Kind: ChartBar, Series: []Series{past, future, stakers}},
	}, nil
}

// shares returns each value's fraction of the total, or all zeros when the total is zero.
func shares(values []float64) []float64 {
	out := make([]float64, len(values))
	total := floats.Sum(values)
	if total == 0 {
		return out
	}
	copy(out, values)
	floats.Scale(1/total, out)
	return out
}

func toNU(nunits *big.Int) float64 {
	f, _ := economics.FromNUnits(nunits).Float64()
	return f
}
