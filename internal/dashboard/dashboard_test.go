package dashboard

import (
	"context"
	"errors"
	"math/big"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nucypher/monitor/fixtures"
	"github.com/nucypher/monitor/internal/contracts"
	"github.com/nucypher/monitor/internal/crawler"
	"github.com/nucypher/monitor/internal/geo"
	"github.com/nucypher/monitor/internal/history"
	"github.com/nucypher/monitor/internal/registry"
)

var testNow = time.Date(2020, 9, 13, 13, 0, 0, 0, time.UTC)

func loadSnapshot(t *testing.T) *crawler.Snapshot {
	t.Helper()
	data, err := os.ReadFile("../../fixtures/tests/crawler/stats.json")
	require.NoError(t, err)
	snap, err := crawler.DecodeSnapshot(data)
	require.NoError(t, err)
	return snap
}

type fakeSnapshots struct {
	snap  *crawler.Snapshot
	err   error
	calls atomic.Int64
}

func (f *fakeSnapshots) Snapshot(context.Context, bool) (*crawler.Snapshot, error) {
	f.calls.Add(1)
	return f.snap, f.err
}

type fakeHistory struct {
	stakers []history.Point[int64]
	locked  []history.Point[*big.Int]
	events  []history.Event
	err     error
}

func (f *fakeHistory) NumStakersOverRange(context.Context, int) ([]history.Point[int64], error) {
	return f.stakers, f.err
}

func (f *fakeHistory) LockedTokensOverRange(context.Context, int) ([]history.Point[*big.Int], error) {
	return f.locked, f.err
}

func (f *fakeHistory) Events(context.Context, int) ([]history.Event, error) {
	return f.events, f.err
}

type fakeLocator map[string]geo.Location

func (f fakeLocator) Locate(host string) (geo.Location, bool) {
	loc, ok := f[host]
	return loc, ok
}

type fakeChain struct {
	id *big.Int
}

func (f fakeChain) ChainID(context.Context) (*big.Int, error) {
	if f.id == nil {
		return nil, errors.New("rpc down")
	}
	return f.id, nil
}

func (fakeChain) Deployments() []contracts.Deployment {
	return []contracts.Deployment{
		{Name: contracts.TokenContract, Version: "v0.0.0", Address: common.HexToAddress("0x4fE83213D56308330EC302a8BD641f1d0113A4Cc")},
		{Name: contracts.StakingContract, Version: "v4.0.0", Address: common.HexToAddress("0x9BBFfA7C7c3F7bC7Dc4c1F1b2D0B3C4E5f6A7B8c")},
	}
}

type fakeRegistry struct{}

func (fakeRegistry) Latest(context.Context) (*registry.Registry, error) {
	return registry.Parse(fixtures.ContractRegistry)
}

func newDashboard(t *testing.T, snapshots *fakeSnapshots, hist *fakeHistory) *Dashboard {
	t.Helper()
	return New(Sources{
		Snapshots: snapshots,
		History:   hist,
		Locator: fakeLocator{
			"203.0.113.10": {City: "Berlin", Country: "Germany", Latitude: 52.5, Longitude: 13.4},
		},
		Chain:    fakeChain{id: big.NewInt(5)},
		Registry: fakeRegistry{},
	}, Options{
		Version:      "1.2.3",
		Network:      "lynx",
		EtherscanURL: "https://goerli.etherscan.io/",
		HistoryDays:  30,
	}, zap.NewNop())
}

func byID(fragments []Fragment) map[string]Fragment {
	out := make(map[string]Fragment, len(fragments))
	for _, f := range fragments {
		out[f.ID] = f
	}
	return out
}

func TestKnownNodes(t *testing.T) {
	snap := loadSnapshot(t)

	t.Run("rows follow input order and skip null nodes", func(t *testing.T) {
		f := KnownNodes(snap.NodeDetails, snap.TeacherChecksum, "https://etherscan.io", testNow)

		assert.Equal(t, "Known Nodes: 4", f.Caption)
		require.NotNil(t, f.Table)
		assert.Equal(t, []string{"Status", "Checksum", "Nickname", "Launched", "Last Seen", "Fleet State"}, f.Table.Columns)
		require.Len(t, f.Table.Rows, 3)
		assert.Equal(t, "Alpha", f.Table.Rows[0].Cells[2].Text)
		assert.Equal(t, "Bravo", f.Table.Rows[1].Cells[2].Text)
		assert.Equal(t, "Charlie", f.Table.Rows[2].Cells[2].Text)
	})

	t.Run("teacher is highlighted by position among rendered rows", func(t *testing.T) {
		f := KnownNodes(snap.NodeDetails, snap.TeacherChecksum, "https://etherscan.io", testNow)
		assert.False(t, f.Table.Rows[0].Highlight)
		assert.True(t, f.Table.Rows[1].Highlight)
		assert.False(t, f.Table.Rows[2].Highlight)
	})

	t.Run("no teacher", func(t *testing.T) {
		f := KnownNodes(snap.NodeDetails, "", "https://etherscan.io", testNow)
		for _, row := range f.Table.Rows {
			assert.False(t, row.Highlight)
		}
	})

	t.Run("cells", func(t *testing.T) {
		f := KnownNodes(snap.NodeDetails, snap.TeacherChecksum, "https://etherscan.io", testNow)
		alpha := f.Table.Rows[0].Cells
		assert.Equal(t, Cell{Text: "Confirmed", Color: "green"}, alpha[0])
		assert.Equal(t, "0xAaAaaaaa...", alpha[1].Text)
		assert.Equal(t, "https://etherscan.io/address/0xAaAaaaaaaAaAAAAaaAAAaaaAaAAaAaAaaaAaaaaA", alpha[1].Link)
		assert.Equal(t, "https://203.0.113.10:9151/status", alpha[2].Link)
		assert.Equal(t, "2020-06-01T00:00:00Z", alpha[3].Text)
		assert.Equal(t, "1 hour ago", alpha[4].Text)
		assert.Equal(t, "♣", alpha[5].Text)

		bravo := f.Table.Rows[1].Cells
		assert.Equal(t, "not a timestamp", bravo[4].Text, "unparseable last seen is shown raw")

		charlie := f.Table.Rows[2].Cells
		assert.Empty(t, charlie[5].Text)
	})

	t.Run("empty", func(t *testing.T) {
		f := KnownNodes(nil, "", "https://etherscan.io", testNow)
		assert.Equal(t, "Known Nodes: 0", f.Caption)
		assert.Empty(t, f.Table.Rows)
	})
}

func TestDispatch(t *testing.T) {
	snap := loadSnapshot(t)

	t.Run("minute widgets share one snapshot read", func(t *testing.T) {
		snapshots := &fakeSnapshots{snap: snap}
		d := newDashboard(t, snapshots, &fakeHistory{})

		fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerMinute, At: testNow})
		require.NoError(t, err)
		assert.Equal(t, int64(1), snapshots.calls.Load())

		ids := make([]string, len(fragments))
		for i, f := range fragments {
			ids[i] = f.ID
			assert.False(t, f.Unavailable, f.ID)
			assert.Equal(t, testNow, f.RenderedAt)
		}
		assert.Equal(t, []string{
			"prev-states", "network-info-content", "active-stakers", "staker-breakdown", "top-stakers-graph",
			"current-period", "blocktime-value", "time-remaining", "staked-tokens", "nodes-geolocation-graph",
		}, ids)

		got := byID(fragments)
		assert.Equal(t, "12/20", got["active-stakers"].Value)
		assert.Equal(t, "18520", got["current-period"].Value)
		assert.Equal(t, "2020-09-13T12:26:40Z | 3412345", got["blocktime-value"].Value)
		assert.Equal(t, "11 hours from now", got["time-remaining"].Value)
		assert.Equal(t, "15000000.00 NU", got["staked-tokens"].Value)

		states := got["prev-states"].States
		require.Len(t, states, 2)
		assert.True(t, states[0].Current)
		assert.False(t, states[1].Current)

		markers := got["nodes-geolocation-graph"].Markers
		require.Len(t, markers, 1)
		assert.Equal(t, "Alpha", markers[0].Nickname)
		assert.Equal(t, "Berlin", markers[0].City)
	})

	t.Run("page load widgets", func(t *testing.T) {
		d := newDashboard(t, &fakeSnapshots{snap: snap}, &fakeHistory{})

		fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerURL, At: testNow})
		require.NoError(t, err)
		got := byID(fragments)

		assert.Equal(t, "v1.2.3", got["header"].Value)
		assert.Equal(t, "Lynx | goerli", got["domain"].Value)
		reg, err := registry.Parse(fixtures.ContractRegistry)
		require.NoError(t, err)
		assert.Equal(t, reg.ID()[:16], got["registry"].Value)
		assert.NotNil(t, got["network-info-content"].Table)
	})

	t.Run("contracts follow the domain", func(t *testing.T) {
		snapshots := &fakeSnapshots{snap: snap}
		d := newDashboard(t, snapshots, &fakeHistory{})

		fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerDomain, At: testNow})
		require.NoError(t, err)
		require.Len(t, fragments, 1)
		assert.Equal(t, int64(0), snapshots.calls.Load(), "contracts need no snapshot")

		links := fragments[0].Links
		require.Len(t, links, 2)
		assert.Equal(t, "NuCypherToken v0.0.0", links[0].Text)
		assert.Equal(t, "https://goerli.etherscan.io/address/0x4fE83213D56308330EC302a8BD641f1d0113A4Cc", links[0].Link)
	})

	t.Run("events tab", func(t *testing.T) {
		hist := &fakeHistory{events: []history.Event{
			{Time: testNow.Add(-time.Hour), TxHash: "0x5f2b8a3c9d1e7f60aa", Name: "Slashed", StakerAddress: "0xAa", Period: 18519, BlockNumber: 3412000},
		}}
		d := newDashboard(t, &fakeSnapshots{snap: snap}, hist)

		fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerTabs, Tab: TabEvents, At: testNow})
		require.NoError(t, err)
		require.Len(t, fragments, 1)
		table := fragments[0].Table
		require.NotNil(t, table)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "Slashed", table.Rows[0].Cells[1].Text)
		assert.Equal(t, "0x5f2b8a3c9d1e...", table.Rows[0].Cells[6].Text)
		assert.Equal(t, "https://goerli.etherscan.io/tx/0x5f2b8a3c9d1e7f60aa", table.Rows[0].Cells[6].Link)
		assert.Equal(t, "Events over the last 30 days: 1", fragments[0].Caption)
	})

	t.Run("minute tick keeps the selected tab", func(t *testing.T) {
		hist := &fakeHistory{events: []history.Event{
			{Time: testNow.Add(-time.Hour), TxHash: "0x5f2b8a3c9d1e7f60aa", Name: "Slashed", StakerAddress: "0xAa", Period: 18519},
		}}
		d := newDashboard(t, &fakeSnapshots{snap: snap}, hist)

		fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerMinute, Tab: TabEvents, At: testNow})
		require.NoError(t, err)
		content := byID(fragments)["network-info-content"]
		assert.Equal(t, "Network Events", content.Title)
		require.NotNil(t, content.Table)
		require.Len(t, content.Table.Rows, 1)
		assert.Equal(t, "Slashed", content.Table.Rows[0].Cells[1].Text)
	})

	t.Run("failing consumer is isolated", func(t *testing.T) {
		d := newDashboard(t, &fakeSnapshots{snap: snap}, &fakeHistory{err: errors.New("database is locked")})

		fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerDaily, At: testNow})
		require.NoError(t, err)
		require.Len(t, fragments, 1)
		assert.True(t, fragments[0].Unavailable)
		assert.Equal(t, "locked-stake-graph", fragments[0].ID)
		assert.Contains(t, fragments[0].Error, "database is locked")
	})

	t.Run("no snapshot", func(t *testing.T) {
		d := newDashboard(t, &fakeSnapshots{err: errors.New("crawler unreachable")}, &fakeHistory{})

		fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerURL, At: testNow})
		require.NoError(t, err)
		got := byID(fragments)
		assert.True(t, got["network-info-content"].Unavailable)
		assert.False(t, got["header"].Unavailable)
		assert.False(t, got["domain"].Unavailable)
	})

	t.Run("unknown trigger", func(t *testing.T) {
		d := newDashboard(t, &fakeSnapshots{snap: snap}, &fakeHistory{})
		_, err := d.Dispatch(context.Background(), Request{Trigger: "hourly"})
		assert.ErrorIs(t, err, ErrUnknownTrigger)
	})

	t.Run("panicking consumer", func(t *testing.T) {
		d := newDashboard(t, &fakeSnapshots{snap: snap}, &fakeHistory{})
		d.consumers = append(d.consumers, Consumer{
			ID:       "broken",
			Triggers: []string{TriggerDomain},
			Render: func(context.Context, *crawler.Snapshot, Request) (Fragment, error) {
				panic("boom")
			},
		})

		fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerDomain, At: testNow})
		require.NoError(t, err)
		got := byID(fragments)
		assert.True(t, got["broken"].Unavailable)
		assert.False(t, got["contracts"].Unavailable)
	})
}

func TestTriggers(t *testing.T) {
	d := newDashboard(t, &fakeSnapshots{}, &fakeHistory{})
	assert.ElementsMatch(t, []string{TriggerURL, TriggerMinute, TriggerTabs, TriggerDomain, TriggerDaily}, d.Triggers())
	assert.Len(t, d.Consumers(), 15)
}

func TestCharts(t *testing.T) {
	snap := loadSnapshot(t)

	t.Run("staker breakdown shares", func(t *testing.T) {
		f, err := stakerBreakdown(context.Background(), snap, Request{})
		require.NoError(t, err)
		series := f.Chart.Series[0]
		assert.Equal(t, []float64{12, 3, 5}, series.Values)
		assert.InDeltaSlice(t, []float64{0.6, 0.15, 0.25}, series.Shares, 1e-9)
	})

	t.Run("zero stakers", func(t *testing.T) {
		f, err := stakerBreakdown(context.Background(), &crawler.Snapshot{}, Request{})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 0}, f.Chart.Series[0].Shares)
	})

	t.Run("top stakers in NU", func(t *testing.T) {
		f, err := topStakers(context.Background(), snap, Request{})
		require.NoError(t, err)
		series := f.Chart.Series[0]
		assert.Equal(t, []float64{9e6, 4e6, 2e6}, series.Values)
		assert.Equal(t, "0xAaAaaaaaaAaAAAAaaAAAaaaAaAAaAaAaaaAaaaaA", series.Labels[0])
	})

	t.Run("locked stake joins past and future", func(t *testing.T) {
		d := newDashboard(t, &fakeSnapshots{snap: snap}, &fakeHistory{
			stakers: []history.Point[int64]{{Day: "2020-09-12", Value: 18}},
			locked:  []history.Point[*big.Int]{{Day: "2020-09-12", Value: new(big.Int).Mul(big.NewInt(14), big.NewInt(1e18))}},
		})

		f, err := d.lockedStake(context.Background(), snap, Request{})
		require.NoError(t, err)
		require.Len(t, f.Chart.Series, 3)
		assert.Equal(t, []float64{14}, f.Chart.Series[0].Values)
		assert.Equal(t, []string{"2020-09-14", "2020-09-15", "2020-09-16"}, f.Chart.Series[1].Labels)
		assert.Equal(t, []float64{18, 20, 19, 17}, f.Chart.Series[2].Values)
	})
}

func TestTimeRemainingShowsUnparsedValue(t *testing.T) {
	snap := loadSnapshot(t)
	snap.NextPeriod = "2020-09-14 00:00"
	d := newDashboard(t, &fakeSnapshots{snap: snap}, &fakeHistory{})

	fragments, err := d.Dispatch(context.Background(), Request{Trigger: TriggerMinute, At: testNow})
	require.NoError(t, err)
	remaining := byID(fragments)["time-remaining"]
	assert.False(t, remaining.Unavailable)
	assert.Empty(t, remaining.Error)
	assert.Equal(t, "2020-09-14 00:00", remaining.Value)
}
