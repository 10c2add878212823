package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nucypher/monitor/internal/contracts"
	"github.com/nucypher/monitor/internal/crawler"
	"github.com/nucypher/monitor/internal/economics"
)

// registryIDLength is how much of the registry digest the widget shows.
const registryIDLength = 16

var errNoSource = errors.New("source not configured")

func (d *Dashboard) widgets() []Consumer {
	return []Consumer{
		{ID: "header", Triggers: []string{TriggerURL}, Render: d.header},
		{ID: "prev-states", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: previousStates},
		{ID: "network-info-content", Triggers: []string{TriggerURL, TriggerMinute, TriggerTabs}, NeedsSnapshot: true, Render: d.networkInfo},
		{ID: "active-stakers", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: activeStakers},
		{ID: "staker-breakdown", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: stakerBreakdown},
		{ID: "top-stakers-graph", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: topStakers},
		{ID: "current-period", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: currentPeriod},
		{ID: "blocktime-value", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: blocktime},
		{ID: "time-remaining", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: timeRemaining},
		{ID: "domain", Triggers: []string{TriggerURL}, Render: d.domain},
		{ID: "registry", Triggers: []string{TriggerURL}, Render: d.registry},
		{ID: "contracts", Triggers: []string{TriggerDomain}, Render: d.contracts},
		{ID: "staked-tokens", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: stakedTokens},
		{ID: "locked-stake-graph", Triggers: []string{TriggerDaily}, NeedsSnapshot: true, Render: d.lockedStake},
		{ID: "nodes-geolocation-graph", Triggers: []string{TriggerMinute}, NeedsSnapshot: true, Render: d.geolocation},
	}
}

func (d *Dashboard) header(context.Context, *crawler.Snapshot, Request) (Fragment, error) {
	return Fragment{Value: "v" + strings.TrimPrefix(d.opts.Version, "v")}, nil
}

func previousStates(_ context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	states := make([]State, len(snap.PrevStates))
	for i, s := range snap.PrevStates {
		states[i] = State{
			Symbol:   s.Symbol,
			ColorHex: s.ColorHex,
			Nickname: s.Nickname,
			Updated:  s.Updated,
			Current:  i == 0,
		}
	}
	return Fragment{Title: "Previous States", States: states}, nil
}

func (d *Dashboard) networkInfo(ctx context.Context, snap *crawler.Snapshot, req Request) (Fragment, error) {
	if req.Tab == "" || req.Tab == TabNodeDetails {
		return KnownNodes(snap.NodeDetails, snap.TeacherChecksum, d.opts.EtherscanURL, req.At), nil
	}
	if d.sources.History == nil {
		return Fragment{}, fmt.Errorf("events: %w", errNoSource)
	}
	events, err := d.sources.History.Events(ctx, d.opts.HistoryDays)
	if err != nil {
		return Fragment{}, err
	}
	return EventsTable(events, d.opts.HistoryDays, d.opts.EtherscanURL), nil
}

func activeStakers(_ context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	return Fragment{
		Title: "Active Ursulas",
		Value: fmt.Sprintf("%d/%d", snap.Activity.Active, snap.Activity.Total()),
	}, nil
}

func currentPeriod(_ context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	return Fragment{Title: "Current Period", Value: strconv.FormatInt(snap.CurrentPeriod, 10)}, nil
}

func blocktime(_ context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	at := time.Unix(snap.BlockTime, 0).UTC().Format(time.RFC3339)
	return Fragment{Title: "Blocktime", Value: fmt.Sprintf("%s | %d", at, snap.BlockNumber)}, nil
}

func timeRemaining(_ context.Context, snap *crawler.Snapshot, req Request) (Fragment, error) {
	next, err := time.Parse(time.RFC3339, snap.NextPeriod)
	if err != nil {
		return Fragment{Title: "Next Period", Value: snap.NextPeriod}, nil
	}
	return Fragment{Title: "Next Period", Value: humanize.RelTime(next, req.At, "ago", "from now")}, nil
}

func stakedTokens(_ context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	return Fragment{Title: "Staked Tokens", Value: economics.FormatNUnits(snap.GlobalLockedTokens.Int())}, nil
}

func (d *Dashboard) domain(ctx context.Context, _ *crawler.Snapshot, _ Request) (Fragment, error) {
	if d.sources.Chain == nil {
		return Fragment{}, fmt.Errorf("chain: %w", errNoSource)
	}
	id, err := d.sources.Chain.ChainID(ctx)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Title: "Network", Value: fmt.Sprintf("%s | %s", capitalize(d.opts.Network), contracts.ChainName(id))}, nil
}

func (d *Dashboard) registry(ctx context.Context, _ *crawler.Snapshot, _ Request) (Fragment, error) {
	if d.sources.Registry == nil {
		return Fragment{}, fmt.Errorf("registry: %w", errNoSource)
	}
	latest, err := d.sources.Registry.Latest(ctx)
	if err != nil {
		return Fragment{}, err
	}
	id := latest.ID()
	if len(id) > registryIDLength {
		id = id[:registryIDLength]
	}
	return Fragment{Title: "Registry", Value: id}, nil
}

func (d *Dashboard) contracts(context.Context, *crawler.Snapshot, Request) (Fragment, error) {
	if d.sources.Chain == nil {
		return Fragment{}, fmt.Errorf("chain: %w", errNoSource)
	}
	var links []Cell
	for _, dep := range d.sources.Chain.Deployments() {
		text := dep.Name
		if dep.Version != "" {
			text += " " + dep.Version
		}
		links = append(links, Cell{
			Text:  text,
			Link:  addressURL(d.opts.EtherscanURL, dep.Address.Hex()),
			Title: dep.Address.Hex(),
		})
	}
	return Fragment{Title: "Contracts", Links: links}, nil
}

func (d *Dashboard) geolocation(_ context.Context, snap *crawler.Snapshot, _ Request) (Fragment, error) {
	if d.sources.Locator == nil {
		return Fragment{}, fmt.Errorf("geolocation: %w", errNoSource)
	}
	return NodeMarkers(snap.NodeDetails, d.sources.Locator), nil
}

// NodeMarkers places every node whose rest host is a known IPv4 address.
func NodeMarkers(nodes crawler.Ordered[*crawler.NodeRecord], locator Locator) Fragment {
	markers := []Marker{}
	for _, e := range nodes {
		node := e.Value
		if node == nil {
			continue
		}
		loc, ok := locator.Locate(restHost(node.RestURL))
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Nickname:      node.Nickname,
			StakerAddress: node.StakerAddress,
			City:          loc.City,
			Country:       loc.Country,
			Latitude:      loc.Latitude,
			Longitude:     loc.Longitude,
			Color:         node.Status.Color,
		})
	}
	return Fragment{Title: "Nodes Geolocation", Markers: markers}
}

func restHost(restURL string) string {
	if host, _, err := net.SplitHostPort(restURL); err == nil {
		return host
	}
	return restURL
}

func addressURL(etherscanURL, address string) string {
	return strings.TrimSuffix(etherscanURL, "/") + "/address/" + address
}

func txURL(etherscanURL, hash string) string {
	return strings.TrimSuffix(etherscanURL, "/") + "/tx/" + hash
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
