package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nucypher/monitor/internal/crawler"
	"github.com/nucypher/monitor/internal/history"
)

var nodeColumns = []string{"Status", "Checksum", "Nickname", "Launched", "Last Seen", "Fleet State"}

var eventColumns = []string{"Date", "Event", "Staker", "Period", "Value", "Block", "Transaction"}

// KnownNodes renders the node table. Null node entries are counted in the
// caption but get no row; the teacher's row is highlighted.
func KnownNodes(nodes crawler.Ordered[*crawler.NodeRecord], teacherChecksum, etherscanURL string, now time.Time) Fragment {
	rows := make([]Row, 0, len(nodes))
	for _, e := range nodes {
		node := e.Value
		if node == nil {
			continue
		}
		rows = append(rows, Row{
			Cells:     nodeCells(node, etherscanURL, now),
			Highlight: teacherChecksum != "" && strings.EqualFold(e.Key, teacherChecksum),
		})
	}
	return Fragment{
		Title:   "Network Nodes",
		Caption: fmt.Sprintf("Known Nodes: %d", len(nodes)),
		Table:   &Table{Columns: nodeColumns, Rows: rows},
	}
}

func nodeCells(node *crawler.NodeRecord, etherscanURL string, now time.Time) []Cell {
	checksum := node.StakerAddress
	if len(checksum) > 10 {
		checksum = checksum[:10]
	}
	return []Cell{
		{Text: node.Status.Status, Color: node.Status.Color},
		{Text: checksum + "...", Link: addressURL(etherscanURL, node.StakerAddress)},
		{Text: node.Nickname, Link: fmt.Sprintf("https://%s/status", node.RestURL)},
		{Text: node.Timestamp},
		{Text: lastSeen(node.LastSeen, now), Title: node.LastSeen},
		{Text: node.FleetStateIcon},
	}
}

// lastSeen is a relative time, or the raw value when it is not RFC 3339.
func lastSeen(raw string, now time.Time) string {
	seen, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return humanize.RelTime(seen, now, "ago", "from now")
}

// EventsTable renders network events, newest first.
func EventsTable(events []history.Event, days int, etherscanURL string) Fragment {
	rows := make([]Row, 0, len(events))
	for _, e := range events {
		staker := Cell{Text: e.StakerAddress}
		if e.StakerAddress != "" {
			staker.Link = addressURL(etherscanURL, e.StakerAddress)
		}
		rows = append(rows, Row{Cells: []Cell{
			{Text: e.Time.UTC().Format(time.RFC3339)},
			{Text: e.Name},
			staker,
			{Text: strconv.FormatInt(e.Period, 10)},
			{Text: e.Value},
			{Text: strconv.FormatUint(e.BlockNumber, 10)},
			{Text: shortHash(e.TxHash), Link: txURL(etherscanURL, e.TxHash), Title: e.TxHash},
		}})
	}
	return Fragment{
		Title:   "Network Events",
		Caption: fmt.Sprintf("Events over the last %d days: %d", days, len(events)),
		Table:   &Table{Columns: eventColumns, Rows: rows},
	}
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:14] + "..."
}
