package dashboard

import "time"

// Fragment is the rendered content of one widget.
type Fragment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Value       string    `json:"value,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	Table       *Table    `json:"table,omitempty"`
	Chart       *Chart    `json:"chart,omitempty"`
	Markers     []Marker  `json:"markers,omitempty"`
	States      []State   `json:"states,omitempty"`
	Links       []Cell    `json:"links,omitempty"`
	Unavailable bool      `json:"unavailable,omitempty"`
	Error       string    `json:"error,omitempty"`
	RenderedAt  time.Time `json:"rendered_at"`
}

type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

type Row struct {
	Cells     []Cell `json:"cells"`
	Highlight bool   `json:"highlight,omitempty"`
}

type Cell struct {
	Text  string `json:"text"`
	Link  string `json:"link,omitempty"`
	Color string `json:"color,omitempty"`
	Title string `json:"title,omitempty"`
}

const (
	ChartPie = "pie"
	ChartBar = "bar"
)

type Chart struct {
	Kind   string   `json:"kind"`
	Series []Series `json:"series"`
}

// Series is one data series. Shares, when set, are each value's fraction of the series total.
type Series struct {
	Name   string    `json:"name"`
	Kind   string    `json:"kind,omitempty"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Shares []float64 `json:"shares,omitempty"`
}

// Marker is a node placed on the map.
type Marker struct {
	Nickname      string  `json:"nickname"`
	StakerAddress string  `json:"staker_address"`
	City          string  `json:"city"`
	Country       string  `json:"country"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Color         string  `json:"color,omitempty"`
}

// State is one entry of the fleet state history.
type State struct {
	Symbol   string `json:"symbol"`
	ColorHex string `json:"color_hex"`
	Nickname string `json:"nickname"`
	Updated  string `json:"updated"`
	Current  bool   `json:"current,omitempty"`
}

func unavailable(id string, at time.Time, err error) Fragment {
	return Fragment{
		ID:          id,
		Unavailable: true,
		Error:       err.Error(),
		RenderedAt:  at,
	}
}
