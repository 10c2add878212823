package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Snapshot is one decoded crawler metrics payload.
// A Snapshot is shared by every dashboard consumer and must be treated as read-only.
type Snapshot struct {
	NodeDetails        Ordered[*NodeRecord]  `json:"node_details"`
	TeacherChecksum    string                `json:"teacher_checksum,omitempty"`
	Activity           Activity              `json:"activity"`
	PrevStates         []FleetState          `json:"prev_states"`
	CurrentPeriod      int64                 `json:"current_period"`
	NextPeriod         string                `json:"next_period"`
	BlockTime          int64                 `json:"blocktime"`
	BlockNumber        uint64                `json:"blocknumber"`
	GlobalLockedTokens Amount                `json:"global_locked_tokens"`
	TopStakers         Ordered[Amount]       `json:"top_stakers"`
	FutureLockedTokens Ordered[FuturePeriod] `json:"future_locked_tokens"`

	FetchedAt time.Time `json:"-"`
}

// NodeRecord describes one node observed by the crawler.
type NodeRecord struct {
	StakerAddress  string     `json:"staker_address"`
	Nickname       string     `json:"nickname"`
	RestURL        string     `json:"rest_url"`
	FleetStateIcon string     `json:"fleet_state_icon"`
	Status         NodeStatus `json:"status"`
	LastSeen       string     `json:"last_seen"`
	Timestamp      string     `json:"timestamp"`
}

type NodeStatus struct {
	Status string `json:"status"`
	Color  string `json:"color"`
}

// Activity counts stakers by commitment state.
type Activity struct {
	Active   int64 `json:"active"`
	Pending  int64 `json:"pending"`
	Inactive int64 `json:"inactive"`
}

func (a Activity) Total() int64 {
	return a.Active + a.Pending + a.Inactive
}

// FleetState is one entry of the crawler's fleet state history.
type FleetState struct {
	Symbol   string `json:"symbol"`
	ColorHex string `json:"color_hex"`
	Nickname string `json:"nickname"`
	Updated  string `json:"updated"`
}

// FuturePeriod is encoded on the wire as [locked tokens, staker count].
type FuturePeriod struct {
	LockedTokens Amount
	NumStakers   int64
}

func (f *FuturePeriod) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("future period: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("future period: expected 2 elements, got %d", len(pair))
	}
	if err := f.LockedTokens.UnmarshalJSON(pair[0]); err != nil {
		return err
	}
	var stakers json.Number
	if err := json.Unmarshal(pair[1], &stakers); err != nil {
		return fmt.Errorf("future period stakers: %w", err)
	}
	n, err := stakers.Int64()
	if err != nil {
		return fmt.Errorf("future period stakers: %w", err)
	}
	f.NumStakers = n
	return nil
}

func (f FuturePeriod) MarshalJSON() ([]byte, error) {
	tokens, err := f.LockedTokens.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("[%s,%d]", tokens, f.NumStakers)), nil
}

// Amount is an integer token amount in the smallest denomination (NuNits or wei).
// The zero value is zero.
type Amount struct {
	v *big.Int
}

func NewAmount(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(v)}
}

// Int returns a copy of the amount.
func (a Amount) Int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) String() string {
	return a.Int().String()
}

// UnmarshalJSON accepts integers, exponent notation and quoted numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		a.v = nil
		return nil
	}
	s = strings.Trim(s, `"`)
	if v, ok := new(big.Int).SetString(s, 10); ok {
		a.v = v
		return nil
	}
	f, ok := new(big.Float).SetPrec(256).SetString(s)
	if !ok {
		return fmt.Errorf("invalid token amount %q", s)
	}
	v, _ := f.Int(nil)
	a.v = v
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Int().String()), nil
}

// Entry is one key/value pair of an Ordered object.
type Entry[V any] struct {
	Key   string
	Value V
}

// Ordered is a JSON object decoded with its key order preserved.
type Ordered[V any] []Entry[V]

func (o *Ordered[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	entries := Ordered[V]{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		entries = append(entries, Entry[V]{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = entries
	return nil
}

func (o Ordered[V]) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key.
func (o Ordered[V]) Get(key string) (V, bool) {
	for _, e := range o {
		if e.Key == key {
			return e.Value, true
		}
	}
	var zero V
	return zero, false
}
