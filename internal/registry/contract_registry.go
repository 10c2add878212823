package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNotFound is returned when a contract name has no registry entry.
var ErrNotFound = errors.New("contract not found in registry")

// Entry is one deployed contract.
type Entry struct {
	Name    string
	Version string
	Address common.Address
	ABI     abi.ABI
}

// Registry is a parsed contract registry document.
type Registry struct {
	id      string
	entries []Entry
}

// Load reads a registry document from disk.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract registry: %w", err)
	}
	return Parse(data)
}

// Parse decodes a registry document. Rows are [name, version, address, abi];
// legacy [name, address, abi] rows are read with an empty version.
func Parse(data []byte) (*Registry, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode contract registry: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		var name, version, address string
		var rawABI json.RawMessage
		var err error
		switch len(row) {
		case 4:
			err = decodeFields([]any{&name, &version, &address}, row[:3])
			rawABI = row[3]
		case 3:
			err = decodeFields([]any{&name, &address}, row[:2])
			rawABI = row[2]
		default:
			err = fmt.Errorf("expected 3 or 4 fields, got %d", len(row))
		}
		if err != nil {
			return nil, fmt.Errorf("registry row %d: %w", i, err)
		}
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("registry row %d: invalid address %q", i, address)
		}
		parsedABI, err := abi.JSON(bytes.NewReader(rawABI))
		if err != nil {
			return nil, fmt.Errorf("registry row %d: failed to parse %s ABI: %w", i, name, err)
		}
		entries = append(entries, Entry{
			Name:    name,
			Version: version,
			Address: common.HexToAddress(address),
			ABI:     parsedABI,
		})
	}

	return &Registry{
		id:      crypto.Keccak256Hash(data).Hex(),
		entries: entries,
	}, nil
}

func decodeFields(dst []any, raw []json.RawMessage) error {
	for i := range dst {
		if err := json.Unmarshal(raw[i], dst[i]); err != nil {
			return err
		}
	}
	return nil
}

// ID is the Keccak-256 digest of the raw document, hex encoded with a 0x prefix.
func (r *Registry) ID() string {
	return r.id
}

// Entries returns every row in document order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Lookup returns the most recently enrolled entry for name.
func (r *Registry) Lookup(name string) (Entry, error) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Name == name {
			return r.entries[i], nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}
