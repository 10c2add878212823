package geo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

type cached struct {
	loc   Location
	found bool
}

// Locator answers IPv4 lookups from an imported table.
type Locator struct {
	db     *pebble.DB
	memo   *cache.Cache
	logger *zap.Logger
}

// Open opens the table at path read-only. Results, including misses, are
// remembered for ttl.
func Open(path string, ttl time.Duration, logger *zap.Logger) (*Locator, error) {
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("geo open %s: %w", path, err)
	}
	return &Locator{
		db:     db,
		memo:   cache.New(ttl, 2*ttl),
		logger: logger.Named("geo_locator"),
	}, nil
}

func (l *Locator) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Locate returns the location of the range containing host. Hosts that are not
// IPv4 literals, and reserved ranges without a country, are not found.
func (l *Locator) Locate(host string) (Location, bool) {
	if l == nil {
		return Location{}, false
	}
	if hit, ok := l.memo.Get(host); ok {
		c := hit.(cached)
		return c.loc, c.found
	}
	loc, found := l.lookup(host)
	l.memo.SetDefault(host, cached{loc: loc, found: found})
	return loc, found
}

func (l *Locator) lookup(host string) (Location, bool) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return Location{}, false
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return Location{}, false
	}
	b := addr.As4()
	ip := binary.BigEndian.Uint32(b[:])
	key := rangeKey(ip)

	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: rangeLower,
		UpperBound: rangeUpper,
	})
	if err != nil {
		l.logger.Warn("Failed to open geolocation iterator", zap.Error(err))
		return Location{}, false
	}
	defer iter.Close()

	// the covering range is the last one starting at or before ip
	if !iter.SeekGE(key) {
		iter.Last()
	} else if bytes.Compare(iter.Key(), key) > 0 {
		iter.Prev()
	}
	if !iter.Valid() {
		return Location{}, false
	}
	end, loc, ok := decodeLocation(iter.Value())
	if !ok || ip > end {
		return Location{}, false
	}
	if loc.CountryCode == "" || loc.CountryCode == "-" {
		return Location{}, false
	}
	return loc, true
}
