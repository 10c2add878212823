// Package geo resolves IPv4 addresses to coordinates using an IP2Location
// range table imported into a Pebble database.
package geo

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

const (
	rangePrefix = byte('r')
	batchLimit  = 20000
	// minimum value size: end address plus latitude and longitude
	valueHeaderSize = 4 + 8 + 8
)

var (
	rangeLower = []byte{rangePrefix}
	rangeUpper = []byte{rangePrefix + 1}
)

// Location is the geolocation of one address range.
type Location struct {
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Import reads an IP2Location LITE DB5 CSV (ip_from, ip_to, country_code,
// country_name, region, city, latitude, longitude) into a new database at dbPath.
// An existing database at dbPath is replaced only when the import succeeds.
func Import(ctx context.Context, csvPath, dbPath string, logger *zap.Logger) (int, error) {
	logger = logger.Named("geo_import")
	tmpPath := dbPath + ".tmp"
	if err := os.RemoveAll(tmpPath); err != nil {
		return 0, fmt.Errorf("geo import: clear staging dir: %w", err)
	}

	db, err := pebble.Open(tmpPath, &pebble.Options{
		DisableWAL:   true,
		MemTableSize: 64 << 20,
	})
	if err != nil {
		return 0, fmt.Errorf("geo import: open: %w", err)
	}
	cleanup := func(err error) (int, error) {
		if db != nil {
			_ = db.Close()
		}
		_ = os.RemoveAll(tmpPath)
		return 0, err
	}

	file, err := os.Open(csvPath)
	if err != nil {
		return cleanup(err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	batch := db.NewBatch()
	defer batch.Close()

	rows := 0
	var lastEnd uint32
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return cleanup(err)
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cleanup(fmt.Errorf("geo import: read csv: %w", err))
		}
		line++
		start, end, loc, err := parseRow(record)
		if err != nil {
			if line == 1 {
				// header row
				continue
			}
			logger.Debug("Skipping geolocation row", zap.Int("line", line), zap.Error(err))
			continue
		}
		if rows > 0 && start <= lastEnd {
			return cleanup(fmt.Errorf("geo import: line %d: range starting %d overlaps or is out of order", line, start))
		}
		lastEnd = end

		if err := batch.Set(rangeKey(start), encodeLocation(end, loc), pebble.NoSync); err != nil {
			return cleanup(err)
		}
		rows++
		if rows%batchLimit == 0 {
			if err := batch.Commit(pebble.NoSync); err != nil {
				return cleanup(err)
			}
			batch.Reset()
		}
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return cleanup(err)
	}
	if err := db.Flush(); err != nil {
		return cleanup(err)
	}
	if err := db.Close(); err != nil {
		db = nil
		return cleanup(err)
	}
	db = nil

	if err := os.RemoveAll(dbPath); err != nil {
		return cleanup(fmt.Errorf("geo import: remove previous table: %w", err))
	}
	if err := os.Rename(tmpPath, dbPath); err != nil {
		return cleanup(fmt.Errorf("geo import: install table: %w", err))
	}
	logger.Info("Imported geolocation table", zap.String("path", dbPath), zap.Int("ranges", rows))
	return rows, nil
}

func parseRow(record []string) (uint32, uint32, Location, error) {
	if len(record) < 8 {
		return 0, 0, Location{}, fmt.Errorf("expected 8 fields, got %d", len(record))
	}
	start, err := parseIPv4(record[0])
	if err != nil {
		return 0, 0, Location{}, err
	}
	end, err := parseIPv4(record[1])
	if err != nil {
		return 0, 0, Location{}, err
	}
	if end < start {
		return 0, 0, Location{}, fmt.Errorf("range end %d before start %d", end, start)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[6]), 64)
	if err != nil {
		return 0, 0, Location{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[7]), 64)
	if err != nil {
		return 0, 0, Location{}, fmt.Errorf("longitude: %w", err)
	}
	return start, end, Location{
		CountryCode: strings.TrimSpace(record[2]),
		Country:     strings.TrimSpace(record[3]),
		Region:      strings.TrimSpace(record[4]),
		City:        strings.TrimSpace(record[5]),
		Latitude:    lat,
		Longitude:   lon,
	}, nil
}

// parseIPv4 accepts the decimal form used by IP2Location or a dotted quad.
func parseIPv4(field string) (uint32, error) {
	field = strings.TrimSpace(field)
	if n, err := strconv.ParseUint(field, 10, 64); err == nil {
		if n > math.MaxUint32 {
			return 0, fmt.Errorf("address %d is not IPv4", n)
		}
		return uint32(n), nil
	}
	addr, err := netip.ParseAddr(field)
	if err != nil {
		return 0, err
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, fmt.Errorf("address %s is not IPv4", field)
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}

func rangeKey(start uint32) []byte {
	var buf [5]byte
	buf[0] = rangePrefix
	binary.BigEndian.PutUint32(buf[1:], start)
	return buf[:]
}

func encodeLocation(end uint32, loc Location) []byte {
	out := make([]byte, valueHeaderSize, valueHeaderSize+len(loc.CountryCode)+len(loc.Country)+len(loc.Region)+len(loc.City)+8)
	binary.BigEndian.PutUint32(out[0:4], end)
	binary.BigEndian.PutUint64(out[4:12], math.Float64bits(loc.Latitude))
	binary.BigEndian.PutUint64(out[12:20], math.Float64bits(loc.Longitude))
	for _, s := range []string{loc.CountryCode, loc.Country, loc.Region, loc.City} {
		out = binary.AppendUvarint(out, uint64(len(s)))
		out = append(out, s...)
	}
	return out
}

func decodeLocation(data []byte) (uint32, Location, bool) {
	if len(data) < valueHeaderSize {
		return 0, Location{}, false
	}
	end := binary.BigEndian.Uint32(data[0:4])
	loc := Location{
		Latitude:  math.Float64frombits(binary.BigEndian.Uint64(data[4:12])),
		Longitude: math.Float64frombits(binary.BigEndian.Uint64(data[12:20])),
	}
	rest := data[valueHeaderSize:]
	for _, dst := range []*string{&loc.CountryCode, &loc.Country, &loc.Region, &loc.City} {
		n, size := binary.Uvarint(rest)
		if size <= 0 || int(n) > len(rest)-size {
			return 0, Location{}, false
		}
		rest = rest[size:]
		*dst = string(rest[:n])
		rest = rest[n:]
	}
	return end, loc, true
}
