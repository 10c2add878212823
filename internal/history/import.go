package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EventColumns is the CSV layout ImportEvents reads. It mirrors the events table.
var EventColumns = []string{"time", "txhash", "event_name", "staker_address", "block_number", "period", "value"}

// ImportEvents reads events from CSV rows laid out as EventColumns and records
// them. time is RFC 3339 or unix seconds. A header row is skipped; rows that do
// not parse are logged and skipped.
func (s *Store) ImportEvents(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	imported := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("history: read events line %d: %w", line, err)
		}
		if line == 1 && len(record) > 0 && strings.EqualFold(record[0], EventColumns[0]) {
			continue
		}
		e, err := parseEvent(record)
		if err != nil {
			s.logger.Warn("Skipping event row", zap.Int("line", line), zap.Error(err))
			continue
		}
		if err := s.RecordEvent(ctx, e); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func parseEvent(record []string) (Event, error) {
	if len(record) != len(EventColumns) {
		return Event{}, fmt.Errorf("expected %d fields, got %d", len(EventColumns), len(record))
	}
	at, err := parseEventTime(record[0])
	if err != nil {
		return Event{}, err
	}
	if record[1] == "" || record[2] == "" {
		return Event{}, errors.New("txhash and event_name are required")
	}
	e := Event{
		Time:          at,
		TxHash:        record[1],
		Name:          record[2],
		StakerAddress: record[3],
		Value:         record[6],
	}
	if record[4] != "" {
		if e.BlockNumber, err = strconv.ParseUint(record[4], 10, 64); err != nil {
			return Event{}, fmt.Errorf("block_number: %w", err)
		}
	}
	if record[5] != "" {
		if e.Period, err = strconv.ParseInt(record[5], 10, 64); err != nil {
			return Event{}, fmt.Errorf("period: %w", err)
		}
	}
	return e, nil
}

func parseEventTime(field string) (time.Time, error) {
	if unix, err := strconv.ParseInt(field, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, field)
	if err != nil {
		return time.Time{}, fmt.Errorf("time: %w", err)
	}
	return at, nil
}
