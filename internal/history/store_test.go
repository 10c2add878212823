package history

import (
	"context"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nucypher/monitor/internal/crawler"
)

var testNow = time.Date(2020, 9, 13, 15, 30, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), zap.NewNop())
	require.NoError(t, err)
	store.now = func() time.Time { return testNow }
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSeriesOverRange(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	samples := []struct {
		at      time.Time
		stakers int64
		locked  int64
	}{
		{testNow.AddDate(0, 0, -5), 1, 100},                     // outside a 3 day window
		{time.Date(2020, 9, 10, 0, 0, 0, 0, time.UTC), 2, 200},  // window start is inclusive
		{time.Date(2020, 9, 10, 23, 0, 0, 0, time.UTC), 3, 300}, // last sample of the day wins
		{time.Date(2020, 9, 12, 12, 0, 0, 0, time.UTC), 4, 400},
		{time.Date(2020, 9, 13, 0, 0, 0, 0, time.UTC), 5, 500}, // today is excluded
	}
	for _, s := range samples {
		require.NoError(t, store.RecordNetworkState(ctx, s.at, s.stakers, big.NewInt(s.locked)))
	}

	stakers, err := store.NumStakersOverRange(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []Point[int64]{
		{Day: "2020-09-10", Value: 3},
		{Day: "2020-09-12", Value: 4},
	}, stakers)

	locked, err := store.LockedTokensOverRange(ctx, 3)
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, "2020-09-10", locked[0].Day)
	assert.Equal(t, big.NewInt(300), locked[0].Value)
	assert.Equal(t, big.NewInt(400), locked[1].Value)

	t.Run("span never exceeds days", func(t *testing.T) {
		for days := 0; days <= 6; days++ {
			points, err := store.NumStakersOverRange(ctx, days)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(points), days)
		}
	})

	t.Run("large amounts survive", func(t *testing.T) {
		store := openStore(t)
		huge, ok := new(big.Int).SetString("15000000000000000000000000", 10)
		require.True(t, ok)
		require.NoError(t, store.RecordNetworkState(ctx, testNow.AddDate(0, 0, -1), 20, huge))

		locked, err := store.LockedTokensOverRange(ctx, 30)
		require.NoError(t, err)
		require.Len(t, locked, 1)
		assert.Equal(t, 0, huge.Cmp(locked[0].Value))
	})
}

func TestRecordSnapshot(t *testing.T) {
	store := openStore(t)
	snap, err := crawler.DecodeSnapshot([]byte(`{"activity": {"active": 12, "pending": 3, "inactive": 5}, "global_locked_tokens": "15000000000000000000000000"}`))
	require.NoError(t, err)
	snap.FetchedAt = testNow.AddDate(0, 0, -2)

	store.RecordSnapshot(snap)

	stakers, err := store.NumStakersOverRange(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []Point[int64]{{Day: "2020-09-11", Value: 20}}, stakers)
}

func TestEvents(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	events := []Event{
		{Time: testNow.Add(-31 * 24 * time.Hour), TxHash: "0x01", Name: "CommitmentMade"},
		{Time: testNow.Add(-30 * 24 * time.Hour), TxHash: "0x02", Name: "Slashed", StakerAddress: "0xAa", Period: 18490},
		{Time: testNow.Add(-time.Hour), TxHash: "0x03", Name: "Minted", BlockNumber: 3412340, Value: "1000"},
		{Time: testNow.Add(time.Hour), TxHash: "0x04", Name: "Future"},
	}
	for _, e := range events {
		require.NoError(t, store.RecordEvent(ctx, e))
	}

	got, err := store.Events(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0x03", got[0].TxHash, "newest first")
	assert.Equal(t, uint64(3412340), got[0].BlockNumber)
	assert.Equal(t, "1000", got[0].Value)
	assert.Equal(t, "0x02", got[1].TxHash)
	assert.Equal(t, int64(18490), got[1].Period)
	assert.True(t, got[1].Time.Equal(testNow.Add(-30*24*time.Hour)))
}

func TestPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordNetworkState(ctx, testNow.AddDate(0, 0, -40), 1, big.NewInt(1)))
	require.NoError(t, store.RecordNetworkState(ctx, testNow.AddDate(0, 0, -1), 2, big.NewInt(2)))
	require.NoError(t, store.RecordEvent(ctx, Event{Time: testNow.AddDate(0, 0, -40), TxHash: "0x01", Name: "Old"}))

	removed, err := store.Prune(ctx, testNow.AddDate(0, 0, -35))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	stakers, err := store.NumStakersOverRange(ctx, 60)
	require.NoError(t, err)
	assert.Len(t, stakers, 1)

	t.Run("retention loop stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			store.RunRetention(ctx, 10*time.Millisecond, 35*24*time.Hour)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("retention loop did not stop")
		}
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	store.now = func() time.Time { return testNow }
	require.NoError(t, store.RecordNetworkState(context.Background(), testNow.AddDate(0, 0, -1), 7, big.NewInt(7)))
	require.NoError(t, store.Close())

	store, err = Open(path, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	store.now = func() time.Time { return testNow }

	stakers, err := store.NumStakersOverRange(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []Point[int64]{{Day: "2020-09-12", Value: 7}}, stakers)
}

func TestImportEvents(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"time,txhash,event_name,staker_address,block_number,period,value",
		"2020-09-13T14:00:00Z,0xaa,CommitmentMade,0xAaAaaaaaaAaAAAAaaAAAaaaAaAAaAaAaaaAaaaaA,3412000,18520,",
		"1599998400,0xbb,Slashed,0xBbBbbbbbbBbBBBBbbBBBbbbBbBBbBbBbbbBbbbbB,3411000,18519,1000",
		"yesterday,0xcc,Slashed,,,,",
		"2020-09-13T10:00:00Z,,Slashed,,,,",
		"2020-09-13T10:00:00Z,0xdd,Slashed",
	}, "\n")

	n, err := store.ImportEvents(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := store.Events(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "CommitmentMade", events[0].Name)
	assert.Equal(t, uint64(3412000), events[0].BlockNumber)
	assert.Equal(t, "Slashed", events[1].Name)
	assert.Equal(t, time.Unix(1599998400, 0).UTC(), events[1].Time.UTC())
	assert.Equal(t, "1000", events[1].Value)
}
