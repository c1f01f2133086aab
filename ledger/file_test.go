package ledger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	sg "github.com/ineyio/speechgate"
	"github.com/ineyio/speechgate/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsError(t *testing.T) {
	s := ledger.NewFileStore(filepath.Join(t.TempDir(), "data.json"))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStore_CreateIfMissing(t *testing.T) {
	s := ledger.NewFileStore(filepath.Join(t.TempDir(), "data.json"), ledger.WithCreateIfMissing(true))

	state, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sg.LedgerState{}, state)
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	s := ledger.NewFileStore(path)
	ctx := context.Background()

	want := sg.LedgerState{ProcessedSeconds: 1234.5, PeriodAnchor: "17/10/2026"}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"processed_seconds":1234.5,"period_anchor":"17/10/2026"}`, string(raw))
}

func TestFileStore_ReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"processed_seconds": 45, "period_anchor": "01/10/2026"}`), 0o644))

	state, err := ledger.NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45.0, state.ProcessedSeconds)
	assert.Equal(t, "01/10/2026", state.PeriodAnchor)
}

func TestFileStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"processed_seconds": `), 0o644))

	_, err := ledger.NewFileStore(path).Load(context.Background())
	assert.ErrorIs(t, err, sg.ErrLedgerCorrupt)
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := ledger.NewFileStore(filepath.Join(dir, "data.json"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, sg.LedgerState{ProcessedSeconds: float64(i * 15)}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data.json", entries[0].Name())
}

func TestFileStore_SaveHonorsCancelledContext(t *testing.T) {
	s := ledger.NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, sg.LedgerState{}), context.Canceled)
}

func TestFileStore_LedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s := ledger.NewFileStore(path, ledger.WithCreateIfMissing(true))
	ctx := context.Background()

	period := sg.DefaultPeriod()
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, period.Location)

	l, err := sg.OpenLedger(ctx, s, sg.WithLedgerClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = l.Charge(ctx, 20, now)
	require.NoError(t, err)

	reopened, err := sg.OpenLedger(ctx, ledger.NewFileStore(path))
	require.NoError(t, err)

	snap := reopened.Snapshot(now)
	assert.Equal(t, 20.0, snap.ProcessedSeconds)
	assert.Equal(t, "17/10/2026", period.FormatAnchor(snap.Anchor))
}
