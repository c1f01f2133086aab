package speechgate_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	sg "github.com/ineyio/speechgate"
	"github.com/stretchr/testify/require"
)

const testRate = 8000

// writeWAV encodes a silent 16-bit mono clip of the given length and returns its path.
func writeWAV(t *testing.T, dir string, seconds float64) string {
	t.Helper()
	f, err := os.CreateTemp(dir, "clip-*.wav")
	require.NoError(t, err)

	enc := wav.NewEncoder(f, testRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testRate},
		Data:           make([]int, int(seconds*testRate)),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return f.Name()
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "expected %s to be deleted", filepath.Base(path))
}

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func writeBytes(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// recordingMeter keeps every event it sees.
type recordingMeter struct {
	mu      sync.Mutex
	routes  []sg.RouteEvent
	results []sg.ResultEvent
	charges []sg.ChargeEvent
}

func (m *recordingMeter) OnRoute(e sg.RouteEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, e)
}

func (m *recordingMeter) OnResult(e sg.ResultEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, e)
}

func (m *recordingMeter) OnCharge(e sg.ChargeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges = append(m.charges, e)
}

func (m *recordingMeter) Charges() []sg.ChargeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sg.ChargeEvent(nil), m.charges...)
}

func (m *recordingMeter) Results() []sg.ResultEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sg.ResultEvent(nil), m.results...)
}

func (m *recordingMeter) Routes() []sg.RouteEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sg.RouteEvent(nil), m.routes...)
}
