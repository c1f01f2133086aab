package prom_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/ineyio/speechgate"
	"github.com/ineyio/speechgate/meter/prom"
)

func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetGauge() != nil:
				values[mf.GetName()] += metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[mf.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	return values
}

func TestMeter_RecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := prom.New(reg)
	require.NoError(t, err)

	m.OnRoute(sg.RouteEvent{Backend: sg.BackendCloud, Engine: "googlespeech", ProcessedSeconds: 100})
	m.OnRoute(sg.RouteEvent{Backend: sg.BackendCloud, Engine: "googlespeech", ProcessedSeconds: 115})
	m.OnResult(sg.ResultEvent{Backend: sg.BackendCloud, Engine: "googlespeech", Success: true, Matched: true, Duration: time.Second})
	m.OnResult(sg.ResultEvent{Backend: sg.BackendLocal, Engine: "whispercli", Error: errors.New("exit 1")})
	m.OnCharge(sg.ChargeEvent{Seconds: 15, Charged: 15, Total: 130})
	m.OnCharge(sg.ChargeEvent{Seconds: 20, Rolled: true})
	m.OnCharge(sg.ChargeEvent{Seconds: 15, Dropped: true})

	n, err := testutil.GatherAndCount(reg, "speechgate_routes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testutil.GatherAndCount(reg, "speechgate_transcriptions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(reg, "speechgate_charges_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	values := gatherValues(t, reg)
	assert.Equal(t, 2.0, values["speechgate_routes_total"])
	assert.Zero(t, values["speechgate_ledger_processed_seconds"], "a discard rollover resets the gauge")
	assert.Equal(t, 15.0, values["speechgate_charged_seconds_total"])
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := prom.New(reg)
	require.NoError(t, err)

	_, err = prom.New(reg)
	assert.Error(t, err)
}
