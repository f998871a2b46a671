package metrics

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublinear-mpc/matching/internal/mpc/driver"
	"github.com/sublinear-mpc/matching/internal/mpc/phases"
)

func sampleResult() driver.Result {
	return driver.Result{
		Pairs: []phases.MatchedPair{{U: 1, V: 2}, {U: 3, V: 4}},
		Phases: []driver.PhaseStats{
			{
				PhaseIdx:         0,
				ActiveEdges:      10,
				MatchingSizeNew:  2,
				P:                0.5,
				Deg:              driver.Stats{Min: 1, Max: 3, Mean: 2, P95: 3},
				StallRate:        0.1,
				Ball:             driver.Stats{Min: 1, Max: 4, Mean: 2.5, P95: 4},
				MISSelectionRate: 0.2,
				MaxCommBytes:     1024,
				MaxCommItems:     16,
				Wall:             250 * time.Millisecond,
			},
		},
		TotalPhases: 1,
	}
}

func TestFromResult_MapsPhaseAndRunFields(t *testing.T) {
	m := FromResult(sampleResult(), 100, 2, 50, 4)

	assert.Equal(t, 100, m.Run.S)
	assert.Equal(t, 2, m.Run.R)
	assert.Equal(t, int64(50), m.Run.N)
	assert.Equal(t, 4, m.Run.P)
	assert.Equal(t, 2, m.Run.TotalMatchingSize)
	assert.Equal(t, 1, m.Run.TotalPhases)

	require.Len(t, m.Phases, 1)
	ph := m.Phases[0]
	assert.Equal(t, int64(10), ph.ActiveEdges)
	assert.Equal(t, int32(3), ph.Deg.Max)
	assert.Equal(t, int32(4), ph.Ball.Max)
	assert.Equal(t, 250*time.Millisecond, ph.Wall())
}

func TestWriteJSON_RoundTrips(t *testing.T) {
	m := FromResult(sampleResult(), 100, 2, 50, 4)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(m, &buf))

	var decoded RunMetrics
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, m, decoded)
}

func TestWriteCSV_HasHeaderAndOneRowPerPhase(t *testing.T) {
	m := FromResult(sampleResult(), 100, 2, 50, 4)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(m, &buf))

	r := csv.NewReader(&buf)
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvColumns, rows[0])
	assert.Equal(t, "0", rows[1][0])
}

func TestWriteCSV_EmptyPhasesWritesHeaderOnly(t *testing.T) {
	m := FromResult(driver.Result{}, 100, 2, 0, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(m, &buf))

	r := csv.NewReader(&buf)
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
