package telemetry

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/imagefall"
	"github.com/gekko3d/imagefall/gpu/soft"
)

func TestTraceHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriter(&buf)

	require.NoError(t, w.Write(FrameRecord{Frame: 0, Effect: "a", Delta: 0.5, LoopTime: 0.5, Phase: "initialize"}))
	require.NoError(t, w.Write(
		FrameRecord{Frame: 1, Effect: "a", Delta: 0.5, LoopTime: 1, Phase: "step"},
		FrameRecord{Frame: 1, Effect: "b", Delta: 0.5, LoopTime: 0.25, Phase: "step", Loops: 2},
	))
	require.NoError(t, w.Write())
	assert.Equal(t, 3, w.Rows())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "frame,effect,dt,loop_time,phase,loops", lines[0])
	assert.Equal(t, 1, strings.Count(buf.String(), "frame,effect"))

	records, err := ReadTrace(&buf)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "b", records[2].Effect)
	assert.Equal(t, float32(0.25), records[2].LoopTime)
	assert.Equal(t, 2, records[2].Loops)
}

func TestNilTraceDrops(t *testing.T) {
	w, err := CreateTrace("")
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.NoError(t, w.Write(FrameRecord{Frame: 1}))
	assert.Zero(t, w.Rows())
	assert.NoError(t, w.Close())
}

func TestCreateTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "trace.csv")
	w, err := CreateTrace(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(FrameRecord{Frame: 7, Effect: "x", Phase: "step"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "7,x,")
}

func TestFrameStats(t *testing.T) {
	s := NewFrameStats(0)
	assert.Equal(t, Summary{}, s.Summary())

	for i := 20; i >= 1; i-- {
		s.Add(float32(i))
	}
	sum := s.Summary()
	assert.Equal(t, 20, sum.Count)
	assert.InDelta(t, 10.5, sum.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(35), sum.StdDev, 1e-9)
	assert.Equal(t, 19.0, sum.P95)
	assert.Equal(t, 20.0, sum.Max)
	assert.InDelta(t, 1/10.5, sum.FPS(), 1e-9)
	assert.Contains(t, sum.String(), "frames=20")
}

func TestFrameStatsWindow(t *testing.T) {
	s := NewFrameStats(3)
	for _, dt := range []float32{10, 1, 2, 3} {
		s.Add(dt)
	}
	assert.Equal(t, 3, s.Count())
	assert.InDelta(t, 2, s.Summary().Mean, 1e-9)

	s.Reset()
	assert.Zero(t, s.Count())

	s.Add(0.5)
	one := s.Summary()
	assert.Equal(t, 0.5, one.Mean)
	assert.Zero(t, one.StdDev)
	assert.Equal(t, 2.0, one.FPS())
}

func TestStatsModule(t *testing.T) {
	d := imagefall.NewDriver(soft.New(), imagefall.FixedClock{Step: 0.5}, nil)
	assert.Error(t, d.UseModule(StatsModule{}))

	stats := NewFrameStats(0)
	require.NoError(t, d.UseModule(StatsModule{Stats: stats}))
	for i := 0; i < 4; i++ {
		require.NoError(t, d.Frame())
	}
	sum := stats.Summary()
	assert.Equal(t, 4, sum.Count)
	assert.Equal(t, 0.5, sum.Mean)
}
