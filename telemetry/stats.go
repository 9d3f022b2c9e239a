package telemetry

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FrameStats keeps a window of frame deltas, in seconds.
type FrameStats struct {
	// Window caps the number of samples kept; 0 keeps everything.
	Window  int
	samples []float64
}

func NewFrameStats(window int) *FrameStats {
	return &FrameStats{Window: window}
}

func (s *FrameStats) Add(dt float32) {
	s.samples = append(s.samples, float64(dt))
	if s.Window > 0 && len(s.samples) > s.Window {
		s.samples = s.samples[len(s.samples)-s.Window:]
	}
}

func (s *FrameStats) Count() int { return len(s.samples) }

func (s *FrameStats) Reset() { s.samples = s.samples[:0] }

// Summary describes the sampled frame deltas.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	P95    float64
	Max    float64
}

// FPS is the frame rate implied by the mean delta.
func (s Summary) FPS() float64 {
	if s.Mean <= 0 {
		return 0
	}
	return 1 / s.Mean
}

func (s Summary) String() string {
	return fmt.Sprintf("frames=%d mean=%.2fms sd=%.2fms p95=%.2fms max=%.2fms fps=%.1f",
		s.Count, s.Mean*1000, s.StdDev*1000, s.P95*1000, s.Max*1000, s.FPS())
}

func (s *FrameStats) Summary() Summary {
	n := len(s.samples)
	if n == 0 {
		return Summary{}
	}
	sorted := make([]float64, n)
	copy(sorted, s.samples)
	sort.Float64s(sorted)

	sum := Summary{Count: n, Max: sorted[n-1]}
	if n == 1 {
		sum.Mean = sorted[0]
	} else {
		sum.Mean, sum.StdDev = stat.MeanStdDev(sorted, nil)
	}
	sum.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return sum
}
