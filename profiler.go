package imagefall

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler accumulates the CPU time of named scopes over a window of frames
// and keeps named counters next to them.
type Profiler struct {
	order  []string
	open   map[string]time.Time
	last   map[string]time.Duration
	total  map[string]time.Duration
	counts map[string]int
	frames int
}

func NewProfiler() *Profiler {
	return &Profiler{
		open:   make(map[string]time.Time),
		last:   make(map[string]time.Duration),
		total:  make(map[string]time.Duration),
		counts: make(map[string]int),
	}
}

// Begin starts timing name. Scopes are reported in the order they first began.
func (p *Profiler) Begin(name string) {
	if _, seen := p.last[name]; !seen {
		p.order = append(p.order, name)
		p.last[name] = 0
	}
	p.open[name] = time.Now()
}

// End stops timing name and returns the elapsed time. Ending a scope that
// was never begun returns 0.
func (p *Profiler) End(name string) time.Duration {
	start, ok := p.open[name]
	if !ok {
		return 0
	}
	delete(p.open, name)
	elapsed := time.Since(start)
	p.last[name] = elapsed
	p.total[name] += elapsed
	return elapsed
}

// Count sets counter name to n.
func (p *Profiler) Count(name string, n int) { p.counts[name] = n }

// Counter returns the last value set for name.
func (p *Profiler) Counter(name string) int { return p.counts[name] }

// EndFrame closes one frame of the current window.
func (p *Profiler) EndFrame() { p.frames++ }

// Frames is the number of frames in the current window.
func (p *Profiler) Frames() int { return p.frames }

func (p *Profiler) Scopes() []string { return p.order }

// Last is the duration of the most recent run of name.
func (p *Profiler) Last(name string) time.Duration { return p.last[name] }

// Average is the mean time per frame spent in name over the window.
func (p *Profiler) Average(name string) time.Duration {
	if p.frames == 0 {
		return 0
	}
	return p.total[name] / time.Duration(p.frames)
}

// Reset starts a new window. Scope order and counters survive.
func (p *Profiler) Reset() {
	clear(p.total)
	p.frames = 0
}

func millis(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

// Line is a one-line summary of the window averages in scope order.
func (p *Profiler) Line() string {
	parts := make([]string, 0, len(p.order))
	for _, name := range p.order {
		parts = append(parts, fmt.Sprintf("%s=%.2fms", name, millis(p.Average(name))))
	}
	return strings.Join(parts, " ")
}

// Report lists every scope with its window average and last run, followed by
// the counters sorted by name.
func (p *Profiler) Report() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CPU timings over %d frames:\n", p.frames)
	for _, name := range p.order {
		fmt.Fprintf(&sb, "  %-12s avg %.2f ms  last %.2f ms\n", name, millis(p.Average(name)), millis(p.last[name]))
	}
	if len(p.counts) == 0 {
		return sb.String()
	}
	names := make([]string, 0, len(p.counts))
	for name := range p.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	sb.WriteString("Counters:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-12s %d\n", name, p.counts[name])
	}
	return sb.String()
}
