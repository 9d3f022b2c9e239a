package imagefall

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/imagefall/gpu"
	"github.com/gekko3d/imagefall/gpu/soft"
)

type recordingEffect struct {
	name  string
	calls *[]string
	dts   []float32
}

func (e *recordingEffect) Update(fc *FrameContext) {
	*e.calls = append(*e.calls, e.name+".update")
	e.dts = append(e.dts, fc.DeltaTime)
}

func (e *recordingEffect) Compute(fc *FrameContext, enc gpu.CommandEncoder) {
	*e.calls = append(*e.calls, e.name+".compute")
}

func (e *recordingEffect) Render(fc *FrameContext, enc gpu.RenderEncoder) {
	*e.calls = append(*e.calls, e.name+".render")
}

func (e *recordingEffect) PostRender(fc *FrameContext) {
	*e.calls = append(*e.calls, fmt.Sprintf("%s.post%d", e.name, fc.Frame))
}

type computeOnly struct{ n *int }

func (c computeOnly) Compute(fc *FrameContext, enc gpu.CommandEncoder) { *c.n++ }

func TestDriverFrameOrder(t *testing.T) {
	var calls []string
	a := &recordingEffect{name: "a", calls: &calls}
	b := &recordingEffect{name: "b", calls: &calls}

	d := NewDriver(soft.New(), FixedClock{Step: 0.5}, nil)
	require.NoError(t, d.Register(a))
	require.NoError(t, d.Register(b))
	assert.Len(t, d.ComputeTargets(), 2)
	assert.Len(t, d.RenderTargets(), 2)

	require.NoError(t, d.Frame())
	assert.Equal(t, []string{
		"a.update", "b.update",
		"a.compute", "b.compute",
		"a.render", "b.render",
		"a.post0", "b.post0",
	}, calls)

	require.NoError(t, d.Step(0.25))
	assert.Equal(t, []float32{0.5, 0.25}, a.dts)
	assert.Equal(t, uint64(2), d.Frames())
	assert.Equal(t, []string{"Update", "PreRender", "Render", ScopeSubmit, "PostRender"}, d.Profiler.Scopes())
	assert.Equal(t, 2, d.Profiler.Frames())
}

func TestDriverRegisterRejectsNonEffects(t *testing.T) {
	d := NewDriver(soft.New(), FixedClock{}, nil)
	assert.Error(t, d.Register(struct{}{}))

	n := 0
	var calls []string
	d.AddComputeTarget(computeOnly{&n})
	d.AddRenderTarget(&recordingEffect{name: "r", calls: &calls})
	assert.Len(t, d.ComputeTargets(), 1)
	assert.Len(t, d.RenderTargets(), 1)
	require.NoError(t, d.Step(0))
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"r.render"}, calls, "only the render hook is scheduled")
}

type brokenDevice struct{ *soft.Device }

func (brokenDevice) BeginFrame() (gpu.Frame, error) { return nil, errors.New("surface lost") }

func TestDriverSkipsPostRenderOnFailedFrame(t *testing.T) {
	var calls []string
	d := NewDriver(brokenDevice{soft.New()}, FixedClock{Step: 1}, nil)
	require.NoError(t, d.Register(&recordingEffect{name: "a", calls: &calls}))

	err := d.Frame()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surface lost")
	assert.Equal(t, []string{"a.update"}, calls)
	assert.Zero(t, d.Frames())
}

type stageModule struct {
	calls *[]string
	err   error
}

func (m stageModule) Install(d *Driver) error {
	if m.err != nil {
		return m.err
	}
	for _, stage := range []Stage{PostRender, Render, PreRender, Update} {
		name := stage.Name
		d.UseSystem(System(func(fc *FrameContext) {
			switch {
			case name == PreRender.Name && fc.Commands == nil,
				name == Render.Name && fc.Pass == nil:
				name += "!"
			}
			*m.calls = append(*m.calls, name)
		}).InStage(stage))
	}
	return nil
}

func TestUseModuleSchedulesByStage(t *testing.T) {
	var calls []string
	d := NewDriver(soft.New(), FixedClock{Step: 1}, nil)
	require.NoError(t, d.UseModule(stageModule{calls: &calls}))
	require.NoError(t, d.Frame())
	assert.Equal(t, []string{"Update", "PreRender", "Render", "PostRender"}, calls)

	d.UseSystem(System(func(fc *FrameContext) { calls = append(calls, "default") }))
	calls = nil
	require.NoError(t, d.Frame())
	assert.Equal(t, []string{"Update", "default", "PreRender", "Render", "PostRender"}, calls)
}

func TestUseModuleStopsAtFailure(t *testing.T) {
	var calls []string
	d := NewDriver(soft.New(), FixedClock{Step: 1}, nil)
	err := d.UseModule(stageModule{calls: &calls, err: errors.New("no device")}, stageModule{calls: &calls})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no device")
	require.NoError(t, d.Frame())
	assert.Empty(t, calls, "modules after the failing one are not installed")
}

func TestDriverProfileWindow(t *testing.T) {
	d := NewDriver(soft.New(), FixedClock{Step: 1}, nil)
	d.ProfileEvery = 3
	for i := 0; i < 4; i++ {
		require.NoError(t, d.Frame())
	}
	assert.Equal(t, 1, d.Profiler.Frames(), "the window restarts every ProfileEvery frames")

	d.ProfileEvery = 0
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Frame())
	}
	assert.Equal(t, 6, d.Profiler.Frames())
}
