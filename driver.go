package imagefall

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/imagefall/gpu"
)

// ScopeSubmit times the queue submission between Render and PostRender. The
// other profiler scopes are named after the stages.
const ScopeSubmit = "Submit"

// Driver sequences the systems of each frame on one device: Update,
// PreRender, Render, submit, PostRender.
type Driver struct {
	Device     gpu.Device
	Clock      FrameClock
	Camera     mgl32.Mat4
	Projection mgl32.Mat4
	Log        Logger
	Profiler   *Profiler
	// ProfileEvery logs the profiler averages at debug level every n frames
	// and starts a new window. Zero disables it.
	ProfileEvery uint64
	PassLabel    string

	frame   uint64
	systems map[Stage][]systemFn
	compute []ComputeTarget
	render  []RenderTarget
}

func NewDriver(dev gpu.Device, clock FrameClock, log Logger) *Driver {
	return &Driver{
		Device:       dev,
		Clock:        clock,
		Camera:       mgl32.Ident4(),
		Projection:   mgl32.Ident4(),
		Log:          OrNop(log),
		Profiler:     NewProfiler(),
		ProfileEvery: 120,
		PassLabel:    "Main Pass",
		systems:      make(map[Stage][]systemFn),
	}
}

// Register schedules every frame hook effect implements.
func (d *Driver) Register(effect any) error {
	hooked := false
	if u, ok := effect.(Updater); ok {
		d.UseSystem(System(u.Update).InStage(Update))
		hooked = true
	}
	if c, ok := effect.(ComputeTarget); ok {
		d.AddComputeTarget(c)
		hooked = true
	}
	if r, ok := effect.(RenderTarget); ok {
		d.AddRenderTarget(r)
		hooked = true
	}
	if p, ok := effect.(PostRenderer); ok {
		d.UseSystem(System(p.PostRender).InStage(PostRender))
		hooked = true
	}
	if !hooked {
		return fmt.Errorf("register %T: implements no frame hook", effect)
	}
	return nil
}

func (d *Driver) AddComputeTarget(t ComputeTarget) {
	d.compute = append(d.compute, t)
	d.UseSystem(System(func(fc *FrameContext) { t.Compute(fc, fc.Commands) }).InStage(PreRender))
}

func (d *Driver) AddRenderTarget(t RenderTarget) {
	d.render = append(d.render, t)
	d.UseSystem(System(func(fc *FrameContext) { t.Render(fc, fc.Pass) }).InStage(Render))
}

func (d *Driver) ComputeTargets() []ComputeTarget { return d.compute }
func (d *Driver) RenderTargets() []RenderTarget   { return d.render }

// Frames is the number of frames submitted so far.
func (d *Driver) Frames() uint64 { return d.frame }

// Frame runs one frame with the delta reported by the clock.
func (d *Driver) Frame() error {
	return d.Step(d.Clock.Tick())
}

// Step runs one frame advancing dt seconds. When the device fails to record or
// submit, PostRender is skipped so no effect advances past a frame that never
// ran.
func (d *Driver) Step(dt float32) error {
	fc := &FrameContext{
		Device:     d.Device,
		DeltaTime:  dt,
		Camera:     d.Camera,
		Projection: d.Projection,
		Frame:      d.frame,
		Log:        d.Log,
	}
	prof := d.Profiler

	prof.Begin(Update.Name)
	d.runStage(Update, fc)
	prof.End(Update.Name)

	frame, err := d.Device.BeginFrame()
	if err != nil {
		return fmt.Errorf("failed to begin frame %d: %w", d.frame, err)
	}

	prof.Begin(PreRender.Name)
	fc.Commands = frame.Commands()
	d.runStage(PreRender, fc)
	prof.End(PreRender.Name)

	prof.Begin(Render.Name)
	pass, err := frame.BeginRenderPass(d.PassLabel)
	if err != nil {
		return fmt.Errorf("failed to begin render pass: %w", err)
	}
	fc.Pass = pass
	d.runStage(Render, fc)
	err = pass.End()
	fc.Commands, fc.Pass = nil, nil
	prof.End(Render.Name)
	if err != nil {
		return fmt.Errorf("render pass failed: %w", err)
	}

	prof.Begin(ScopeSubmit)
	err = frame.Submit()
	prof.End(ScopeSubmit)
	if err != nil {
		return fmt.Errorf("failed to submit frame %d: %w", d.frame, err)
	}

	prof.Begin(PostRender.Name)
	d.runStage(PostRender, fc)
	prof.End(PostRender.Name)

	d.frame++
	prof.EndFrame()
	if d.ProfileEvery > 0 && d.frame%d.ProfileEvery == 0 {
		if d.Log.DebugEnabled() {
			d.Log.Debugf("frame %d: %s", d.frame, prof.Line())
		}
		prof.Reset()
	}
	return nil
}
