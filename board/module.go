package board

import (
	"github.com/gekko3d/imagefall"
	"github.com/gekko3d/imagefall/gpu"
	"github.com/gekko3d/imagefall/telemetry"
)

// Module sets Board up from Resource and schedules it on the driver. After
// each submitted frame it publishes the particle count to the driver's
// profiler and appends a row to Trace, which may be nil.
type Module struct {
	Board    *ImageBoard
	Loader   gpu.TextureLoader
	Resource string
	Trace    *telemetry.TraceWriter
}

func (mod Module) Install(d *imagefall.Driver) error {
	b := mod.Board
	if err := b.Setup(d.Device, mod.Loader, mod.Resource); err != nil {
		return err
	}
	if err := d.Register(b); err != nil {
		return err
	}
	counter := b.label("Particles")
	d.UseSystem(imagefall.System(func(fc *imagefall.FrameContext) {
		d.Profiler.Count(counter, b.ParticleCount())
		if err := mod.Trace.Write(b.TraceRecord(fc.Frame, fc.DeltaTime)); err != nil {
			fc.Log.Warnf("image board %s: %v", b.id, err)
		}
	}).InStage(imagefall.PostRender))
	return nil
}
