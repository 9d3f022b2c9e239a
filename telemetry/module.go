package telemetry

import (
	"errors"

	"github.com/gekko3d/imagefall"
)

// StatsModule samples the delta of every submitted frame into Stats.
type StatsModule struct {
	Stats *FrameStats
}

func (mod StatsModule) Install(d *imagefall.Driver) error {
	if mod.Stats == nil {
		return errors.New("stats module without frame stats")
	}
	d.UseSystem(imagefall.System(func(fc *imagefall.FrameContext) {
		mod.Stats.Add(fc.DeltaTime)
	}).InStage(imagefall.PostRender))
	return nil
}
