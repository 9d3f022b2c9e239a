package board

import (
	"github.com/gekko3d/imagefall/telemetry"
)

// TraceRecord snapshots the board after frame. Phase is the phase the next
// frame will dispatch.
func (b *ImageBoard) TraceRecord(frame uint64, dt float32) telemetry.FrameRecord {
	return telemetry.FrameRecord{
		Frame:    frame,
		Effect:   b.id.String(),
		Delta:    dt,
		LoopTime: b.params.LoopTime(),
		Phase:    b.selector.Phase().String(),
		Loops:    b.loops,
	}
}
