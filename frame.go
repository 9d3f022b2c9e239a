package imagefall

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/imagefall/gpu"
)

// FrameContext is handed to every system of one frame.
type FrameContext struct {
	Device     gpu.Device
	DeltaTime  float32 // seconds since the previous frame
	Camera     mgl32.Mat4
	Projection mgl32.Mat4
	Frame      uint64
	Log        Logger

	// Commands is set during PreRender, Pass during Render.
	Commands gpu.CommandEncoder
	Pass     gpu.RenderEncoder
}

// Updater runs before any GPU work of the frame is recorded.
type Updater interface {
	Update(fc *FrameContext)
}

// ComputeTarget records compute work. All compute targets run before any
// render target of the same frame.
type ComputeTarget interface {
	Compute(fc *FrameContext, enc gpu.CommandEncoder)
}

type RenderTarget interface {
	Render(fc *FrameContext, enc gpu.RenderEncoder)
}

// PostRenderer runs after the frame was submitted.
type PostRenderer interface {
	PostRender(fc *FrameContext)
}
