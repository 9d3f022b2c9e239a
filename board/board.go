// Package board implements the falling image effect: one particle per source
// pixel, dropped row by row under constant acceleration and reseeded from the
// image every TotalLoopTime seconds.
package board

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gekko3d/imagefall"
	"github.com/gekko3d/imagefall/gpu"
	"github.com/gekko3d/imagefall/particle"
	"github.com/gekko3d/imagefall/shaders"
)

const (
	DefaultTotalLoopTime float32 = 7.3
	DefaultFallSpeed     float32 = -1.5
	DefaultFallTarget    float32 = -1
	DefaultFallDelay     float32 = 0.01
)

// ImageBoard owns the GPU resources of one effect instance. The exported
// fields may change at any time; the fall vector and delay are picked up at
// Setup and at every loop boundary, TotalLoopTime on every frame.
type ImageBoard struct {
	FallSpeed     float32
	FallTarget    float32
	FallDelay     float32
	TotalLoopTime float32
	ModelMatrix   mgl32.Mat4

	id       uuid.UUID
	log      imagefall.Logger
	selector PhaseSelector
	params   particle.LoopParameters
	loops    int
	res      *resources
}

type resources struct {
	dev    gpu.Device
	width  uint32
	height uint32

	image      gpu.Texture
	pieces     gpu.Buffer
	parameters gpu.Buffer
	frame      gpu.Buffer

	setup  gpu.ComputePipeline
	step   gpu.ComputePipeline
	render gpu.RenderPipeline
	depth  gpu.DepthStencilState
}

func (r *resources) release() {
	if r.render != nil {
		r.render.Release()
	}
	if r.step != nil {
		r.step.Release()
	}
	if r.setup != nil {
		r.setup.Release()
	}
	if r.frame != nil {
		r.frame.Release()
	}
	if r.parameters != nil {
		r.parameters.Release()
	}
	if r.pieces != nil {
		r.pieces.Release()
	}
	if r.image != nil {
		r.image.Release()
	}
}

func NewImageBoard(log imagefall.Logger) *ImageBoard {
	return &ImageBoard{
		FallSpeed:     DefaultFallSpeed,
		FallTarget:    DefaultFallTarget,
		FallDelay:     DefaultFallDelay,
		TotalLoopTime: DefaultTotalLoopTime,
		ModelMatrix:   mgl32.Ident4(),
		id:            uuid.New(),
		log:           imagefall.OrNop(log),
	}
}

func (b *ImageBoard) ID() uuid.UUID { return b.id }

func (b *ImageBoard) label(what string) string {
	return fmt.Sprintf("ImageBoard %s %s", b.id.String()[:8], what)
}

// Setup loads resource through loader and creates every GPU object of the
// effect on dev. It either fully succeeds or leaves the board without any
// resources; the error is a *SetupError. Calling Setup again replaces the
// previous resources.
func (b *ImageBoard) Setup(dev gpu.Device, loader gpu.TextureLoader, resource string) error {
	b.Release()

	res, err := b.build(dev, loader, resource)
	if err != nil {
		res.release()
		b.log.Errorf("%v", err)
		return err
	}

	b.res = res
	b.params = particle.NewLoopParameters(b.FallSpeed, b.FallTarget, b.FallDelay)
	b.selector.Reset()
	b.loops = 0
	b.log.Infof("image board %s ready: %s, %dx%d, %d particles", b.id, resource, res.width, res.height, b.ParticleCount())
	return nil
}

// build creates the resource bundle in order. On error the partial bundle is
// returned so the caller can release it.
func (b *ImageBoard) build(dev gpu.Device, loader gpu.TextureLoader, resource string) (*resources, error) {
	res := &resources{dev: dev}
	fail := func(op, name string, err error) (*resources, error) {
		return res, &SetupError{Op: op, Resource: name, Err: err}
	}

	tex, err := loader.LoadTexture(dev, resource)
	if err != nil {
		return fail(OpLoadTexture, resource, err)
	}
	res.image = tex
	res.width, res.height = tex.Width(), tex.Height()
	if res.width == 0 || res.height == 0 {
		return fail(OpLoadTexture, resource, fmt.Errorf("empty image %dx%d", res.width, res.height))
	}

	buffers := []struct {
		dst   *gpu.Buffer
		name  string
		size  uint64
		usage gpu.BufferUsage
	}{
		{&res.pieces, "Pieces", particle.BufferSize(res.width, res.height), gpu.BufferUsageStorage | gpu.BufferUsageCopyDst},
		{&res.parameters, "Parameters", particle.ParametersSize, gpu.BufferUsageUniform | gpu.BufferUsageCopyDst},
		{&res.frame, "Frame", particle.TransformSize, gpu.BufferUsageUniform | gpu.BufferUsageCopyDst},
	}
	for _, want := range buffers {
		label := b.label(want.name)
		buf, err := dev.CreateBuffer(&gpu.BufferDescriptor{Label: label, Size: want.size, Usage: want.usage})
		if err != nil {
			return fail(OpCreateBuffer, label, err)
		}
		*want.dst = buf
	}

	res.setup, err = dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{Label: b.label("Setup"), EntryPoint: shaders.FallImageSetup})
	if err != nil {
		return fail(OpComputePipeline, shaders.FallImageSetup, err)
	}
	res.step, err = dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{Label: b.label("Step"), EntryPoint: shaders.FallImageCompute})
	if err != nil {
		return fail(OpComputePipeline, shaders.FallImageCompute, err)
	}

	res.depth = dev.CreateDepthStencilState(gpu.CompareFunctionLess, true)
	res.render, err = dev.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{
		Label:         b.label("Render"),
		VertexEntry:   shaders.ImageBoardVertex,
		FragmentEntry: shaders.ImageBoardFragment,
		Topology:      gpu.PrimitiveTopologyPointList,
		CullMode:      gpu.CullModeNone,
		DepthStencil:  &res.depth,
	})
	if err != nil {
		return fail(OpRenderPipeline, shaders.ImageBoardVertex+"/"+shaders.ImageBoardFragment, err)
	}

	if err := dev.WriteBuffer(res.frame, 0, particle.TransformBytes(b.ModelMatrix)); err != nil {
		return fail(OpWriteBuffer, b.label("Frame"), err)
	}
	return res, nil
}

// Release frees the GPU resources. The board can be set up again afterwards.
func (b *ImageBoard) Release() {
	if b.res == nil {
		return
	}
	b.res.release()
	b.res = nil
	b.params = particle.LoopParameters{}
	b.selector.Reset()
}

func (b *ImageBoard) Ready() bool { return b.res != nil }

func (b *ImageBoard) Phase() Phase { return b.selector.Phase() }

// Parameters returns the staging copy of the parameter block.
func (b *ImageBoard) Parameters() particle.LoopParameters { return b.params }

// Loops counts the loop boundaries crossed since Setup.
func (b *ImageBoard) Loops() int { return b.loops }

func (b *ImageBoard) ImageSize() (width, height uint32) {
	if b.res == nil {
		return 0, 0
	}
	return b.res.width, b.res.height
}

func (b *ImageBoard) ParticleCount() int {
	w, h := b.ImageSize()
	return int(w) * int(h)
}

// ParticleBuffer is the particle storage, nil before Setup. Only the board
// writes to it.
func (b *ImageBoard) ParticleBuffer() gpu.Buffer {
	if b.res == nil {
		return nil
	}
	return b.res.pieces
}

// Update writes projection * camera * model into the frame uniform.
func (b *ImageBoard) Update(fc *imagefall.FrameContext) {
	if b.res == nil {
		return
	}
	transform := fc.Projection.Mul4(fc.Camera).Mul4(b.ModelMatrix)
	if err := b.res.dev.WriteBuffer(b.res.frame, 0, particle.TransformBytes(transform)); err != nil {
		b.log.Warnf("image board %s: transform upload failed: %v", b.id, err)
	}
}

// Compute advances the loop timer, uploads the parameter block and dispatches
// the pipeline of the current phase over every pixel. The timer only moves
// once the upload has landed.
func (b *ImageBoard) Compute(fc *imagefall.FrameContext, enc gpu.CommandEncoder) {
	res := b.res
	if res == nil {
		return
	}
	params := b.params
	params.Accumulate(fc.DeltaTime)
	if err := res.dev.WriteBuffer(res.parameters, 0, params.Bytes()); err != nil {
		b.log.Warnf("image board %s: parameter upload failed: %v", b.id, err)
		return
	}
	b.params = params

	pipeline := res.step
	if b.selector.Phase() == PhaseInitialize {
		pipeline = res.setup
	}
	pass := enc.BeginComputePass(b.label("Compute"))
	pass.SetPipeline(pipeline)
	pass.SetBuffer(shaders.BindingPieces, res.pieces)
	pass.SetBuffer(shaders.BindingParameters, res.parameters)
	pass.SetTexture(shaders.BindingImage, res.image)
	pass.Dispatch(res.width, res.height)
	if err := pass.End(); err != nil {
		b.log.Warnf("image board %s: compute pass: %v", b.id, err)
	}
}

// Render draws one point per particle with depth testing and no culling.
func (b *ImageBoard) Render(fc *imagefall.FrameContext, enc gpu.RenderEncoder) {
	res := b.res
	if res == nil {
		return
	}
	enc.PushDebugGroup("ImageBoard")
	enc.SetDepthStencilState(res.depth)
	enc.SetPipeline(res.render)
	enc.SetCullMode(gpu.CullModeNone)
	enc.SetVertexBuffer(shaders.BindingPieces, res.pieces)
	enc.SetVertexBuffer(shaders.BindingFrame, res.frame)
	enc.Draw(0, res.width*res.height)
	enc.PopDebugGroup()
}

// PostRender evaluates the phase transition for the next frame.
func (b *ImageBoard) PostRender(fc *imagefall.FrameContext) {
	if b.res == nil {
		return
	}
	if b.selector.Advance(&b.params, b.TotalLoopTime) == PhaseInitialize {
		b.params.Configure(b.FallSpeed, b.FallTarget, b.FallDelay)
		b.loops++
		b.log.Debugf("image board %s: loop %d done at frame %d", b.id, b.loops, fc.Frame)
	}
}
