package soft

import (
	"errors"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/imagefall/gpu"
	"github.com/gekko3d/imagefall/particle"
	"github.com/gekko3d/imagefall/shaders"
)

func TestBufferLifecycle(t *testing.T) {
	dev := New()
	buf, err := dev.CreateBuffer(&gpu.BufferDescriptor{Label: "b", Size: 16, Usage: gpu.BufferUsageStorage})
	require.NoError(t, err)
	assert.Equal(t, 1, dev.LiveBuffers())

	require.NoError(t, dev.WriteBuffer(buf, 4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, buf.(*Buffer).Bytes()[:8])

	assert.Error(t, dev.WriteBuffer(buf, 14, []byte{1, 2, 3, 4}), "write past the end")

	buf.Release()
	buf.Release()
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Error(t, dev.WriteBuffer(buf, 0, []byte{1}))

	_, err = dev.CreateBuffer(&gpu.BufferDescriptor{Label: "empty"})
	assert.Error(t, err)
}

func TestTextureValidation(t *testing.T) {
	dev := New()
	_, err := dev.CreateTexture(&gpu.TextureDescriptor{Label: "short", Width: 2, Height: 2, Pixels: make([]byte, 8)})
	assert.Error(t, err)
	_, err = dev.CreateTexture(&gpu.TextureDescriptor{Label: "empty"})
	assert.Error(t, err)
	assert.Equal(t, 0, dev.LiveTextures())

	tex, err := dev.CreateTexture(&gpu.TextureDescriptor{Label: "ok", Width: 1, Height: 2, Pixels: []byte{1, 2, 3, 4, 5, 6, 7, 8}})
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{5, 6, 7, 8}, tex.(*Texture).RGBA(0, 1))
}

func TestMissingEntryPoint(t *testing.T) {
	dev := New(WithLibrary(shaders.Default().Without(shaders.FallImageCompute)))

	_, err := dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{Label: "step", EntryPoint: shaders.FallImageCompute})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrEntryPointNotFound))

	_, err = dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{Label: "vertex as compute", EntryPoint: shaders.ImageBoardVertex})
	assert.Error(t, err, "stage mismatch")

	_, err = dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{Label: "setup", EntryPoint: shaders.FallImageSetup})
	assert.NoError(t, err)
	assert.Equal(t, 1, dev.LivePipelines())
}

func TestSetupDispatchSeedsParticles(t *testing.T) {
	dev := New()
	tex, err := dev.CreateTexture(&gpu.TextureDescriptor{
		Label: "img", Width: 2, Height: 1,
		Pixels: []byte{255, 0, 0, 255, 0, 0, 255, 255},
	})
	require.NoError(t, err)
	pieces, err := dev.CreateBuffer(&gpu.BufferDescriptor{Label: "pieces", Size: particle.BufferSize(2, 1)})
	require.NoError(t, err)
	pipe, err := dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{Label: "setup", EntryPoint: shaders.FallImageSetup})
	require.NoError(t, err)

	frame, err := dev.BeginFrame()
	require.NoError(t, err)
	pass := frame.Commands().BeginComputePass("seed")
	pass.SetPipeline(pipe)
	pass.SetBuffer(shaders.BindingPieces, pieces)
	pass.SetTexture(shaders.BindingImage, tex)
	pass.Dispatch(2, 1)
	require.NoError(t, pass.End())

	// Nothing runs before Submit.
	assert.Equal(t, make([]byte, particle.BufferSize(2, 1)), pieces.(*Buffer).Bytes())

	require.NoError(t, frame.Submit())
	states := particle.DecodeStates(pieces.(*Buffer).Bytes())
	require.Len(t, states, 2)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, states[0].Color)
	assert.Equal(t, mgl32.Vec4{0, 0, 1, 1}, states[1].Color)
	assert.Equal(t, particle.MarkerWaiting, states[0].Position[3])
	assert.Equal(t, []DispatchCall{{Pipeline: "setup", Width: 2, Height: 1}}, dev.Dispatches())
	assert.Error(t, frame.Submit(), "second submit")
}

func TestSetupDispatchRejectsSmallBuffer(t *testing.T) {
	dev := New()
	tex, err := dev.CreateTexture(&gpu.TextureDescriptor{Label: "img", Width: 2, Height: 2, Pixels: make([]byte, 16)})
	require.NoError(t, err)
	pieces, err := dev.CreateBuffer(&gpu.BufferDescriptor{Label: "pieces", Size: particle.StateSize})
	require.NoError(t, err)
	pipe, err := dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{Label: "setup", EntryPoint: shaders.FallImageSetup})
	require.NoError(t, err)

	frame, err := dev.BeginFrame()
	require.NoError(t, err)
	pass := frame.Commands().BeginComputePass("seed")
	pass.SetPipeline(pipe)
	pass.SetBuffer(shaders.BindingPieces, pieces)
	pass.SetTexture(shaders.BindingImage, tex)
	pass.Dispatch(2, 2)
	require.NoError(t, pass.End())
	assert.Error(t, frame.Submit())
}

// pointScene writes particles at the given clip space positions and an
// identity transform.
func pointScene(t *testing.T, dev *Device, points []particle.State) (pieces, frameUniform gpu.Buffer) {
	t.Helper()
	var err error
	pieces, err = dev.CreateBuffer(&gpu.BufferDescriptor{Label: "pieces", Size: uint64(len(points) * particle.StateSize)})
	require.NoError(t, err)
	raw := make([]byte, len(points)*particle.StateSize)
	for i, p := range points {
		particle.PutState(raw, i, p)
	}
	require.NoError(t, dev.WriteBuffer(pieces, 0, raw))

	frameUniform, err = dev.CreateBuffer(&gpu.BufferDescriptor{Label: "frame", Size: particle.TransformSize})
	require.NoError(t, err)
	require.NoError(t, dev.WriteBuffer(frameUniform, 0, particle.TransformBytes(mgl32.Ident4())))
	return pieces, frameUniform
}

func drawPoints(t *testing.T, dev *Device, depth gpu.DepthStencilState, pieces, frameUniform gpu.Buffer, count uint32) {
	t.Helper()
	pipe, err := dev.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{
		Label:         "points",
		VertexEntry:   shaders.ImageBoardVertex,
		FragmentEntry: shaders.ImageBoardFragment,
		Topology:      gpu.PrimitiveTopologyPointList,
		DepthStencil:  &depth,
	})
	require.NoError(t, err)

	frame, err := dev.BeginFrame()
	require.NoError(t, err)
	pass, err := frame.BeginRenderPass("main")
	require.NoError(t, err)
	pass.PushDebugGroup("points")
	pass.SetDepthStencilState(depth)
	pass.SetPipeline(pipe)
	pass.SetCullMode(gpu.CullModeNone)
	pass.SetVertexBuffer(shaders.BindingPieces, pieces)
	pass.SetVertexBuffer(shaders.BindingFrame, frameUniform)
	pass.Draw(0, count)
	pass.PopDebugGroup()
	require.NoError(t, pass.End())
	require.NoError(t, frame.Submit())
}

func TestRasterDepthLess(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	dev := New(WithFramebuffer(fb), WithClearColor(color.NRGBA{A: 255}))
	far := particle.State{Position: mgl32.Vec4{0, 0, 0.5, 0}, Color: mgl32.Vec4{1, 0, 0, 1}}
	near := particle.State{Position: mgl32.Vec4{0, 0, 0.25, 0}, Color: mgl32.Vec4{0, 1, 0, 1}}
	behind := particle.State{Position: mgl32.Vec4{0, 0, 0.75, 0}, Color: mgl32.Vec4{0, 0, 1, 1}}
	pieces, frameUniform := pointScene(t, dev, []particle.State{far, near, behind})

	drawPoints(t, dev, dev.CreateDepthStencilState(gpu.CompareFunctionLess, true), pieces, frameUniform, 3)

	assert.Equal(t, color.NRGBA{G: 255, A: 255}, fb.Color.NRGBAAt(2, 2))
	assert.InDelta(t, 0.25, fb.DepthAt(2, 2), 1e-6)
	assert.Equal(t, 1, fb.Covered())

	calls := dev.DrawCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, gpu.DepthStencilState{Compare: gpu.CompareFunctionLess, WriteEnabled: true}, calls[0].DepthStencil)
	assert.Equal(t, gpu.CullModeNone, calls[0].CullMode)
	assert.Equal(t, uint32(3), calls[0].VertexCount)
}

func TestRasterWithoutDepthWrites(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	dev := New(WithFramebuffer(fb))
	first := particle.State{Position: mgl32.Vec4{0, 0, 0.25, 0}, Color: mgl32.Vec4{1, 0, 0, 1}}
	last := particle.State{Position: mgl32.Vec4{0, 0, 0.75, 0}, Color: mgl32.Vec4{0, 0, 1, 1}}
	pieces, frameUniform := pointScene(t, dev, []particle.State{first, last})

	drawPoints(t, dev, dev.CreateDepthStencilState(gpu.CompareFunctionAlways, false), pieces, frameUniform, 2)

	assert.Equal(t, color.NRGBA{B: 255, A: 255}, fb.Color.NRGBAAt(2, 2))
	assert.Equal(t, 0, fb.Covered())
}

func TestRasterClipsOutsidePoints(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	dev := New(WithFramebuffer(fb))
	pieces, frameUniform := pointScene(t, dev, []particle.State{
		{Position: mgl32.Vec4{2, 0, 0.5, 0}, Color: mgl32.Vec4{1, 1, 1, 1}},
		{Position: mgl32.Vec4{0, 0, -0.5, 0}, Color: mgl32.Vec4{1, 1, 1, 1}},
	})

	drawPoints(t, dev, dev.CreateDepthStencilState(gpu.CompareFunctionLess, true), pieces, frameUniform, 2)
	assert.Equal(t, 0, fb.Covered())
}

func TestRenderPassValidation(t *testing.T) {
	dev := New()
	frame, err := dev.BeginFrame()
	require.NoError(t, err)
	pass, err := frame.BeginRenderPass("main")
	require.NoError(t, err)

	_, err = frame.BeginRenderPass("second")
	assert.Error(t, err, "previous pass still open")
	assert.Error(t, frame.Submit(), "pass not ended")

	pass.PopDebugGroup()
	assert.Error(t, pass.End())
}

func TestRenderPassRejectsOpenDebugGroup(t *testing.T) {
	dev := New()
	frame, err := dev.BeginFrame()
	require.NoError(t, err)
	pass, err := frame.BeginRenderPass("main")
	require.NoError(t, err)

	pass.PushDebugGroup("outer")
	pass.PushDebugGroup("inner")
	pass.PopDebugGroup()
	err = pass.End()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 debug groups left open")
}

func TestDrawReadsPastBuffer(t *testing.T) {
	dev := New()
	pieces, frameUniform := pointScene(t, dev, []particle.State{{}})
	pipe, err := dev.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{
		Label: "points", VertexEntry: shaders.ImageBoardVertex, FragmentEntry: shaders.ImageBoardFragment,
	})
	require.NoError(t, err)

	frame, err := dev.BeginFrame()
	require.NoError(t, err)
	pass, err := frame.BeginRenderPass("main")
	require.NoError(t, err)
	pass.SetPipeline(pipe)
	pass.SetVertexBuffer(shaders.BindingPieces, pieces)
	pass.SetVertexBuffer(shaders.BindingFrame, frameUniform)
	pass.Draw(0, 4)
	require.NoError(t, pass.End())
	assert.Error(t, frame.Submit())
}
