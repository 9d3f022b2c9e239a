// Package gpu is the device surface the effects are written against. Two
// implementations exist: gpu/wgpubackend drives a WebGPU device and gpu/soft
// runs the same programs on the CPU.
package gpu

import (
	"errors"
)

var ErrEntryPointNotFound = errors.New("shader entry point not found")

type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageCopyDst
	BufferUsageCopySrc
)

type CompareFunction uint8

const (
	CompareFunctionAlways CompareFunction = iota
	CompareFunctionNever
	CompareFunctionLess
	CompareFunctionLessEqual
	CompareFunctionGreater
	CompareFunctionGreaterEqual
	CompareFunctionEqual
	CompareFunctionNotEqual
)

// Test reports whether a fragment at depth incoming passes against stored.
func (c CompareFunction) Test(incoming, stored float32) bool {
	switch c {
	case CompareFunctionNever:
		return false
	case CompareFunctionLess:
		return incoming < stored
	case CompareFunctionLessEqual:
		return incoming <= stored
	case CompareFunctionGreater:
		return incoming > stored
	case CompareFunctionGreaterEqual:
		return incoming >= stored
	case CompareFunctionEqual:
		return incoming == stored
	case CompareFunctionNotEqual:
		return incoming != stored
	}
	return true
}

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type PrimitiveTopology uint8

const (
	PrimitiveTopologyPointList PrimitiveTopology = iota
	PrimitiveTopologyLineList
	PrimitiveTopologyTriangleList
)

// DepthStencilState is the depth test configuration of a render pass.
type DepthStencilState struct {
	Compare      CompareFunction
	WriteEnabled bool
}

type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// TextureDescriptor describes a 2D RGBA8 texture. Pixels holds Width*Height*4
// bytes, row major.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Pixels []byte
}

type ComputePipelineDescriptor struct {
	Label      string
	EntryPoint string
}

type RenderPipelineDescriptor struct {
	Label         string
	VertexEntry   string
	FragmentEntry string
	Topology      PrimitiveTopology
	CullMode      CullMode
	DepthStencil  *DepthStencilState
}

type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

type Texture interface {
	Width() uint32
	Height() uint32
	Release()
}

type ComputePipeline interface {
	Label() string
	Release()
}

type RenderPipeline interface {
	Label() string
	Release()
}

// Device creates GPU resources and frames.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	// WriteBuffer copies data into buf through the queue. The write is visible
	// to every command submitted after it.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateDepthStencilState(compare CompareFunction, writeEnabled bool) DepthStencilState
	BeginFrame() (Frame, error)
}

// Frame is the recording scope of one frame. Work recorded through Commands
// and then BeginRenderPass executes in that order once Submit is called.
type Frame interface {
	Commands() CommandEncoder
	BeginRenderPass(label string) (RenderEncoder, error)
	Submit() error
}

type CommandEncoder interface {
	BeginComputePass(label string) ComputeEncoder
}

type ComputeEncoder interface {
	SetPipeline(p ComputePipeline)
	SetBuffer(binding uint32, buf Buffer)
	SetTexture(binding uint32, tex Texture)
	// Dispatch runs the pipeline once per item of a width x height grid.
	Dispatch(width, height uint32)
	End() error
}

type RenderEncoder interface {
	PushDebugGroup(label string)
	PopDebugGroup()
	SetPipeline(p RenderPipeline)
	SetDepthStencilState(s DepthStencilState)
	SetCullMode(m CullMode)
	SetVertexBuffer(binding uint32, buf Buffer)
	// Draw issues vertexCount non-indexed vertices of the pipeline topology.
	Draw(vertexStart, vertexCount uint32)
	End() error
}

// TextureLoader decodes an image resource into a texture on dev.
type TextureLoader interface {
	LoadTexture(dev Device, resource string) (Texture, error)
}
