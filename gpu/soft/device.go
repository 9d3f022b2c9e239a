// Package soft is a CPU implementation of gpu.Device. It runs the CPU mirrors
// of the WGSL entry points and can rasterize point draws into a Framebuffer.
package soft

import (
	"fmt"
	"image/color"

	"github.com/gekko3d/imagefall/gpu"
	"github.com/gekko3d/imagefall/shaders"
)

type Option func(*Device)

// WithLibrary replaces the shader library used to resolve entry points.
func WithLibrary(lib *shaders.Library) Option {
	return func(d *Device) { d.lib = lib }
}

// WithFramebuffer makes render passes rasterize into fb.
func WithFramebuffer(fb *Framebuffer) Option {
	return func(d *Device) { d.target = fb }
}

func WithClearColor(c color.NRGBA) Option {
	return func(d *Device) { d.clear = c }
}

// Device executes recorded work on Submit, in recording order.
type Device struct {
	lib    *shaders.Library
	target *Framebuffer
	clear  color.NRGBA

	compute  map[string]ComputeKernel
	vertex   map[string]VertexKernel
	fragment map[string]FragmentKernel

	liveBuffers   int
	liveTextures  int
	livePipelines int

	frames    int
	drawCalls []DrawCall
	dispatch  []DispatchCall
}

// DrawCall is the state a draw was issued with.
type DrawCall struct {
	Pipeline     string
	DepthStencil gpu.DepthStencilState
	CullMode     gpu.CullMode
	Topology     gpu.PrimitiveTopology
	VertexStart  uint32
	VertexCount  uint32
}

type DispatchCall struct {
	Pipeline string
	Width    uint32
	Height   uint32
}

func New(opts ...Option) *Device {
	d := &Device{
		lib:      shaders.Default(),
		clear:    color.NRGBA{A: 255},
		compute:  map[string]ComputeKernel{},
		vertex:   map[string]VertexKernel{},
		fragment: map[string]FragmentKernel{},
	}
	registerKernels(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) LiveBuffers() int   { return d.liveBuffers }
func (d *Device) LiveTextures() int  { return d.liveTextures }
func (d *Device) LivePipelines() int { return d.livePipelines }

// Frames is the number of submitted frames.
func (d *Device) Frames() int { return d.frames }

// DrawCalls returns the draws executed by the last submitted frame.
func (d *Device) DrawCalls() []DrawCall { return d.drawCalls }

// Dispatches returns the compute dispatches executed by the last submitted frame.
func (d *Device) Dispatches() []DispatchCall { return d.dispatch }

func (d *Device) Framebuffer() *Framebuffer { return d.target }

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q: zero size", desc.Label)
	}
	d.liveBuffers++
	return &Buffer{dev: d, label: desc.Label, usage: desc.Usage, data: make([]byte, desc.Size)}, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok || b == nil {
		return fmt.Errorf("write buffer: foreign buffer %T", buf)
	}
	if b.released {
		return fmt.Errorf("write buffer %q: released", b.label)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("write buffer %q: %d bytes at %d overflows size %d", b.label, len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q: empty extent %dx%d", desc.Label, desc.Width, desc.Height)
	}
	want := int(desc.Width) * int(desc.Height) * 4
	if len(desc.Pixels) != want {
		return nil, fmt.Errorf("texture %q: got %d bytes of texels, want %d", desc.Label, len(desc.Pixels), want)
	}
	pix := make([]byte, want)
	copy(pix, desc.Pixels)
	d.liveTextures++
	return &Texture{dev: d, width: desc.Width, height: desc.Height, pix: pix}, nil
}

func (d *Device) lookup(name string, stage shaders.Stage) error {
	fn, err := d.lib.Function(name)
	if err != nil {
		return fmt.Errorf("%w: %v", gpu.ErrEntryPointNotFound, err)
	}
	if fn.Stage != stage {
		return fmt.Errorf("entry point %q is a %s function, want %s", name, fn.Stage, stage)
	}
	return nil
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	if err := d.lookup(desc.EntryPoint, shaders.StageCompute); err != nil {
		return nil, fmt.Errorf("compute pipeline %q: %w", desc.Label, err)
	}
	k, ok := d.compute[desc.EntryPoint]
	if !ok {
		return nil, fmt.Errorf("compute pipeline %q: %w: no CPU kernel for %q", desc.Label, gpu.ErrEntryPointNotFound, desc.EntryPoint)
	}
	d.livePipelines++
	return &ComputePipeline{dev: d, label: desc.Label, kernel: k}, nil
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.lookup(desc.VertexEntry, shaders.StageVertex); err != nil {
		return nil, fmt.Errorf("render pipeline %q: %w", desc.Label, err)
	}
	if err := d.lookup(desc.FragmentEntry, shaders.StageFragment); err != nil {
		return nil, fmt.Errorf("render pipeline %q: %w", desc.Label, err)
	}
	vk, ok := d.vertex[desc.VertexEntry]
	if !ok {
		return nil, fmt.Errorf("render pipeline %q: %w: no CPU kernel for %q", desc.Label, gpu.ErrEntryPointNotFound, desc.VertexEntry)
	}
	fk, ok := d.fragment[desc.FragmentEntry]
	if !ok {
		return nil, fmt.Errorf("render pipeline %q: %w: no CPU kernel for %q", desc.Label, gpu.ErrEntryPointNotFound, desc.FragmentEntry)
	}
	p := &RenderPipeline{
		dev:      d,
		label:    desc.Label,
		vertex:   vk,
		fragment: fk,
		topology: desc.Topology,
		cull:     desc.CullMode,
	}
	if desc.DepthStencil != nil {
		ds := *desc.DepthStencil
		p.depth = &ds
	}
	d.livePipelines++
	return p, nil
}

func (d *Device) CreateDepthStencilState(compare gpu.CompareFunction, writeEnabled bool) gpu.DepthStencilState {
	return gpu.DepthStencilState{Compare: compare, WriteEnabled: writeEnabled}
}

func (d *Device) BeginFrame() (gpu.Frame, error) {
	return &Frame{dev: d}, nil
}

type Buffer struct {
	dev      *Device
	label    string
	usage    gpu.BufferUsage
	data     []byte
	released bool
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return uint64(len(b.data)) }

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.dev.liveBuffers--
}

// Texture holds RGBA8 texels, row major.
type Texture struct {
	dev      *Device
	width    uint32
	height   uint32
	pix      []byte
	released bool
}

func (t *Texture) Width() uint32  { return t.width }
func (t *Texture) Height() uint32 { return t.height }

// RGBA returns the texel at (x, y).
func (t *Texture) RGBA(x, y uint32) [4]uint8 {
	i := (int(y)*int(t.width) + int(x)) * 4
	return [4]uint8{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

func (t *Texture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.dev.liveTextures--
}

type ComputePipeline struct {
	dev      *Device
	label    string
	kernel   ComputeKernel
	released bool
}

func (p *ComputePipeline) Label() string { return p.label }

func (p *ComputePipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	p.dev.livePipelines--
}

type RenderPipeline struct {
	dev      *Device
	label    string
	vertex   VertexKernel
	fragment FragmentKernel
	topology gpu.PrimitiveTopology
	cull     gpu.CullMode
	depth    *gpu.DepthStencilState
	released bool
}

func (p *RenderPipeline) Label() string { return p.label }

func (p *RenderPipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	p.dev.livePipelines--
}
