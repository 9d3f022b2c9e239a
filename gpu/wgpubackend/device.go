// Package wgpubackend implements gpu.Device on WebGPU, presenting to a glfw
// window surface.
package wgpubackend

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/imagefall/gpu"
	"github.com/gekko3d/imagefall/shaders"
)

const (
	workgroupSize = 8
	depthFormat   = wgpu.TextureFormatDepth24Plus
)

type Device struct {
	Window  *glfw.Window
	Surface *wgpu.Surface
	Adapter *wgpu.Adapter
	Device  *wgpu.Device
	Queue   *wgpu.Queue
	Config  *wgpu.SurfaceConfiguration

	DepthTexture *wgpu.Texture
	DepthView    *wgpu.TextureView

	lib     *shaders.Library
	modules map[string]*wgpu.ShaderModule
	clear   wgpu.Color
}

// New creates a device presenting to win. A nil lib means shaders.Default().
func New(win *glfw.Window, lib *shaders.Library) (*Device, error) {
	if lib == nil {
		lib = shaders.Default()
	}
	d := &Device{
		Window:  win,
		lib:     lib,
		modules: map[string]*wgpu.ShaderModule{},
		clear:   wgpu.Color{R: 0, G: 0, B: 0, A: 1},
	}

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	d.Surface = instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.Adapter = adapter

	d.Device, err = adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "imagefall"})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.Queue = d.Device.GetQueue()

	width, height := win.GetFramebufferSize()
	caps := d.Surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		return nil, errors.New("surface reports no formats")
	}
	d.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	d.Surface.Configure(adapter, d.Device, d.Config)

	if err := d.createDepth(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) SetClearColor(c color.NRGBA) {
	d.clear = wgpu.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}

func (d *Device) createDepth() error {
	if d.DepthView != nil {
		d.DepthView.Release()
		d.DepthView = nil
	}
	if d.DepthTexture != nil {
		d.DepthTexture.Release()
		d.DepthTexture = nil
	}
	var err error
	d.DepthTexture, err = d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth",
		Size: wgpu.Extent3D{
			Width:              max(d.Config.Width, 1),
			Height:             max(d.Config.Height, 1),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth texture: %w", err)
	}
	d.DepthView, err = d.DepthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create depth view: %w", err)
	}
	return nil
}

// Resize reconfigures the surface and the depth buffer.
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	d.Config.Width = uint32(width)
	d.Config.Height = uint32(height)
	d.Surface.Configure(d.Adapter, d.Device, d.Config)
	return d.createDepth()
}

func (d *Device) Aspect() float32 {
	if d.Config.Height == 0 {
		return 1
	}
	return float32(d.Config.Width) / float32(d.Config.Height)
}

func (d *Device) Release() {
	for name, m := range d.modules {
		m.Release()
		delete(d.modules, name)
	}
	if d.DepthView != nil {
		d.DepthView.Release()
	}
	if d.DepthTexture != nil {
		d.DepthTexture.Release()
	}
	if d.Queue != nil {
		d.Queue.Release()
	}
	if d.Device != nil {
		d.Device.Release()
	}
	if d.Adapter != nil {
		d.Adapter.Release()
	}
	if d.Surface != nil {
		d.Surface.Release()
	}
}

// module compiles the WGSL module holding fn once and caches it.
func (d *Device) module(fn shaders.Function) (*wgpu.ShaderModule, error) {
	if m, ok := d.modules[fn.Module]; ok {
		return m, nil
	}
	m, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          fn.Module,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fn.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader module %s: %w", fn.Module, err)
	}
	d.modules[fn.Module] = m
	return m, nil
}

func (d *Device) function(name string, stage shaders.Stage) (shaders.Function, error) {
	fn, err := d.lib.Function(name)
	if err != nil {
		return shaders.Function{}, fmt.Errorf("%w: %v", gpu.ErrEntryPointNotFound, err)
	}
	if fn.Stage != stage {
		return shaders.Function{}, fmt.Errorf("entry point %q is a %s function, want %s", name, fn.Stage, stage)
	}
	return fn, nil
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&gpu.BufferUsageCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	return out
}

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage) | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", desc.Label, err)
	}
	return &Buffer{Buffer: buf, label: desc.Label, size: desc.Size}, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok || b == nil || b.Buffer == nil {
		return fmt.Errorf("write buffer: unusable buffer %T", buf)
	}
	return d.Queue.WriteBuffer(b.Buffer, offset, data)
}

func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	if len(desc.Pixels) != int(desc.Width)*int(desc.Height)*4 {
		return nil, fmt.Errorf("texture %s: got %d bytes of texels for %dx%d", desc.Label, len(desc.Pixels), desc.Width, desc.Height)
	}
	extent := wgpu.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1}
	tex, err := d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %s: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create view for %s: %w", desc.Label, err)
	}
	err = d.Queue.WriteTexture(
		tex.AsImageCopy(),
		desc.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  desc.Width * 4,
			RowsPerImage: desc.Height,
		},
		&extent,
	)
	if err != nil {
		view.Release()
		tex.Release()
		return nil, fmt.Errorf("failed to upload texture %s: %w", desc.Label, err)
	}
	return &Texture{Texture: tex, View: view, width: desc.Width, height: desc.Height}, nil
}

// bindGroupLayout builds an explicit group 0 layout from the binding list of
// the given functions.
func (d *Device) bindGroupLayout(label string, visibility wgpu.ShaderStage, bindings []shaders.Binding) (*wgpu.BindGroupLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		e := wgpu.BindGroupLayoutEntry{Binding: b.Index, Visibility: visibility}
		switch b.Kind {
		case shaders.BindingStorage:
			e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
		case shaders.BindingReadOnlyStorage:
			e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
		case shaders.BindingUniform:
			e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
		case shaders.BindingTexture:
			e.Texture = wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			}
		default:
			return nil, fmt.Errorf("binding %d: unknown kind %d", b.Index, b.Kind)
		}
		entries = append(entries, e)
	}
	bgl, err := d.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label + " BGL",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout %s: %w", label, err)
	}
	return bgl, nil
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	fn, err := d.function(desc.EntryPoint, shaders.StageCompute)
	if err != nil {
		return nil, fmt.Errorf("compute pipeline %s: %w", desc.Label, err)
	}
	module, err := d.module(fn)
	if err != nil {
		return nil, err
	}
	bgl, err := d.bindGroupLayout(desc.Label, wgpu.ShaderStageCompute, fn.Bindings)
	if err != nil {
		return nil, err
	}
	layout, err := d.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, fmt.Errorf("failed to create pipeline layout %s: %w", desc.Label, err)
	}
	defer layout.Release()

	pipe, err := d.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: fn.Name,
		},
	})
	if err != nil {
		bgl.Release()
		return nil, fmt.Errorf("failed to create compute pipeline %s: %w", desc.Label, err)
	}
	return &ComputePipeline{
		Pipeline: pipe,
		bindings: bindings{dev: d, layout: bgl, label: desc.Label, groups: map[bindKey]*wgpu.BindGroup{}},
	}, nil
}

func compareFunction(c gpu.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gpu.CompareFunctionNever:
		return wgpu.CompareFunctionNever
	case gpu.CompareFunctionLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareFunctionLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.CompareFunctionGreater:
		return wgpu.CompareFunctionGreater
	case gpu.CompareFunctionGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	case gpu.CompareFunctionEqual:
		return wgpu.CompareFunctionEqual
	case gpu.CompareFunctionNotEqual:
		return wgpu.CompareFunctionNotEqual
	}
	return wgpu.CompareFunctionAlways
}

func cullMode(m gpu.CullMode) wgpu.CullMode {
	switch m {
	case gpu.CullModeFront:
		return wgpu.CullModeFront
	case gpu.CullModeBack:
		return wgpu.CullModeBack
	}
	return wgpu.CullModeNone
}

func topology(t gpu.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case gpu.PrimitiveTopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case gpu.PrimitiveTopologyTriangleList:
		return wgpu.PrimitiveTopologyTriangleList
	}
	return wgpu.PrimitiveTopologyPointList
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	vs, err := d.function(desc.VertexEntry, shaders.StageVertex)
	if err != nil {
		return nil, fmt.Errorf("render pipeline %s: %w", desc.Label, err)
	}
	fs, err := d.function(desc.FragmentEntry, shaders.StageFragment)
	if err != nil {
		return nil, fmt.Errorf("render pipeline %s: %w", desc.Label, err)
	}
	vsModule, err := d.module(vs)
	if err != nil {
		return nil, err
	}
	fsModule, err := d.module(fs)
	if err != nil {
		return nil, err
	}

	bgl, err := d.bindGroupLayout(desc.Label, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, append(append([]shaders.Binding{}, vs.Bindings...), fs.Bindings...))
	if err != nil {
		return nil, err
	}
	layout, err := d.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, fmt.Errorf("failed to create pipeline layout %s: %w", desc.Label, err)
	}
	defer layout.Release()

	var depth *wgpu.DepthStencilState
	if desc.DepthStencil != nil {
		keep := wgpu.StencilFaceState{
			Compare:     wgpu.CompareFunctionAlways,
			FailOp:      wgpu.StencilOperationKeep,
			DepthFailOp: wgpu.StencilOperationKeep,
			PassOp:      wgpu.StencilOperationKeep,
		}
		depth = &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: desc.DepthStencil.WriteEnabled,
			DepthCompare:      compareFunction(desc.DepthStencil.Compare),
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		}
	}

	pipe, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vsModule,
			EntryPoint: vs.Name,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fsModule,
			EntryPoint: fs.Name,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    d.Config.Format,
					Blend:     nil,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.CullMode),
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		bgl.Release()
		return nil, fmt.Errorf("failed to create render pipeline %s: %w", desc.Label, err)
	}
	rp := &RenderPipeline{
		Pipeline: pipe,
		cull:     desc.CullMode,
		bindings: bindings{dev: d, layout: bgl, label: desc.Label, groups: map[bindKey]*wgpu.BindGroup{}},
	}
	if desc.DepthStencil != nil {
		ds := *desc.DepthStencil
		rp.depth = &ds
	}
	return rp, nil
}

// CreateDepthStencilState describes depth state. WebGPU bakes depth state into
// the render pipeline, so the value only has to match the pipeline it is used
// with; RenderEncoder checks that.
func (d *Device) CreateDepthStencilState(compare gpu.CompareFunction, writeEnabled bool) gpu.DepthStencilState {
	return gpu.DepthStencilState{Compare: compare, WriteEnabled: writeEnabled}
}

func (d *Device) BeginFrame() (gpu.Frame, error) {
	next, err := d.Surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	view, err := next.CreateView(nil)
	if err != nil {
		next.Release()
		return nil, fmt.Errorf("failed to create surface view: %w", err)
	}
	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		next.Release()
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	return &Frame{dev: d, target: next, view: view, encoder: encoder}, nil
}
