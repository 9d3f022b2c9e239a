package wgpubackend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/imagefall/gpu"
)

type Buffer struct {
	*wgpu.Buffer
	label string
	size  uint64
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return b.size }

func (b *Buffer) Release() {
	if b.Buffer != nil {
		b.Buffer.Release()
		b.Buffer = nil
	}
}

type Texture struct {
	*wgpu.Texture
	View   *wgpu.TextureView
	width  uint32
	height uint32
}

func (t *Texture) Width() uint32  { return t.width }
func (t *Texture) Height() uint32 { return t.height }

func (t *Texture) Release() {
	if t.View != nil {
		t.View.Release()
		t.View = nil
	}
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
	}
}

const maxBindings = 4

// bindKey identifies a bind group by the resources at each binding slot.
type bindKey [maxBindings]any

// bindings owns a pipeline's group 0 layout and caches the bind groups built
// against it.
type bindings struct {
	dev    *Device
	label  string
	layout *wgpu.BindGroupLayout
	groups map[bindKey]*wgpu.BindGroup
}

func (b *bindings) group(key bindKey) (*wgpu.BindGroup, error) {
	if bg, ok := b.groups[key]; ok {
		return bg, nil
	}
	entries := make([]wgpu.BindGroupEntry, 0, maxBindings)
	for i, r := range key {
		switch r := r.(type) {
		case nil:
		case *Buffer:
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), Buffer: r.Buffer, Size: wgpu.WholeSize})
		case *Texture:
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), TextureView: r.View})
		default:
			return nil, fmt.Errorf("binding %d: unsupported resource %T", i, r)
		}
	}
	bg, err := b.dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   b.label + " BindGroup",
		Layout:  b.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group for %s: %w", b.label, err)
	}
	b.groups[key] = bg
	return bg, nil
}

func (b *bindings) release() {
	for k, bg := range b.groups {
		bg.Release()
		delete(b.groups, k)
	}
	if b.layout != nil {
		b.layout.Release()
		b.layout = nil
	}
}

func setBinding(key *bindKey, binding uint32, r any) error {
	if binding >= maxBindings {
		return fmt.Errorf("binding %d out of range", binding)
	}
	key[binding] = r
	return nil
}

type ComputePipeline struct {
	Pipeline *wgpu.ComputePipeline
	bindings bindings
}

func (p *ComputePipeline) Label() string { return p.bindings.label }

func (p *ComputePipeline) Release() {
	p.bindings.release()
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}

type RenderPipeline struct {
	Pipeline *wgpu.RenderPipeline
	depth    *gpu.DepthStencilState
	cull     gpu.CullMode
	bindings bindings
}

func (p *RenderPipeline) Label() string { return p.bindings.label }

func (p *RenderPipeline) Release() {
	p.bindings.release()
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}
