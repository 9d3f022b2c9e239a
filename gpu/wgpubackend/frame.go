package wgpubackend

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/imagefall/gpu"
)

// Frame records into one command encoder and presents the surface texture on
// Submit.
type Frame struct {
	dev     *Device
	target  *wgpu.Texture
	view    *wgpu.TextureView
	encoder *wgpu.CommandEncoder
	pass    *RenderEncoder
	done    bool
}

func (f *Frame) Commands() gpu.CommandEncoder { return commandEncoder{f} }

func (f *Frame) BeginRenderPass(label string) (gpu.RenderEncoder, error) {
	if f.done {
		return nil, errors.New("begin render pass: frame already submitted")
	}
	if f.pass != nil && !f.pass.ended {
		return nil, fmt.Errorf("begin render pass %s: previous pass not ended", label)
	}
	pass := f.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       f.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: f.dev.clear,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            f.dev.DepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	f.pass = &RenderEncoder{pass: pass, label: label}
	return f.pass, nil
}

func (f *Frame) Submit() error {
	if f.done {
		return errors.New("frame already submitted")
	}
	f.done = true
	defer f.release()
	if f.pass != nil && !f.pass.ended {
		return fmt.Errorf("submit: render pass %s not ended", f.pass.label)
	}
	cmd, err := f.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	f.dev.Queue.Submit(cmd)
	f.dev.Surface.Present()
	return nil
}

func (f *Frame) release() {
	f.encoder.Release()
	f.view.Release()
	f.target.Release()
}

type commandEncoder struct{ f *Frame }

func (c commandEncoder) BeginComputePass(label string) gpu.ComputeEncoder {
	return &ComputeEncoder{pass: c.f.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label}), label: label}
}

type ComputeEncoder struct {
	pass     *wgpu.ComputePassEncoder
	label    string
	pipeline *ComputePipeline
	key      bindKey
	err      error
}

func (e *ComputeEncoder) fail(err error) {
	if e.err == nil {
		e.err = fmt.Errorf("compute pass %s: %w", e.label, err)
	}
}

func (e *ComputeEncoder) SetPipeline(p gpu.ComputePipeline) {
	cp, ok := p.(*ComputePipeline)
	if !ok {
		e.fail(fmt.Errorf("foreign pipeline %T", p))
		return
	}
	e.pipeline = cp
	e.pass.SetPipeline(cp.Pipeline)
}

func (e *ComputeEncoder) SetBuffer(binding uint32, buf gpu.Buffer) {
	b, ok := buf.(*Buffer)
	if !ok {
		e.fail(fmt.Errorf("foreign buffer %T", buf))
		return
	}
	if err := setBinding(&e.key, binding, b); err != nil {
		e.fail(err)
	}
}

func (e *ComputeEncoder) SetTexture(binding uint32, tex gpu.Texture) {
	t, ok := tex.(*Texture)
	if !ok {
		e.fail(fmt.Errorf("foreign texture %T", tex))
		return
	}
	if err := setBinding(&e.key, binding, t); err != nil {
		e.fail(err)
	}
}

// Dispatch covers the grid with 8x8 workgroups. The shaders bounds check the
// overhang.
func (e *ComputeEncoder) Dispatch(width, height uint32) {
	if e.err != nil {
		return
	}
	if e.pipeline == nil {
		e.fail(errors.New("dispatch without pipeline"))
		return
	}
	bg, err := e.pipeline.bindings.group(e.key)
	if err != nil {
		e.fail(err)
		return
	}
	e.pass.SetBindGroup(0, bg, nil)
	e.pass.DispatchWorkgroups((width+workgroupSize-1)/workgroupSize, (height+workgroupSize-1)/workgroupSize, 1)
}

func (e *ComputeEncoder) End() error {
	if err := e.pass.End(); err != nil {
		e.fail(err)
	}
	return e.err
}

type RenderEncoder struct {
	pass     *wgpu.RenderPassEncoder
	label    string
	pipeline *RenderPipeline
	depth    *gpu.DepthStencilState
	cull     gpu.CullMode
	key      bindKey
	ended    bool
	err      error
}

func (e *RenderEncoder) fail(err error) {
	if e.err == nil {
		e.err = fmt.Errorf("render pass %s: %w", e.label, err)
	}
}

func (e *RenderEncoder) PushDebugGroup(label string) { e.pass.PushDebugGroup(label) }
func (e *RenderEncoder) PopDebugGroup()              { e.pass.PopDebugGroup() }

func (e *RenderEncoder) SetPipeline(p gpu.RenderPipeline) {
	rp, ok := p.(*RenderPipeline)
	if !ok {
		e.fail(fmt.Errorf("foreign pipeline %T", p))
		return
	}
	e.pipeline = rp
	e.pass.SetPipeline(rp.Pipeline)
}

func (e *RenderEncoder) SetDepthStencilState(s gpu.DepthStencilState) { e.depth = &s }
func (e *RenderEncoder) SetCullMode(m gpu.CullMode)                   { e.cull = m }

func (e *RenderEncoder) SetVertexBuffer(binding uint32, buf gpu.Buffer) {
	b, ok := buf.(*Buffer)
	if !ok {
		e.fail(fmt.Errorf("foreign buffer %T", buf))
		return
	}
	if err := setBinding(&e.key, binding, b); err != nil {
		e.fail(err)
	}
}

// checkState verifies the dynamic state set on the encoder matches what the
// pipeline was built with.
func (e *RenderEncoder) checkState() error {
	p := e.pipeline
	if e.cull != p.cull {
		return fmt.Errorf("cull mode %d does not match pipeline %s (%d)", e.cull, p.Label(), p.cull)
	}
	if e.depth == nil {
		return nil
	}
	if p.depth == nil || *p.depth != *e.depth {
		return fmt.Errorf("depth state %+v does not match pipeline %s", *e.depth, p.Label())
	}
	return nil
}

func (e *RenderEncoder) Draw(vertexStart, vertexCount uint32) {
	if e.err != nil {
		return
	}
	if e.pipeline == nil {
		e.fail(errors.New("draw without pipeline"))
		return
	}
	if err := e.checkState(); err != nil {
		e.fail(err)
		return
	}
	bg, err := e.pipeline.bindings.group(e.key)
	if err != nil {
		e.fail(err)
		return
	}
	e.pass.SetBindGroup(0, bg, nil)
	e.pass.Draw(vertexCount, 1, vertexStart, 0)
}

func (e *RenderEncoder) End() error {
	e.ended = true
	if err := e.pass.End(); err != nil {
		e.fail(err)
	}
	return e.err
}
