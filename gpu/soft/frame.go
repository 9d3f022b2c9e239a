package soft

import (
	"errors"
	"fmt"

	"github.com/gekko3d/imagefall/gpu"
)

// Frame records compute and render work and runs it on Submit.
type Frame struct {
	dev       *Device
	commands  []command
	pass      *RenderEncoder
	submitted bool
}

type command struct {
	label string
	run   func() error
}

func (f *Frame) record(label string, run func() error) {
	f.commands = append(f.commands, command{label: label, run: run})
}

func (f *Frame) Commands() gpu.CommandEncoder { return commandEncoder{f} }

func (f *Frame) BeginRenderPass(label string) (gpu.RenderEncoder, error) {
	if f.submitted {
		return nil, errors.New("begin render pass: frame already submitted")
	}
	if f.pass != nil && !f.pass.ended {
		return nil, fmt.Errorf("begin render pass %q: previous pass %q not ended", label, f.pass.label)
	}
	enc := &RenderEncoder{frame: f, label: label, bindings: newBindings()}
	f.pass = enc
	f.record(label+"/clear", func() error {
		if f.dev.target != nil {
			f.dev.target.Clear(f.dev.clear)
		}
		return nil
	})
	return enc, nil
}

func (f *Frame) Submit() error {
	if f.submitted {
		return errors.New("frame already submitted")
	}
	if f.pass != nil && !f.pass.ended {
		return fmt.Errorf("submit: render pass %q not ended", f.pass.label)
	}
	f.submitted = true
	f.dev.drawCalls = nil
	f.dev.dispatch = nil
	for _, c := range f.commands {
		if err := c.run(); err != nil {
			return fmt.Errorf("%s: %w", c.label, err)
		}
	}
	f.dev.frames++
	return nil
}

type commandEncoder struct{ f *Frame }

func (c commandEncoder) BeginComputePass(label string) gpu.ComputeEncoder {
	return &ComputeEncoder{frame: c.f, label: label, bindings: newBindings()}
}

type ComputeEncoder struct {
	frame    *Frame
	label    string
	pipeline *ComputePipeline
	bindings *Bindings
	err      error
}

func (e *ComputeEncoder) SetPipeline(p gpu.ComputePipeline) {
	cp, ok := p.(*ComputePipeline)
	if !ok {
		e.err = fmt.Errorf("compute pass %q: foreign pipeline %T", e.label, p)
		return
	}
	e.pipeline = cp
}

func (e *ComputeEncoder) SetBuffer(binding uint32, buf gpu.Buffer) {
	b, ok := buf.(*Buffer)
	if !ok {
		e.err = fmt.Errorf("compute pass %q: foreign buffer %T at binding %d", e.label, buf, binding)
		return
	}
	e.bindings.buffers[binding] = b
}

func (e *ComputeEncoder) SetTexture(binding uint32, tex gpu.Texture) {
	t, ok := tex.(*Texture)
	if !ok {
		e.err = fmt.Errorf("compute pass %q: foreign texture %T at binding %d", e.label, tex, binding)
		return
	}
	e.bindings.textures[binding] = t
}

func (e *ComputeEncoder) Dispatch(width, height uint32) {
	if e.err != nil {
		return
	}
	if e.pipeline == nil {
		e.err = fmt.Errorf("compute pass %q: dispatch without pipeline", e.label)
		return
	}
	p, b, dev := e.pipeline, e.bindings.clone(), e.frame.dev
	e.frame.record(e.label, func() error {
		if p.released {
			return fmt.Errorf("pipeline %q released", p.label)
		}
		dev.dispatch = append(dev.dispatch, DispatchCall{Pipeline: p.label, Width: width, Height: height})
		return p.kernel(b, width, height)
	})
}

func (e *ComputeEncoder) End() error { return e.err }

type RenderEncoder struct {
	frame    *Frame
	label    string
	groups   []string
	pipeline *RenderPipeline
	depth    *gpu.DepthStencilState
	cull     gpu.CullMode
	bindings *Bindings
	ended    bool
	err      error
}

func (e *RenderEncoder) PushDebugGroup(label string) { e.groups = append(e.groups, label) }

func (e *RenderEncoder) PopDebugGroup() {
	if len(e.groups) == 0 {
		e.err = fmt.Errorf("render pass %q: pop without push", e.label)
		return
	}
	e.groups = e.groups[:len(e.groups)-1]
}

func (e *RenderEncoder) SetPipeline(p gpu.RenderPipeline) {
	rp, ok := p.(*RenderPipeline)
	if !ok {
		e.err = fmt.Errorf("render pass %q: foreign pipeline %T", e.label, p)
		return
	}
	e.pipeline = rp
}

func (e *RenderEncoder) SetDepthStencilState(s gpu.DepthStencilState) { e.depth = &s }

func (e *RenderEncoder) SetCullMode(m gpu.CullMode) { e.cull = m }

func (e *RenderEncoder) SetVertexBuffer(binding uint32, buf gpu.Buffer) {
	b, ok := buf.(*Buffer)
	if !ok {
		e.err = fmt.Errorf("render pass %q: foreign buffer %T at binding %d", e.label, buf, binding)
		return
	}
	e.bindings.buffers[binding] = b
}

func (e *RenderEncoder) Draw(vertexStart, vertexCount uint32) {
	if e.err != nil {
		return
	}
	if e.pipeline == nil {
		e.err = fmt.Errorf("render pass %q: draw without pipeline", e.label)
		return
	}
	call := DrawCall{
		Pipeline:    e.pipeline.label,
		CullMode:    e.cull,
		Topology:    e.pipeline.topology,
		VertexStart: vertexStart,
		VertexCount: vertexCount,
	}
	// Without an explicit state the pipeline's own depth state applies.
	switch {
	case e.depth != nil:
		call.DepthStencil = *e.depth
	case e.pipeline.depth != nil:
		call.DepthStencil = *e.pipeline.depth
	default:
		call.DepthStencil = gpu.DepthStencilState{Compare: gpu.CompareFunctionAlways}
	}
	p, b, dev := e.pipeline, e.bindings.clone(), e.frame.dev
	e.frame.record(e.label, func() error {
		if p.released {
			return fmt.Errorf("pipeline %q released", p.label)
		}
		dev.drawCalls = append(dev.drawCalls, call)
		return dev.draw(p, b, call)
	})
}

func (e *RenderEncoder) End() error {
	e.ended = true
	if e.err != nil {
		return e.err
	}
	if len(e.groups) != 0 {
		return fmt.Errorf("render pass %q: %d debug groups left open", e.label, len(e.groups))
	}
	return nil
}
