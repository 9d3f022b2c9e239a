package soft

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/imagefall/particle"
	"github.com/gekko3d/imagefall/shaders"
)

// ComputeKernel runs one dispatch over a width x height grid.
type ComputeKernel func(b *Bindings, width, height uint32) error

// VertexKernel shades vertices [start, start+count) and hands each to emit.
type VertexKernel func(b *Bindings, start, count uint32, emit func(Vertex)) error

type FragmentKernel func(v Vertex) mgl32.Vec4

// Vertex is a vertex stage output.
type Vertex struct {
	Position mgl32.Vec4 // clip space
	Color    mgl32.Vec4
}

// Bindings is the resource set of a dispatch or draw, keyed by binding index.
type Bindings struct {
	buffers  map[uint32]*Buffer
	textures map[uint32]*Texture
}

func newBindings() *Bindings {
	return &Bindings{buffers: map[uint32]*Buffer{}, textures: map[uint32]*Texture{}}
}

func (b *Bindings) clone() *Bindings {
	out := newBindings()
	for k, v := range b.buffers {
		out.buffers[k] = v
	}
	for k, v := range b.textures {
		out.textures[k] = v
	}
	return out
}

// Buffer returns the live storage of the buffer at binding i.
func (b *Bindings) Buffer(i uint32) ([]byte, error) {
	buf, ok := b.buffers[i]
	if !ok {
		return nil, fmt.Errorf("no buffer bound at binding %d", i)
	}
	if buf.released {
		return nil, fmt.Errorf("buffer %q at binding %d released", buf.label, i)
	}
	return buf.data, nil
}

func (b *Bindings) Texture(i uint32) (*Texture, error) {
	tex, ok := b.textures[i]
	if !ok {
		return nil, fmt.Errorf("no texture bound at binding %d", i)
	}
	if tex.released {
		return nil, fmt.Errorf("texture at binding %d released", i)
	}
	return tex, nil
}

func registerKernels(d *Device) {
	d.compute[shaders.FallImageSetup] = fallImageSetup
	d.compute[shaders.FallImageCompute] = fallImageCompute
	d.vertex[shaders.ImageBoardVertex] = imageBoardVertex
	d.fragment[shaders.ImageBoardFragment] = imageBoardFragment
}

// fallImageBindings resolves the resources shared by both fall_image passes.
func fallImageBindings(b *Bindings) (pieces []byte, image *Texture, err error) {
	if pieces, err = b.Buffer(shaders.BindingPieces); err != nil {
		return nil, nil, err
	}
	if image, err = b.Texture(shaders.BindingImage); err != nil {
		return nil, nil, err
	}
	if need := particle.BufferSize(image.width, image.height); uint64(len(pieces)) < need {
		return nil, nil, fmt.Errorf("particle buffer holds %d bytes, image needs %d", len(pieces), need)
	}
	return pieces, image, nil
}

func fallImageSetup(b *Bindings, width, height uint32) error {
	pieces, image, err := fallImageBindings(b)
	if err != nil {
		return err
	}
	for y := uint32(0); y < height && y < image.height; y++ {
		for x := uint32(0); x < width && x < image.width; x++ {
			s := particle.Seed(x, y, image.width, image.height, image.RGBA(x, y))
			particle.PutState(pieces, particle.Index(x, y, image.width), s)
		}
	}
	return nil
}

func fallImageCompute(b *Bindings, width, height uint32) error {
	pieces, image, err := fallImageBindings(b)
	if err != nil {
		return err
	}
	raw, err := b.Buffer(shaders.BindingParameters)
	if err != nil {
		return err
	}
	params, err := particle.DecodeParameters(raw)
	if err != nil {
		return err
	}
	for y := uint32(0); y < height && y < image.height; y++ {
		for x := uint32(0); x < width && x < image.width; x++ {
			i := particle.Index(x, y, image.width)
			s := particle.Step(particle.GetState(pieces, i), params, x, y, image.height)
			particle.PutState(pieces, i, s)
		}
	}
	return nil
}

func imageBoardVertex(b *Bindings, start, count uint32, emit func(Vertex)) error {
	pieces, err := b.Buffer(shaders.BindingPieces)
	if err != nil {
		return err
	}
	raw, err := b.Buffer(shaders.BindingFrame)
	if err != nil {
		return err
	}
	if len(raw) < particle.TransformSize {
		return fmt.Errorf("frame uniform holds %d bytes, want %d", len(raw), particle.TransformSize)
	}
	transform := particle.DecodeTransform(raw)
	n := uint32(len(pieces) / particle.StateSize)
	if start+count > n {
		return fmt.Errorf("draw of %d vertices from %d reads past %d particles", count, start, n)
	}
	for vid := start; vid < start+count; vid++ {
		p := particle.GetState(pieces, int(vid))
		emit(Vertex{
			Position: transform.Mul4x1(p.Position.Vec3().Vec4(1)),
			Color:    p.Color,
		})
	}
	return nil
}

func imageBoardFragment(v Vertex) mgl32.Vec4 { return v.Color }
