package soft

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/imagefall/gpu"
)

// Framebuffer is a color target with a matching depth buffer. Depth clears
// to 1, the far plane.
type Framebuffer struct {
	Color *image.NRGBA
	Depth []float32
}

func NewFramebuffer(width, height int) *Framebuffer {
	fb := &Framebuffer{
		Color: image.NewNRGBA(image.Rect(0, 0, width, height)),
		Depth: make([]float32, width*height),
	}
	fb.Clear(color.NRGBA{A: 255})
	return fb
}

func (fb *Framebuffer) Width() int  { return fb.Color.Rect.Dx() }
func (fb *Framebuffer) Height() int { return fb.Color.Rect.Dy() }

func (fb *Framebuffer) Clear(c color.NRGBA) {
	pix := fb.Color.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	for i := range fb.Depth {
		fb.Depth[i] = 1
	}
}

// DepthAt returns the stored depth of pixel (x, y).
func (fb *Framebuffer) DepthAt(x, y int) float32 {
	return fb.Depth[y*fb.Width()+x]
}

// Covered counts pixels whose depth was written since the last clear.
func (fb *Framebuffer) Covered() int {
	n := 0
	for _, d := range fb.Depth {
		if d < 1 {
			n++
		}
	}
	return n
}

// draw shades the vertices of one draw call and, with a target attached,
// rasterizes them as single pixel points.
func (d *Device) draw(p *RenderPipeline, b *Bindings, call DrawCall) error {
	if p.topology != gpu.PrimitiveTopologyPointList {
		return fmt.Errorf("pipeline %q: only point lists are rasterized", p.label)
	}
	fb := d.target
	return p.vertex(b, call.VertexStart, call.VertexCount, func(v Vertex) {
		if fb == nil {
			return
		}
		px, py, z, ok := project(v.Position, fb.Width(), fb.Height())
		if !ok {
			return
		}
		i := py*fb.Width() + px
		if !call.DepthStencil.Compare.Test(z, fb.Depth[i]) {
			return
		}
		if call.DepthStencil.WriteEnabled {
			fb.Depth[i] = z
		}
		fb.Color.SetNRGBA(px, py, toNRGBA(p.fragment(v)))
	})
}

// project maps a clip space position to a pixel and a [0, 1] depth. Points
// outside the clip volume are rejected.
func project(clip mgl32.Vec4, width, height int) (x, y int, z float32, ok bool) {
	if clip[3] <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	if ndc[0] < -1 || ndc[0] > 1 || ndc[1] < -1 || ndc[1] > 1 || ndc[2] < 0 || ndc[2] > 1 {
		return 0, 0, 0, false
	}
	x = int((ndc[0]*0.5 + 0.5) * float32(width))
	y = int((0.5 - ndc[1]*0.5) * float32(height))
	x = min(x, width-1)
	y = min(y, height-1)
	return x, y, ndc[2], true
}

func toNRGBA(c mgl32.Vec4) color.NRGBA {
	ch := func(v float32) uint8 {
		return uint8(math.Round(float64(mgl32.Clamp(v, 0, 1)) * 255))
	}
	return color.NRGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: ch(c[3])}
}
