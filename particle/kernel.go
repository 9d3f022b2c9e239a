package particle

import (
	"github.com/go-gl/mathgl/mgl32"
)

// The functions below are the CPU form of the kernels in shaders/fall_image.wgsl.
// Keep the two in step.

// SeedPosition maps a pixel to world space: centered on the origin, the longer
// image side spanning [-1, 1], image y pointing up.
func SeedPosition(x, y, width, height uint32) mgl32.Vec3 {
	scale := 2 / float32(max(width, height))
	px := (float32(x) + 0.5 - float32(width)*0.5) * scale
	py := (float32(height)*0.5 - float32(y) - 0.5) * scale
	return mgl32.Vec3{px, py, 0}
}

// Seed builds the initial state of the particle for pixel (x, y). The previous
// state of the particle is irrelevant.
func Seed(x, y, width, height uint32, rgba [4]uint8) State {
	return State{
		Position: SeedPosition(x, y, width, height).Vec4(MarkerWaiting),
		Color: mgl32.Vec4{
			float32(rgba[0]) / 255,
			float32(rgba[1]) / 255,
			float32(rgba[2]) / 255,
			float32(rgba[3]) / 255,
		},
	}
}

// Hash01 is a deterministic per-pixel value in [0, 1].
func Hash01(x, y uint32) float32 {
	h := x*1973 + y*9277 + 89173
	h = (h << 13) ^ h
	h = h*(h*h*15731+789221) + 1376312589
	return float32(h&0x7fffffff) / 2147483647.0
}

// StartDelay is the loop time at which the particle for pixel (x, y) starts
// falling. Rows release from the bottom of the image upwards, one fallDelay
// apart, with a per-pixel offset inside the row's slot.
func StartDelay(x, y, height uint32, fallDelay float32) float32 {
	row := float32(height - 1 - y)
	return fallDelay * (row + Hash01(x, y))
}

// pastTarget reports whether y has reached target in the fall direction.
func pastTarget(y, speed, target float32) bool {
	return (speed < 0 && y <= target) || (speed > 0 && y >= target)
}

// Step advances one particle by one frame. A step that crosses the fall
// target clamps onto it; a particle that starts past the target lands in
// place.
func Step(s State, p LoopParameters, x, y, height uint32) State {
	if s.Position[3] >= MarkerLanded {
		return s
	}
	start := StartDelay(x, y, height, p.FallDelay())
	now := p.LoopTime()
	if now <= start {
		return s
	}
	speed, target := p.FallSpeed(), p.FallTarget()
	if pastTarget(s.Position[1], speed, target) {
		// Seeded beyond the target: settle where it stands.
		s.Position[3] = MarkerLanded
		return s
	}
	dt := p.FrameDelta()
	if since := now - start; since < dt {
		dt = since
	}

	vel := s.Accumulator.Vec3().Add(p.Delta.Vec3().Mul(dt))
	pos := s.Position.Vec3().Add(vel.Mul(dt))
	fallen := s.Accumulator[3] + dt
	marker := MarkerFalling

	if pastTarget(pos[1], speed, target) {
		pos[1] = target
		vel = mgl32.Vec3{}
		marker = MarkerLanded
	}

	s.Position = pos.Vec4(marker)
	s.Accumulator = vel.Vec4(fallen)
	return s
}
