package particle

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Byte sizes of the GPU records. They match the WGSL structs in
// shaders/fall_image.wgsl and shaders/image_board.wgsl.
const (
	StateSize      = 48 // Piece { position, color, acc: vec4<f32> }
	ParametersSize = 32 // Parameter { delta, time: vec4<f32> }
	TransformSize  = 64 // mat4x4<f32>
)

// Values stored in State.Position.W.
const (
	MarkerWaiting float32 = 0
	MarkerFalling float32 = 1
	MarkerLanded  float32 = 2
)

// State is one particle, one per source pixel.
type State struct {
	Position    mgl32.Vec4 // xyz world position, w phase marker
	Color       mgl32.Vec4 // rgba 0..1
	Accumulator mgl32.Vec4 // xyz velocity, w seconds spent falling
}

// LoopParameters is the parameter block read by both compute passes.
//
//	Delta = (0, fallSpeed, 0, fallTarget)
//	Time  = (loop time, frame dt, unused, fallDelay)
type LoopParameters struct {
	Delta mgl32.Vec4
	Time  mgl32.Vec4
}

// NewLoopParameters builds a parameter block with a zeroed loop timer.
func NewLoopParameters(fallSpeed, fallTarget, fallDelay float32) LoopParameters {
	return LoopParameters{
		Delta: mgl32.Vec4{0, fallSpeed, 0, fallTarget},
		Time:  mgl32.Vec4{0, 0, 0, fallDelay},
	}
}

// Accumulate adds one frame's delta time to the loop timer.
func (p *LoopParameters) Accumulate(dt float32) {
	p.Time[0] += dt
	p.Time[1] = dt
}

// ResetLoop zeroes the loop timer.
func (p *LoopParameters) ResetLoop() {
	p.Time[0] = 0
}

// Configure replaces the fall vector and delay, leaving the timer alone.
func (p *LoopParameters) Configure(fallSpeed, fallTarget, fallDelay float32) {
	p.Delta = mgl32.Vec4{0, fallSpeed, 0, fallTarget}
	p.Time[3] = fallDelay
}

func (p LoopParameters) LoopTime() float32  { return p.Time[0] }
func (p LoopParameters) FrameDelta() float32 { return p.Time[1] }
func (p LoopParameters) FallDelay() float32  { return p.Time[3] }
func (p LoopParameters) FallSpeed() float32  { return p.Delta[1] }
func (p LoopParameters) FallTarget() float32 { return p.Delta[3] }

// Bytes encodes the whole block for a single buffer write.
func (p LoopParameters) Bytes() []byte {
	buf := make([]byte, ParametersSize)
	putVec4(buf[0:], p.Delta)
	putVec4(buf[16:], p.Time)
	return buf
}

// DecodeParameters reads a parameter block written by Bytes.
func DecodeParameters(buf []byte) (LoopParameters, error) {
	if len(buf) < ParametersSize {
		return LoopParameters{}, fmt.Errorf("parameter block too short: %d bytes", len(buf))
	}
	return LoopParameters{
		Delta: getVec4(buf[0:]),
		Time:  getVec4(buf[16:]),
	}, nil
}

// Index maps a pixel coordinate to its linear particle index.
func Index(x, y, width uint32) int {
	return int(y*width + x)
}

// BufferSize is the byte length of a particle buffer for a width x height image.
func BufferSize(width, height uint32) uint64 {
	return uint64(width) * uint64(height) * StateSize
}

// PutState writes particle i into buf.
func PutState(buf []byte, i int, s State) {
	off := i * StateSize
	putVec4(buf[off:], s.Position)
	putVec4(buf[off+16:], s.Color)
	putVec4(buf[off+32:], s.Accumulator)
}

// GetState reads particle i from buf.
func GetState(buf []byte, i int) State {
	off := i * StateSize
	return State{
		Position:    getVec4(buf[off:]),
		Color:       getVec4(buf[off+16:]),
		Accumulator: getVec4(buf[off+32:]),
	}
}

// DecodeStates reads every particle record in buf.
func DecodeStates(buf []byte) []State {
	n := len(buf) / StateSize
	out := make([]State, n)
	for i := range out {
		out[i] = GetState(buf, i)
	}
	return out
}

// TransformBytes encodes a column-major matrix the way WGSL mat4x4<f32> expects it.
func TransformBytes(m mgl32.Mat4) []byte {
	buf := make([]byte, TransformSize)
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeTransform reads a matrix written by TransformBytes.
func DecodeTransform(buf []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return m
}

func putVec4(buf []byte, v mgl32.Vec4) {
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

func getVec4(buf []byte) mgl32.Vec4 {
	var v mgl32.Vec4
	for i := 0; i < 4; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
