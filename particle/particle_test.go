package particle

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTripInBuffer(t *testing.T) {
	buf := make([]byte, BufferSize(2, 2))
	require.Len(t, buf, 4*StateSize)

	s := State{
		Position:    mgl32.Vec4{1, -2, 3, MarkerFalling},
		Color:       mgl32.Vec4{0.25, 0.5, 0.75, 1},
		Accumulator: mgl32.Vec4{0, -1.5, 0, 0.2},
	}
	PutState(buf, 3, s)

	assert.Equal(t, s, GetState(buf, 3))
	assert.Equal(t, State{}, GetState(buf, 0), "untouched records stay zero")

	all := DecodeStates(buf)
	require.Len(t, all, 4)
	assert.Equal(t, s, all[3])
}

func TestLoopParametersLayout(t *testing.T) {
	p := NewLoopParameters(-1.5, -1, 0.01)
	p.Accumulate(0.5)

	b := p.Bytes()
	require.Len(t, b, ParametersSize)

	got, err := DecodeParameters(b)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, mgl32.Vec4{0, -1.5, 0, -1}, got.Delta)
	assert.Equal(t, float32(0.5), got.LoopTime())
	assert.Equal(t, float32(0.01), got.FallDelay())

	_, err = DecodeParameters(b[:16])
	assert.Error(t, err)
}

func TestAccumulateAndReset(t *testing.T) {
	p := NewLoopParameters(-1.5, -1, 0.01)
	p.Accumulate(0.25)
	p.Accumulate(0.5)

	assert.Equal(t, float32(0.75), p.LoopTime())
	assert.Equal(t, float32(0.5), p.FrameDelta())

	p.ResetLoop()
	assert.Equal(t, float32(0), p.LoopTime())
	assert.Equal(t, float32(0.5), p.FrameDelta(), "reset only touches the loop timer")
	assert.Equal(t, float32(-1.5), p.FallSpeed())
}

func TestTransformBytes(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(-1, -1, 1))
	b := TransformBytes(m)
	require.Len(t, b, TransformSize)
	assert.Equal(t, m, DecodeTransform(b))
}

func TestIndex(t *testing.T) {
	assert.Equal(t, 0, Index(0, 0, 4))
	assert.Equal(t, 3, Index(3, 0, 4))
	assert.Equal(t, 4, Index(0, 1, 4))
	assert.Equal(t, 11, Index(3, 2, 4))
}
