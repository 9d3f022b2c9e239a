package wgpubackend

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"

	"github.com/gekko3d/imagefall/gpu"
)

func TestBufferUsageMapping(t *testing.T) {
	u := bufferUsage(gpu.BufferUsageStorage | gpu.BufferUsageCopyDst)
	assert.NotZero(t, u&wgpu.BufferUsageStorage)
	assert.NotZero(t, u&wgpu.BufferUsageCopyDst)
	assert.Zero(t, u&wgpu.BufferUsageUniform)
}

func TestStateMapping(t *testing.T) {
	assert.Equal(t, wgpu.CompareFunctionLess, compareFunction(gpu.CompareFunctionLess))
	assert.Equal(t, wgpu.CompareFunctionAlways, compareFunction(gpu.CompareFunctionAlways))
	assert.Equal(t, wgpu.CullModeNone, cullMode(gpu.CullModeNone))
	assert.Equal(t, wgpu.PrimitiveTopologyPointList, topology(gpu.PrimitiveTopologyPointList))
}

func TestBindKeyIdentity(t *testing.T) {
	a, b := &Buffer{label: "a"}, &Buffer{label: "b"}

	var k1, k2 bindKey
	assert.NoError(t, setBinding(&k1, 0, a))
	assert.NoError(t, setBinding(&k2, 0, a))
	assert.Equal(t, k1, k2)

	assert.NoError(t, setBinding(&k2, 1, b))
	assert.NotEqual(t, k1, k2)

	assert.Error(t, setBinding(&k1, maxBindings, a))
}

func TestRenderStateCheck(t *testing.T) {
	less := gpu.DepthStencilState{Compare: gpu.CompareFunctionLess, WriteEnabled: true}
	p := &RenderPipeline{depth: &less, cull: gpu.CullModeNone, bindings: bindings{label: "board"}}

	e := &RenderEncoder{pipeline: p}
	e.SetDepthStencilState(less)
	e.SetCullMode(gpu.CullModeNone)
	assert.NoError(t, e.checkState())

	e.SetCullMode(gpu.CullModeBack)
	assert.Error(t, e.checkState())

	e.SetCullMode(gpu.CullModeNone)
	e.SetDepthStencilState(gpu.DepthStencilState{Compare: gpu.CompareFunctionAlways})
	assert.Error(t, e.checkState())
}
