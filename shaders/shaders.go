package shaders

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
)

//go:embed fall_image.wgsl
var FallImageWGSL string

//go:embed image_board.wgsl
var ImageBoardWGSL string

// Entry points.
const (
	FallImageSetup     = "fall_image_setup"
	FallImageCompute   = "fall_image_compute"
	ImageBoardVertex   = "image_board_vertex"
	ImageBoardFragment = "image_board_fragment"
)

// Bindings in group 0. The WGSL declares the same numbers.
const (
	BindingPieces     uint32 = 0 // particle buffer
	BindingParameters uint32 = 1 // loop parameters (compute)
	BindingImage      uint32 = 2 // source texture (compute)
	BindingFrame      uint32 = 1 // transform uniform (render)
)

var ErrFunctionNotFound = errors.New("shader function not found")

type Stage uint8

const (
	StageCompute Stage = iota
	StageVertex
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageCompute:
		return "compute"
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

type BindingKind uint8

const (
	BindingStorage BindingKind = iota
	BindingReadOnlyStorage
	BindingUniform
	BindingTexture
)

type Binding struct {
	Index uint32
	Kind  BindingKind
}

// Function is one entry point of a shader module.
type Function struct {
	Name     string
	Module   string // module label, shared by entry points of the same source
	Source   string
	Stage    Stage
	Bindings []Binding
}

// Library resolves entry points by name.
type Library struct {
	functions map[string]Function
}

func NewLibrary(functions ...Function) *Library {
	lib := &Library{functions: make(map[string]Function, len(functions))}
	for _, fn := range functions {
		lib.functions[fn.Name] = fn
	}
	return lib
}

// Default returns the library backed by the embedded WGSL.
func Default() *Library {
	computeBindings := []Binding{
		{Index: BindingPieces, Kind: BindingStorage},
		{Index: BindingParameters, Kind: BindingUniform},
		{Index: BindingImage, Kind: BindingTexture},
	}
	renderBindings := []Binding{
		{Index: BindingPieces, Kind: BindingReadOnlyStorage},
		{Index: BindingFrame, Kind: BindingUniform},
	}
	return NewLibrary(
		Function{Name: FallImageSetup, Module: "FallImage", Source: FallImageWGSL, Stage: StageCompute, Bindings: computeBindings},
		Function{Name: FallImageCompute, Module: "FallImage", Source: FallImageWGSL, Stage: StageCompute, Bindings: computeBindings},
		Function{Name: ImageBoardVertex, Module: "ImageBoard", Source: ImageBoardWGSL, Stage: StageVertex, Bindings: renderBindings},
		Function{Name: ImageBoardFragment, Module: "ImageBoard", Source: ImageBoardWGSL, Stage: StageFragment},
	)
}

// Function looks up an entry point.
func (l *Library) Function(name string) (Function, error) {
	fn, ok := l.functions[name]
	if !ok {
		return Function{}, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return fn, nil
}

// Without returns a copy of the library missing the named entry points.
func (l *Library) Without(names ...string) *Library {
	out := &Library{functions: make(map[string]Function, len(l.functions))}
	for k, v := range l.functions {
		out.functions[k] = v
	}
	for _, n := range names {
		delete(out.functions, n)
	}
	return out
}

// Names lists the entry points in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.functions))
	for n := range l.functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
