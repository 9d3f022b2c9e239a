package board

import (
	"fmt"
)

// Setup operations named in a SetupError.
const (
	OpLoadTexture     = "load texture"
	OpCreateBuffer    = "create buffer"
	OpWriteBuffer     = "write buffer"
	OpComputePipeline = "create compute pipeline"
	OpRenderPipeline  = "create render pipeline"
)

// SetupError reports which step of Setup failed and on what.
type SetupError struct {
	Op       string
	Resource string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("image board setup: %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
