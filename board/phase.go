package board

import (
	"fmt"

	"github.com/gekko3d/imagefall/particle"
)

// Phase selects the compute pipeline of the next dispatch.
type Phase uint8

const (
	// PhaseInitialize reseeds every particle from the source image.
	PhaseInitialize Phase = iota
	// PhaseStep integrates the fall.
	PhaseStep
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialize:
		return "Initialize"
	case PhaseStep:
		return "Step"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// PhaseSelector is the two state loop machine. It starts in PhaseInitialize.
// Advance is evaluated once per frame after that frame's dispatch, so the
// frame that crosses the loop length still runs its pass and the reseed
// happens on the next one.
type PhaseSelector struct {
	phase Phase
}

func (s *PhaseSelector) Phase() Phase { return s.phase }

func (s *PhaseSelector) Reset() { s.phase = PhaseInitialize }

// Advance applies the transition rule and returns the phase of the next frame.
// Crossing totalLoopTime zeroes the loop timer in params.
func (s *PhaseSelector) Advance(params *particle.LoopParameters, totalLoopTime float32) Phase {
	if params.LoopTime() > totalLoopTime {
		params.ResetLoop()
		s.phase = PhaseInitialize
	} else {
		s.phase = PhaseStep
	}
	return s.phase
}
