package fsdp

import (
	"sync/atomic"

	"github.com/go-logr/logr"
)

// TrainingPhase is the phase of the training step a sharded module is in.
type TrainingPhase int32

const (
	// Idle: outside a forward or backward pass. It's the zero value.
	Idle TrainingPhase = iota

	// Forward pass running.
	Forward

	// PreBackward: before the backward pass of the module runs.
	PreBackward

	// PostBackward: after the backward pass of the module ran.
	PostBackward
)

// PhaseState holds the current TrainingPhase. Transitions are not validated.
//
// The zero value is in Idle and logs to a discarding logger. It's safe for concurrent use.
type PhaseState struct {
	phase  atomic.Int32
	logger logr.Logger
}

// NewPhaseState returns a PhaseState in Idle that logs transitions to logger at verbosity 2.
func NewPhaseState(logger logr.Logger) *PhaseState {
	return &PhaseState{logger: logger}
}

// Phase returns the current phase.
func (s *PhaseState) Phase() TrainingPhase {
	return TrainingPhase(s.phase.Load())
}

// Set changes the current phase, and returns the previous one.
func (s *PhaseState) Set(phase TrainingPhase) TrainingPhase {
	previous := TrainingPhase(s.phase.Swap(int32(phase)))
	s.logger.V(2).Info("training phase changed", "from", previous, "to", phase)
	return previous
}

// Reset sets the phase back to Idle.
func (s *PhaseState) Reset() {
	s.Set(Idle)
}
