package fsdp

import (
	"strings"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingPhase(t *testing.T) {
	assert.Equal(t, Idle, TrainingPhase(0))
	assert.Equal(t, []string{"Idle", "Forward", "PreBackward", "PostBackward"}, TrainingPhaseStrings())
	assert.Equal(t, "TrainingPhase(7)", TrainingPhase(7).String())
	assert.False(t, TrainingPhase(7).IsATrainingPhase())

	phase, err := TrainingPhaseString("prebackward")
	require.NoError(t, err)
	assert.Equal(t, PreBackward, phase)
	_, err = TrainingPhaseString("backward")
	require.Error(t, err)
}

func TestPhaseState(t *testing.T) {
	var zero PhaseState
	assert.Equal(t, Idle, zero.Phase())
	assert.Equal(t, Idle, zero.Set(Forward))
	assert.Equal(t, Forward, zero.Phase())

	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 2})
	state := NewPhaseState(logger)
	for _, phase := range []TrainingPhase{Forward, PreBackward, PostBackward, Forward} {
		state.Set(phase)
		assert.Equal(t, phase, state.Phase())
	}
	state.Reset()
	assert.Equal(t, Idle, state.Phase())

	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], `"from"="Forward"`)
	assert.Contains(t, lines[1], `"to"="PreBackward"`)
	assert.True(t, strings.Contains(lines[4], `"to"="Idle"`))
}
