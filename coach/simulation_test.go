package coach

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStepScenario() SimulationScenario {
	return SimulationScenario{
		ID:      "test-debate",
		Title:   "Test Debate",
		Persona: PersonaDebate,
		Steps: []SimulationStep{
			{StepNumber: 0, Prompt: "open", Hint: "state your position"},
			{StepNumber: 1, Prompt: "close", Hint: "summarize"},
		},
	}
}

func TestStartRejectsEmptyScenario(t *testing.T) {
	state := NewSimulationState()
	err := state.Start(SimulationScenario{ID: "empty"})
	assert.ErrorIs(t, err, ErrInvalidScenario)
	assert.Equal(t, PhaseIdle, state.Phase())
}

func TestStartRequiresIdle(t *testing.T) {
	state := NewSimulationState()
	require.NoError(t, state.Start(twoStepScenario()))
	assert.ErrorIs(t, state.Start(twoStepScenario()), ErrInvalidState)
}

func TestExactlyNTurnsCompletes(t *testing.T) {
	scenario := twoStepScenario()
	state := NewSimulationState()
	require.NoError(t, state.Start(scenario))
	assert.Equal(t, PhaseAwaitingStep, state.Phase())

	for i := 0; i < len(scenario.Steps); i++ {
		step, err := state.CurrentStep()
		require.NoError(t, err)
		assert.Equal(t, i, step.StepNumber)

		completed, err := state.RecordTurn(fmt.Sprintf("argument %d", i), "counter")
		require.NoError(t, err)
		assert.Equal(t, i == len(scenario.Steps)-1, completed)
	}

	assert.Equal(t, PhaseCompleted, state.Phase())

	// the (N+1)-th turn is a caller error, not a no-op
	_, err := state.RecordTurn("one too many", "x")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTurnWhileIdleFails(t *testing.T) {
	state := NewSimulationState()
	_, err := state.RecordTurn("hello", "hi")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = state.CurrentStep()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExitExportsAndResets(t *testing.T) {
	state := NewSimulationState()
	require.NoError(t, state.Start(twoStepScenario()))
	_, err := state.RecordTurn("my opener", "their rebuttal")
	require.NoError(t, err)

	rounds := state.Exit()
	require.Len(t, rounds, 1)
	assert.Equal(t, "my opener", rounds[0].UserText)
	assert.Equal(t, "their rebuttal", rounds[0].CoachText)

	assert.Equal(t, PhaseIdle, state.Phase())
	assert.Nil(t, state.Scenario())
	assert.Empty(t, state.Rounds())

	// exiting again from idle is allowed and empty
	assert.Empty(t, state.Exit())
}

func TestRoundsReturnsCopy(t *testing.T) {
	state := NewSimulationState()
	require.NoError(t, state.Start(twoStepScenario()))
	_, err := state.RecordTurn("a", "b")
	require.NoError(t, err)

	rounds := state.Rounds()
	rounds[0].UserText = "mutated"
	assert.Equal(t, "a", state.Rounds()[0].UserText)
}

func TestBuiltinScenariosAreValid(t *testing.T) {
	scenarios := BuiltinScenarios()
	require.NotEmpty(t, scenarios)

	seen := map[string]bool{}
	for _, sc := range scenarios {
		assert.False(t, seen[sc.ID], "duplicate id %s", sc.ID)
		seen[sc.ID] = true
		require.NotEmpty(t, sc.Steps, "scenario %s", sc.ID)
		for i, step := range sc.Steps {
			assert.Equal(t, i, step.StepNumber, "scenario %s", sc.ID)
			assert.NotEmpty(t, step.Prompt)
			assert.NotEmpty(t, step.Hint)
		}
	}

	found, err := FindScenario(scenarios[0].ID)
	require.NoError(t, err)
	assert.Equal(t, scenarios[0].ID, found.ID)

	_, err = FindScenario("does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}
