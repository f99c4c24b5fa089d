package coach

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidScenario is returned by Start for a scenario with no steps.
	ErrInvalidScenario = errors.New("scenario has no steps")
	// ErrInvalidState is returned when a turn is submitted with no round
	// awaiting input, or Start is called over an active scenario.
	ErrInvalidState = errors.New("no simulation round awaiting input")
	// ErrUnknownScenario is returned when a scenario id is not in the catalog.
	ErrUnknownScenario = errors.New("unknown scenario")
)

type SimulationStep struct {
	StepNumber int
	Prompt     string
	Hint       string
}

type SimulationPersona string

const (
	PersonaDebate   SimulationPersona = "debate"
	PersonaCustomer SimulationPersona = "customer"
)

// SimulationScenario is immutable once loaded; steps are addressed by
// position only.
type SimulationScenario struct {
	ID          string
	Title       string
	Description string
	Persona     SimulationPersona
	Steps       []SimulationStep
}

type SimulationRound struct {
	UserText  string
	CoachText string
}

type SimulationPhase string

const (
	PhaseIdle         SimulationPhase = "idle"
	PhaseAwaitingStep SimulationPhase = "awaiting_step"
	PhaseCompleted    SimulationPhase = "completed"
)

// SimulationState drives one user's scripted exercise. The model round
// trip lives in the facade; this type only owns sequencing.
type SimulationState struct {
	mu       sync.Mutex
	scenario *SimulationScenario
	step     int
	rounds   []SimulationRound
	phase    SimulationPhase
}

func NewSimulationState() *SimulationState {
	return &SimulationState{phase: PhaseIdle}
}

// Start moves Idle -> AwaitingStep(0). Starting over an active or
// completed run is a caller bug; exit first.
func (s *SimulationState) Start(scenario SimulationScenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(scenario.Steps) == 0 {
		return ErrInvalidScenario
	}
	if s.phase != PhaseIdle {
		return ErrInvalidState
	}

	s.scenario = &scenario
	s.step = 0
	s.rounds = nil
	s.phase = PhaseAwaitingStep
	return nil
}

// CurrentStep returns the step awaiting the user's input.
func (s *SimulationState) CurrentStep() (SimulationStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingStep {
		return SimulationStep{}, ErrInvalidState
	}
	return s.scenario.Steps[s.step], nil
}

// RecordTurn appends the accepted round and advances the step index.
// Returns true when the scenario just completed.
func (s *SimulationState) RecordTurn(userText string, coachText string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingStep {
		return false, ErrInvalidState
	}

	s.rounds = append(s.rounds, SimulationRound{UserText: userText, CoachText: coachText})
	s.step++
	if s.step == len(s.scenario.Steps) {
		s.phase = PhaseCompleted
		return true, nil
	}
	return false, nil
}

// Exit discards the run from any phase and returns the accumulated
// rounds so the caller can export them before they are gone.
func (s *SimulationState) Exit() []SimulationRound {
	s.mu.Lock()
	defer s.mu.Unlock()

	rounds := s.rounds
	s.scenario = nil
	s.step = 0
	s.rounds = nil
	s.phase = PhaseIdle
	return rounds
}

func (s *SimulationState) Phase() SimulationPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Scenario returns the active scenario, or nil when idle.
func (s *SimulationState) Scenario() *SimulationScenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenario
}

// Rounds returns a copy of the accumulated round history.
func (s *SimulationState) Rounds() []SimulationRound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SimulationRound, len(s.rounds))
	copy(out, s.rounds)
	return out
}

// BuiltinScenarios is the shipped exercise catalog. Scenario content is
// data, not behavior; ids are stable because clients reference them.
func BuiltinScenarios() []SimulationScenario {
	return []SimulationScenario{
		{
			ID:          "debate-remote-work",
			Title:       "Debate: Remote Work",
			Description: "You argue that remote work is better for teams. The opponent defends the office.",
			Persona:     PersonaDebate,
			Steps: []SimulationStep{
				{StepNumber: 0, Prompt: "Open by defending the office: spontaneous collaboration dies over video calls.", Hint: "State your position and your strongest reason in two sentences."},
				{StepNumber: 1, Prompt: "Concede nothing; argue juniors learn by overhearing seniors in person.", Hint: "Rebut their point directly before adding a new argument."},
				{StepNumber: 2, Prompt: "Close by claiming hybrid gives the worst of both worlds.", Hint: "Summarize your case and end with a memorable line."},
			},
		},
		{
			ID:          "sales-pitch-crm",
			Title:       "Sales Pitch: Handling Objections",
			Description: "You pitch a CRM tool to a skeptical customer who raises one objection per round.",
			Persona:     PersonaCustomer,
			Steps: []SimulationStep{
				{StepNumber: 0, Prompt: "Object that the current spreadsheet setup works fine and costs nothing.", Hint: "Acknowledge the objection, then show the hidden cost of the status quo."},
				{StepNumber: 1, Prompt: "Object that the team has no time to learn yet another tool.", Hint: "Keep it concrete: how fast is onboarding really?"},
				{StepNumber: 2, Prompt: "Object that the price is too high compared to a cheaper rival.", Hint: "Sell value, not price. Name what the rival lacks."},
				{StepNumber: 3, Prompt: "Soften if they handled the objections well; ask for the concrete next step.", Hint: "Close with a clear, low-friction ask."},
			},
		},
		{
			ID:          "improv-daily",
			Title:       "Daily Challenge: Improv Story",
			Description: "Tell a spontaneous story in three parts while the coach raises the stakes each round.",
			Persona:     PersonaDebate,
			Steps: []SimulationStep{
				{StepNumber: 0, Prompt: "Give the user a random everyday object and ask them to start a story around it.", Hint: "Do not plan, just start talking. Set the scene in three sentences."},
				{StepNumber: 1, Prompt: "Introduce an unexpected complication into their story and ask them to continue.", Hint: "Accept the twist and build on it instead of fighting it."},
				{StepNumber: 2, Prompt: "Ask them to land the ending in under thirty seconds.", Hint: "Wrap up with a clear final sentence, then stop."},
			},
		},
	}
}

// FindScenario looks a scenario up by id in the built-in catalog.
func FindScenario(id string) (SimulationScenario, error) {
	for _, sc := range BuiltinScenarios() {
		if sc.ID == id {
			return sc, nil
		}
	}
	return SimulationScenario{}, ErrUnknownScenario
}
