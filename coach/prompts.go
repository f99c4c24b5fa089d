package coach

import (
	"fmt"
	"strings"
)

// HistoryWindowSize caps how many prior turns are replayed into a
// coaching prompt. Contract value, do not bump casually.
const HistoryWindowSize = 10

// ComposeCoachingPrompt builds the user-side prompt for an open coaching
// reply: rendered context, up to HistoryWindowSize prior turns oldest
// first, then the new user line. Pure function of its inputs.
func ComposeCoachingPrompt(cctx ConversationContext, history []Message, userText string) string {
	var b strings.Builder

	b.WriteString("What you know about the user:\n")
	b.WriteString(cctx.Render())
	b.WriteString("\n")

	if len(history) > HistoryWindowSize {
		history = history[len(history)-HistoryWindowSize:]
	}
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, msg := range history {
			if msg.Role == RoleSystem {
				continue
			}
			b.WriteString(speakerLabel(msg.Role))
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUser: ")
	b.WriteString(userText)
	b.WriteString("\n\nReply as the coach in 2-5 sentences.")

	return b.String()
}

// ComposeQuickActionsPrompt builds the prompt requesting exactly five
// dash-listed suggestions grounded in the user's context.
func ComposeQuickActionsPrompt(cctx ConversationContext) string {
	var b strings.Builder

	b.WriteString("What you know about the user:\n")
	b.WriteString(cctx.Render())
	b.WriteString("\n\nSuggest the 5 actions now, as a dash list only.")

	return b.String()
}

// ComposeSimulationPrompt builds the prompt for one simulation round:
// the scenario framing, the current step, the prior-round transcript and
// the user's new line.
func ComposeSimulationPrompt(scenario SimulationScenario, step SimulationStep, rounds []SimulationRound, userText string) string {
	var b strings.Builder

	b.WriteString("Scenario: ")
	b.WriteString(scenario.Title)
	b.WriteString("\n")
	b.WriteString(scenario.Description)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("\nRound %d of %d. Your line for this round: %s\n", step.StepNumber+1, len(scenario.Steps), step.Prompt))

	if len(rounds) > 0 {
		b.WriteString("\nRounds so far:\n")
		for _, r := range rounds {
			b.WriteString("User: ")
			b.WriteString(r.UserText)
			b.WriteString("\nYou: ")
			b.WriteString(r.CoachText)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUser: ")
	b.WriteString(userText)
	b.WriteString("\n\nRespond in character for this round.")

	return b.String()
}

// ComposeSimulationFeedbackPrompt builds the wrap-up prompt sent after
// the final round, asking for coach feedback over the full transcript.
func ComposeSimulationFeedbackPrompt(scenario SimulationScenario, rounds []SimulationRound) string {
	var b strings.Builder

	b.WriteString("Scenario the user just finished: ")
	b.WriteString(scenario.Title)
	b.WriteString("\n\nFull transcript:\n")
	for _, r := range rounds {
		b.WriteString("User: ")
		b.WriteString(r.UserText)
		b.WriteString("\nOpponent: ")
		b.WriteString(r.CoachText)
		b.WriteString("\n")
	}
	b.WriteString("\nGive the user your feedback now.")

	return b.String()
}

// ComposeVoiceAnalysisPrompt asks for a structured scoring of a practice
// recording transcript. Used when the structured analyzer is unavailable
// and a plain text backend has to produce the JSON itself.
func ComposeVoiceAnalysisPrompt(transcript string) string {
	var b strings.Builder

	b.WriteString("Transcript of the user's practice recording:\n")
	b.WriteString(transcript)
	b.WriteString("\n\nScore it as JSON with integer fields 0-100: diction, tempo, intonation, volume, confidence, fillerWordsAbsence, structure, persuasiveness, overall; string arrays strengths and improvements (2-3 short entries each); and a one-sentence string tip. Output only the JSON object.")

	return b.String()
}

func speakerLabel(role Role) string {
	if role == RoleAssistant {
		return "Coach"
	}
	return "User"
}
