package coach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVoiceAnalysisClampsScores(t *testing.T) {
	raw := `{"diction": 150, "tempo": -20, "overall": 101, "confidence": 88, "tip": "Breathe before you speak."}`
	result := ParseVoiceAnalysis(raw)

	assert.Equal(t, 100, result.Diction)
	assert.Equal(t, 0, result.Tempo)
	assert.Equal(t, 100, result.Overall)
	assert.Equal(t, 88, result.Confidence)
	assert.Equal(t, "Breathe before you speak.", result.Tip)
	assert.NotNil(t, result.Strengths)
	assert.NotNil(t, result.Improvements)
}

func TestParseVoiceAnalysisToleratesFences(t *testing.T) {
	raw := "```json\n{\"overall\": 72, \"tip\": \"Pause more.\"}\n```"
	result := ParseVoiceAnalysis(raw)
	assert.Equal(t, 72, result.Overall)
}

func TestParseVoiceAnalysisToleratesPreamble(t *testing.T) {
	raw := "Here is your score:\n{\"overall\": 64, \"strengths\": [\"clear voice\"], \"tip\": \"Slow down.\"}"
	result := ParseVoiceAnalysis(raw)
	assert.Equal(t, 64, result.Overall)
	assert.Equal(t, []string{"clear voice"}, result.Strengths)
}

func TestParseVoiceAnalysisDefaultsOnGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "{broken"} {
		result := ParseVoiceAnalysis(raw)
		assert.Equal(t, DefaultVoiceAnalysis(), result, "raw: %q", raw)
	}
}

func TestDefaultVoiceAnalysisIsAllZero(t *testing.T) {
	result := DefaultVoiceAnalysis()
	require.Zero(t, result.Overall)
	require.Zero(t, result.Diction)
	assert.NotEmpty(t, result.Tip)
}

func TestParseVoiceAnalysisFillsMissingTip(t *testing.T) {
	result := ParseVoiceAnalysis(`{"overall": 50}`)
	assert.NotEmpty(t, result.Tip)
}
