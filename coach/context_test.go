package coach

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFixedOrderScenario(t *testing.T) {
	cctx := ConversationContext{
		Profile:       &ProfileSummary{Goal: "Improve speech"},
		Progress:      &ProgressSummary{Streak: 5, TotalExercises: 12},
		WeakestSkills: []SkillLevel{{Skill: "diction", Level: 40}},
	}

	rendered := cctx.Render()
	lines := strings.Split(rendered, "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], "Improve speech")
	assert.Contains(t, lines[1], "5")
	assert.Contains(t, lines[1], "streak")
	assert.Contains(t, lines[2], "12")
	assert.Contains(t, lines[2], "exercises")
	assert.Contains(t, lines[3], "diction")
	assert.Contains(t, lines[3], "40")
}

func TestRenderDeterministic(t *testing.T) {
	level := 55
	cctx := ConversationContext{
		Profile:         &ProfileSummary{Goal: "Speak at conferences", DailyMinutes: 15},
		Progress:        &ProgressSummary{Streak: 3, TotalExercises: 7, SkillLevels: []SkillLevel{{"diction", 60}, {"tempo", 45}}},
		WeakestSkills:   []SkillLevel{{"tempo", 45}},
		DiagnosticLevel: &level,
		RecentActivity:  "Finished a breathing exercise.",
	}

	first := cctx.Render()
	second := cctx.Render()
	assert.Equal(t, first, second)
}

func TestRenderLineCountBoundedByPopulatedFields(t *testing.T) {
	cases := []struct {
		name      string
		cctx      ConversationContext
		maxFields int
	}{
		{"empty", ConversationContext{}, 0},
		{"only goal", ConversationContext{Profile: &ProfileSummary{Goal: "g"}}, 1},
		{"goal and activity", ConversationContext{Profile: &ProfileSummary{Goal: "g"}, RecentActivity: "a"}, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rendered := tc.cctx.Render()
			if rendered == "" {
				assert.Zero(t, tc.maxFields)
				return
			}
			assert.LessOrEqual(t, len(strings.Split(rendered, "\n")), tc.maxFields)
		})
	}
}

func TestRenderSkipsAbsentFields(t *testing.T) {
	cctx := ConversationContext{RecentActivity: "Practiced today."}
	rendered := cctx.Render()

	assert.NotContains(t, rendered, "Goal")
	assert.NotContains(t, rendered, "streak")
	assert.NotContains(t, rendered, "Diagnostic")
	assert.Contains(t, rendered, "Practiced today.")
}

func TestEmptyContextNeverRendersBlank(t *testing.T) {
	rendered := EmptyContext().Render()
	require.NotEmpty(t, rendered)
	assert.Contains(t, rendered, "Recent activity")
}

func TestRenderBoundsSkillLists(t *testing.T) {
	cctx := ConversationContext{
		Progress: &ProgressSummary{SkillLevels: []SkillLevel{
			{"diction", 10}, {"tempo", 20}, {"intonation", 30}, {"volume", 40}, {"confidence", 50}, {"structure", 60},
		}},
		WeakestSkills: []SkillLevel{{"a", 1}, {"b", 2}, {"c", 3}, {"d", 4}},
	}

	rendered := cctx.Render()
	assert.NotContains(t, rendered, "Confidence")
	assert.NotContains(t, rendered, "d (4)")
	assert.Contains(t, rendered, "c (3)")
}

func TestRenderClampsLevels(t *testing.T) {
	cctx := ConversationContext{WeakestSkills: []SkillLevel{{"diction", -5}}}
	assert.Contains(t, cctx.Render(), "diction (0)")
}
