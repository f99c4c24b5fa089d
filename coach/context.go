package coach

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// Behavioral bounds for context rendering. These are contract values,
	// prompts downstream depend on them staying small.
	MaxSkillLines    = 4
	MaxWeakestSkills = 3
)

type SkillLevel struct {
	Skill string `json:"skill"`
	Level int    `json:"level"`
}

type ProfileSummary struct {
	Goal         string
	DailyMinutes int
}

type ProgressSummary struct {
	Streak         int
	TotalExercises int
	SkillLevels    []SkillLevel
}

// ConversationContext is the snapshot of user state injected into every
// prompt. It is a value type; Render never mutates it.
type ConversationContext struct {
	Profile         *ProfileSummary
	Progress        *ProgressSummary
	WeakestSkills   []SkillLevel
	DiagnosticLevel *int
	RecentActivity  string
}

// EmptyContext returns the context used when nothing is known about the
// user yet. RecentActivity is always populated so prompts are never
// completely context-free.
func EmptyContext() ConversationContext {
	return ConversationContext{
		RecentActivity: "Just getting started with speech practice.",
	}
}

var skillTitle = cases.Title(language.English)

// Render produces one line per populated field, in a fixed order:
// goal, daily target, streak, total exercises, skill levels, weakest
// skills, diagnostic level, recent activity. Absent fields are skipped,
// never rendered as placeholders.
func (c ConversationContext) Render() string {
	var lines []string

	if c.Profile != nil {
		if c.Profile.Goal != "" {
			lines = append(lines, "Goal: "+c.Profile.Goal)
		}
		if c.Profile.DailyMinutes > 0 {
			lines = append(lines, fmt.Sprintf("Daily practice target: %d minutes", c.Profile.DailyMinutes))
		}
	}

	if c.Progress != nil {
		if c.Progress.Streak > 0 {
			lines = append(lines, fmt.Sprintf("Current streak: %d days", c.Progress.Streak))
		}
		if c.Progress.TotalExercises > 0 {
			lines = append(lines, fmt.Sprintf("Total exercises completed: %d", c.Progress.TotalExercises))
		}
		if len(c.Progress.SkillLevels) > 0 {
			skills := c.Progress.SkillLevels
			if len(skills) > MaxSkillLines {
				skills = skills[:MaxSkillLines]
			}
			parts := make([]string, 0, len(skills))
			for _, s := range skills {
				parts = append(parts, fmt.Sprintf("%s %d/100", skillTitle.String(s.Skill), clampScore(s.Level)))
			}
			lines = append(lines, "Skill levels: "+strings.Join(parts, ", "))
		}
	}

	if len(c.WeakestSkills) > 0 {
		weakest := c.WeakestSkills
		if len(weakest) > MaxWeakestSkills {
			weakest = weakest[:MaxWeakestSkills]
		}
		parts := make([]string, 0, len(weakest))
		for _, s := range weakest {
			parts = append(parts, fmt.Sprintf("%s (%d)", s.Skill, clampScore(s.Level)))
		}
		lines = append(lines, "Weakest skills: "+strings.Join(parts, ", "))
	}

	if c.DiagnosticLevel != nil {
		lines = append(lines, fmt.Sprintf("Diagnostic overall level: %d/100", clampScore(*c.DiagnosticLevel)))
	}

	if c.RecentActivity != "" {
		lines = append(lines, "Recent activity: "+c.RecentActivity)
	}

	return strings.Join(lines, "\n")
}
