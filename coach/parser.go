package coach

import (
	"oratodev/modelapi"
	"regexp"
	"strings"
)

// MaxQuickActions bounds every quick-action list handed to a caller.
const MaxQuickActions = 5

// maxQuickActionWords bounds a single suggestion after marker stripping.
const maxQuickActionWords = 8

var numberedMarker = regexp.MustCompile(`^\d+[.)]\s*`)

// ParseReply cleans a raw coaching reply. It never returns an empty
// string: a blank or missing reply degrades to the fixed fallback.
func ParseReply(raw string) string {
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return modelapi.FALLBACK_REPLY
	}
	return reply
}

// ParseSimulationReply treats the whole response as opaque in-character
// text, with the same non-empty guarantee as ParseReply.
func ParseSimulationReply(raw string) string {
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return modelapi.FALLBACK_SIMULATION_REPLY
	}
	return reply
}

// ParseQuickActions extracts up to MaxQuickActions suggestions from a
// dash, bullet or numbered list. Lines without a list marker are
// dropped, as are blank entries. An empty result is replaced with the
// default set, so the returned list always has between 1 and 5 entries.
func ParseQuickActions(raw string) []string {
	actions, _ := parseQuickActions(raw)
	return actions
}

// parseQuickActions additionally reports whether the default set was
// substituted because nothing in the payload parsed.
func parseQuickActions(raw string) ([]string, bool) {
	var actions []string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)

		var entry string
		switch {
		case strings.HasPrefix(line, "-"):
			entry = strings.TrimPrefix(line, "-")
		case strings.HasPrefix(line, "•"):
			entry = strings.TrimPrefix(line, "•")
		case numberedMarker.MatchString(line):
			entry = numberedMarker.ReplaceAllString(line, "")
		default:
			continue
		}

		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if words := strings.Fields(entry); len(words) > maxQuickActionWords {
			entry = strings.Join(words[:maxQuickActionWords], " ")
		}

		actions = append(actions, entry)
		if len(actions) == MaxQuickActions {
			break
		}
	}

	if len(actions) == 0 {
		return modelapi.DefaultQuickActions(), true
	}
	return actions, false
}
