package coach

import (
	"encoding/json"
	"strings"
)

// VoiceAnalysisResult carries per-skill scores for one practice
// recording. Every score is clamped to [0,100] on the way in.
type VoiceAnalysisResult struct {
	Diction            int      `json:"diction"`
	Tempo              int      `json:"tempo"`
	Intonation         int      `json:"intonation"`
	Volume             int      `json:"volume"`
	Confidence         int      `json:"confidence"`
	FillerWordsAbsence int      `json:"fillerWordsAbsence"`
	Structure          int      `json:"structure"`
	Persuasiveness     int      `json:"persuasiveness"`
	Overall            int      `json:"overall"`
	Strengths          []string `json:"strengths"`
	Improvements       []string `json:"improvements"`
	Tip                string   `json:"tip"`
}

// DefaultVoiceAnalysis is the defined result for a failed analysis:
// all-zero scores, never a missing value.
func DefaultVoiceAnalysis() VoiceAnalysisResult {
	return VoiceAnalysisResult{
		Strengths:    []string{},
		Improvements: []string{},
		Tip:          "Record a short practice clip and try the analysis again.",
	}
}

// ParseVoiceAnalysis decodes the model's JSON scoring. Markdown fences
// are tolerated, every score is clamped, and undecodable input yields
// the default result rather than an error.
func ParseVoiceAnalysis(raw string) VoiceAnalysisResult {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if start := strings.Index(cleaned, "{"); start > 0 {
		cleaned = cleaned[start:]
	}
	if end := strings.LastIndex(cleaned, "}"); end >= 0 {
		cleaned = cleaned[:end+1]
	}

	var result VoiceAnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return DefaultVoiceAnalysis()
	}

	result.Diction = clampScore(result.Diction)
	result.Tempo = clampScore(result.Tempo)
	result.Intonation = clampScore(result.Intonation)
	result.Volume = clampScore(result.Volume)
	result.Confidence = clampScore(result.Confidence)
	result.FillerWordsAbsence = clampScore(result.FillerWordsAbsence)
	result.Structure = clampScore(result.Structure)
	result.Persuasiveness = clampScore(result.Persuasiveness)
	result.Overall = clampScore(result.Overall)

	if result.Strengths == nil {
		result.Strengths = []string{}
	}
	if result.Improvements == nil {
		result.Improvements = []string{}
	}
	if strings.TrimSpace(result.Tip) == "" {
		result.Tip = DefaultVoiceAnalysis().Tip
	}

	return result
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
