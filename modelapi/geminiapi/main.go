package geminiapi

import (
	"context"
	"encoding/json"
	"fmt"
	"oratodev/logger"
	"oratodev/modelapi"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	GEMINI_MODEL_NAME = "gemini-2.5-flash"
)

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
)

type GeminiConnectProps struct {
	Logger *logger.LogMiddleware
}

type Gemini struct {
	logger *logger.LogMiddleware
	client *genai.Client
}

func exponentialBackoff(attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}

func Connect(ctx context.Context, args GeminiConnectProps) *Gemini {
	tracer := otel.Tracer("geminiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	args.Logger.Logger(ctx).Info("[GeminiAPI] Connecting Gemini API client")

	GEMINI_KEY := os.Getenv("GEMINI_SECRET_KEY")

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  GEMINI_KEY,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		args.Logger.Logger(ctx).Error("[GeminiAPI] Could not create Gemini client")
		os.Exit(21)
	}

	return &Gemini{logger: args.Logger, client: client}
}

func (g *Gemini) generateContentWithRetry(ctx context.Context, userPrompt string, systemPrompt string, tools []*genai.Tool, toolConfig *genai.ToolConfig) (*genai.GenerateContentResponse, error) {
	tracer := otel.Tracer("geminiapi/generateContentWithRetry")
	ctx, span := tracer.Start(ctx, "generateContentWithRetry")
	defer span.End()
	g.logger.Logger(ctx).Info("[GeminiAPI] generateContentWithRetry called", zap.Int("prompt.length", len(userPrompt)))

	var resp *genai.GenerateContentResponse
	var err error

	thinkingBudget := int32(0)

	for attempt := 0; attempt < maxRetries; attempt++ {
		span.AddEvent("Attempt", trace.WithAttributes(attribute.Int("attemptNumber", attempt+1)))

		resp, err = g.client.Models.GenerateContent(ctx, GEMINI_MODEL_NAME, genai.Text(userPrompt), &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
			ToolConfig:        toolConfig,
			Tools:             tools,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
				ThinkingBudget:  &thinkingBudget,
			},
		})

		if err != nil || resp == nil || len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			if err != nil {
				span.RecordError(err)
				g.logger.Logger(ctx).Warn("[GeminiAPI] Error generating LLM content, retrying...",
					zap.Error(err),
					zap.Int("attempt", attempt+1),
					zap.Int("maxRetries", maxRetries))
			} else {
				g.logger.Logger(ctx).Warn("[GeminiAPI] Received empty or invalid response, retrying...",
					zap.Int("attempt", attempt+1),
					zap.Int("maxRetries", maxRetries))
				span.AddEvent("EmptyResponse")
			}

			if attempt < maxRetries-1 {
				delay := exponentialBackoff(attempt)
				span.AddEvent("Backoff", trace.WithAttributes(attribute.Int64("delayMs", delay.Milliseconds())))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}

		span.AddEvent("LLM generation successful")
		return resp, nil
	}

	if err != nil {
		g.logger.Logger(ctx).Error("[GeminiAPI] Final error generating LLM content after retries:", zap.Error(err))
		return nil, err
	}
	return nil, fmt.Errorf("gemini returned no usable candidates")
}

// Generate satisfies the coach backend contract with plain text output.
func (g *Gemini) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	tracer := otel.Tracer("geminiapi/Generate")
	ctx, span := tracer.Start(ctx, "Generate")
	defer span.End()

	resp, err := g.generateContentWithRetry(ctx, userPrompt, systemPrompt, nil, nil)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no text in gemini response")
	}
	return text, nil
}

// getSpeechScoringFunction declares the structured scoring schema the
// coach parses into a VoiceAnalysisResult.
func (g *Gemini) getSpeechScoringFunction() *genai.Tool {
	scoreProperty := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeInteger,
			Description: description + " Score from 0 to 100.",
		}
	}

	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        "score_speech",
			Description: "Score a practice recording transcript across speech skill axes and give coaching feedback",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"diction":            scoreProperty("Clarity of articulation and pronunciation."),
					"tempo":              scoreProperty("Pacing: neither rushed nor dragging."),
					"intonation":         scoreProperty("Vocal variety and melodic range."),
					"volume":             scoreProperty("Projection and steadiness of volume."),
					"confidence":         scoreProperty("How assured the speaker sounds."),
					"fillerWordsAbsence": scoreProperty("Absence of um, uh, like and similar fillers. 100 means no fillers."),
					"structure":          scoreProperty("Logical flow: opening, body, close."),
					"persuasiveness":     scoreProperty("How convincing the argument or story is."),
					"overall":            scoreProperty("Overall impression of the performance."),
					"strengths": {
						Type:        genai.TypeArray,
						Items:       &genai.Schema{Type: genai.TypeString},
						Description: "2-3 things the speaker did well, as short phrases (max 8 words each).",
					},
					"improvements": {
						Type:        genai.TypeArray,
						Items:       &genai.Schema{Type: genai.TypeString},
						Description: "2-3 concrete things to improve, as short phrases (max 8 words each).",
					},
					"tip": {
						Type:        genai.TypeString,
						Description: "One actionable sentence the speaker can apply in their next practice.",
					},
				},
				Required: []string{"diction", "tempo", "intonation", "volume", "confidence", "fillerWordsAbsence", "structure", "persuasiveness", "overall", "strengths", "improvements", "tip"},
			},
		}},
	}
}

// AnalyzeSpeech scores a transcript through function calling and
// returns the function-call arguments as a JSON string.
func (g *Gemini) AnalyzeSpeech(ctx context.Context, transcript string) (string, error) {
	tracer := otel.Tracer("geminiapi/AnalyzeSpeech")
	ctx, span := tracer.Start(ctx, "AnalyzeSpeech")
	defer span.End()

	span.SetAttributes(attribute.Int("transcript.length", len(transcript)))

	toolConfig := &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingConfigModeAny,
			AllowedFunctionNames: []string{"score_speech"},
		},
	}

	userPrompt := "Transcript of the user's practice recording:\n" + transcript
	resp, err := g.generateContentWithRetry(ctx, userPrompt, modelapi.VOICE_ANALYSIS_PROMPT,
		[]*genai.Tool{g.getSpeechScoringFunction()}, toolConfig)
	if err != nil {
		return "", err
	}

	for _, call := range resp.FunctionCalls() {
		if call.Name != "score_speech" {
			continue
		}
		args, err := json.Marshal(call.Args)
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("could not encode scoring arguments: %w", err)
		}
		span.AddEvent("Scoring function call received")
		return string(args), nil
	}

	g.logger.Logger(ctx).Warn("[GeminiAPI] No scoring function call in response")
	return "", fmt.Errorf("no scoring function call in gemini response")
}
