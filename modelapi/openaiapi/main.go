package openaiapi

import (
	"context"
	"fmt"
	"io"
	"oratodev/logger"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
)

// TTS_STYLE_INSTRUCTION shapes the spoken delivery of coach replies.
const TTS_STYLE_INSTRUCTION = `
Speak as a warm, encouraging speech coach. Calm, clear, well-articulated,
moderate pace. Sound supportive and professional, never theatrical.
`

type OpenAI struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
	client    *openai.Client
}

type OpenAIConnectProps struct {
	Logger *logger.LogMiddleware
}

func Connect(ctx context.Context, args OpenAIConnectProps) *OpenAI {
	tracer := otel.Tracer("openaiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	OPENAI_SECRET_KEY := os.Getenv("OPENAI_SECRET_KEY")

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))
	client := openai.NewClient(
		option.WithAPIKey(OPENAI_SECRET_KEY),
	)

	return &OpenAI{logger: args.Logger, semaphore: sem, client: &client}
}

// GenerateSpeech renders a coach reply as MP3 audio for voice surfaces.
func (d *OpenAI) GenerateSpeech(ctx context.Context, inputText string) ([]byte, error) {
	tracer := otel.Tracer("openaiapi/GenerateSpeech")
	ctx, span := tracer.Start(ctx, "GenerateSpeech")
	defer span.End()

	d.logger.Logger(ctx).Info("[OpenAIAPI] Generating speech", zap.Int("input_length", len(inputText)))

	if err := d.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer d.semaphore.Release(1)

	res, err := d.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Model:          openai.SpeechModelGPT4oMiniTTS,
		Input:          inputText,
		Voice:          openai.AudioSpeechNewParamsVoiceSage,
		Instructions:   param.Opt[string]{Value: TTS_STYLE_INSTRUCTION},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("speech generation failed: %w", err)
	}
	defer res.Body.Close()

	audioBytes, err := io.ReadAll(res.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not read audio body: %w", err)
	}

	return audioBytes, nil
}
