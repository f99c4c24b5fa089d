package groqapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"oratodev/httpmiddleware"
	"oratodev/logger"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	ASSISTANT = "assistant"
	SYSTEM    = "system"
	USER      = "user"
)

const (
	GROQ_MODEL_NAME = "moonshotai/kimi-k2-instruct"
	maxTokens       = 1024
)

type ChatCompletionInputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequestInput struct {
	Model     string                       `json:"model"`
	Messages  []ChatCompletionInputMessage `json:"messages"`
	MaxTokens int                          `json:"max_tokens"`
}

type GroqResponse struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GroqConnectProps struct {
	Logger *logger.LogMiddleware
}

type Groq struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
}

func Connect(ctx context.Context, args GroqConnectProps) *Groq {
	tracer := otel.Tracer("groqapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))

	return &Groq{logger: args.Logger, semaphore: sem}
}

type MakeAPIRequestProps struct {
	Retries      int
	RequestInput ChatRequestInput
}

// Used for retry logic.
func GetExponentialDelaySeconds(retryNumber int) int {
	delayTime := int(5 * math.Pow(2, float64(retryNumber)))
	return delayTime
}

func (o *Groq) MakeAPIRequest(ctx context.Context, args MakeAPIRequestProps) (*GroqResponse, error) {
	tracer := otel.Tracer("groqapi/MakeAPIRequest")
	ctx, span := tracer.Start(ctx, "MakeAPIRequest")
	defer span.End()

	API_KEY := os.Getenv("GROQ_SECRET_KEY")
	URL := "https://api.groq.com/openai/v1/chat/completions"

	span.SetAttributes(
		attribute.String("api.url", URL),
		attribute.Int("request.max_tokens", args.RequestInput.MaxTokens),
		attribute.String("request.model", args.RequestInput.Model),
	)

	requestInput := args.RequestInput
	retries := args.Retries
	originalRetries := args.Retries

	jsonData, err := json.Marshal(requestInput)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not generate request body: %w", err)
	}

	span.SetAttributes(attribute.Int("retries", retries))

	for retries > 0 {
		sleepTime := GetExponentialDelaySeconds(originalRetries - retries)
		span.SetAttributes(attribute.Int("sleep_time", sleepTime))

		if err := o.semaphore.Acquire(ctx, 1); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to acquire semaphore")
		}

		respBody, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{
			Method: "POST",
			Url:    URL,
			Body:   bytes.NewBuffer(jsonData),
			Headers: map[string]string{
				"authorization": "Bearer " + API_KEY,
				"content-type":  "application/json",
			},
		})
		o.semaphore.Release(1)

		if err != nil {
			span.RecordError(err)
			o.logger.Logger(ctx).Error(
				"[Groq-API] Could not make request to Groq. Retrying after sleeping.",
				zap.Error(err),
				zap.Int("retries_left", retries),
				zap.Int("sleep_time", sleepTime),
			)
			retries -= 1
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(sleepTime) * time.Second):
			}
		} else {
			var messageResponse GroqResponse
			err = json.Unmarshal(respBody, &messageResponse)
			if err != nil || len(messageResponse.Choices) == 0 {
				span.RecordError(err)
				retries -= 1
				o.logger.Logger(ctx).Error(
					"[Groq-API] Could not parse Groq response. Retrying after sleeping.",
					zap.Int("retries_left", retries),
					zap.Int("sleep_time", sleepTime),
					zap.Error(err),
					zap.String("response_body", string(respBody)),
				)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(sleepTime) * time.Second):
				}
			} else {
				span.AddEvent("Request successful")
				return &messageResponse, nil
			}
		}
	}

	span.AddEvent("All retries exhausted")
	return nil, fmt.Errorf("groq requests failed")
}

// Generate satisfies the coach backend contract: one system prompt, one
// composed user prompt, one text completion back.
func (a *Groq) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	tracer := otel.Tracer("groqapi/Generate")
	ctx, span := tracer.Start(ctx, "Generate")
	defer span.End()

	span.SetAttributes(
		attribute.Int("system_prompt.length", len(systemPrompt)),
		attribute.Int("user_prompt.length", len(userPrompt)),
	)

	messages := []ChatCompletionInputMessage{
		{Role: SYSTEM, Content: systemPrompt},
		{Role: USER, Content: userPrompt},
	}

	requestInput := MakeAPIRequestProps{
		Retries: 3,
		RequestInput: ChatRequestInput{
			Model:     GROQ_MODEL_NAME,
			MaxTokens: maxTokens,
			Messages:  messages,
		},
	}

	resp, err := a.MakeAPIRequest(ctx, requestInput)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.Content) == 0 {
		return "", fmt.Errorf("no response received")
	}

	return resp.Choices[0].Message.Content, nil
}
