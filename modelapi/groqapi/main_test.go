package groqapi

import (
	"context"
	"os"
	"testing"
	"time"

	"oratodev/logger"
)

func TestGenerate(t *testing.T) {
	apiKey := os.Getenv("GROQ_SECRET_KEY")
	if apiKey == "" {
		t.Skip("GROQ_SECRET_KEY environment variable not set, skipping test")
	}

	logMiddleware := logger.Connect(logger.LoggerConnectProps{Production: false})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	groq := Connect(ctx, GroqConnectProps{Logger: logMiddleware})

	response, err := groq.Generate(ctx, "You are a terse assistant.", "Say hello in one word.")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if response == "" {
		t.Error("Expected non-empty response, got empty string")
	}

	t.Logf("Response received: %s", response)
}

func TestGetExponentialDelaySeconds(t *testing.T) {
	cases := []struct {
		retryNumber int
		want        int
	}{
		{0, 5},
		{1, 10},
		{2, 20},
	}

	for _, tc := range cases {
		if got := GetExponentialDelaySeconds(tc.retryNumber); got != tc.want {
			t.Errorf("GetExponentialDelaySeconds(%d) = %d, want %d", tc.retryNumber, got, tc.want)
		}
	}
}
