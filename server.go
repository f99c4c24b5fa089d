package main

import (
	"context"
	"log"
	"net/http"
	"oratodev/coach"
	"oratodev/database/postgres"
	"oratodev/httpapi"
	"oratodev/logger"
	"oratodev/modelapi/deepgramapi"
	"oratodev/modelapi/geminiapi"
	"oratodev/modelapi/groqapi"
	"oratodev/modelapi/openaiapi"
	"oratodev/telegram"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
)

const defaultPort = "80"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	godotenv.Load()
	production := os.Getenv("PRODUCTION") != ""

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()
	ctx := context.Background()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: production, LoggerProvider: loggerProvider})

	db := postgres.Connect(ctx, postgres.DatabaseConnectProps{Logger: LogMiddleware})

	groqClient := groqapi.Connect(ctx, groqapi.GroqConnectProps{Logger: LogMiddleware})
	geminiClient := geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{Logger: LogMiddleware})
	openaiClient := openaiapi.Connect(ctx, openaiapi.OpenAIConnectProps{Logger: LogMiddleware})
	deepgramClient := deepgramapi.Connect(LogMiddleware)

	coachEngine := coach.Connect(ctx, coach.CoachConnectProps{
		Logger:   LogMiddleware,
		Backend:  groqClient,
		Analyzer: geminiClient,
		Store:    db,
	})

	api := httpapi.Connect(ctx, httpapi.HttpApiConnectProps{Logger: LogMiddleware, Coach: coachEngine, DB: db})
	telegramBot := telegram.Connect(ctx, telegram.TelegramConnectProps{
		Logger:   LogMiddleware,
		Coach:    coachEngine,
		Deepgram: deepgramClient,
		OpenAI:   openaiClient,
		DB:       db,
	})

	Logger := LogMiddleware.Logger(ctx)

	if production {
		Logger.Info("[Server] Starting in production mode", zap.String("port", port))
	} else {
		Logger.Info("[Server] Starting in development mode", zap.String("port", port))
	}

	go func() {
		if err := http.ListenAndServe(":"+port, api.Router()); err != nil {
			Logger.Fatal("[Server] HTTP server stopped", zap.Error(err))
		}
	}()

	// Telegram bot blocks until the context is cancelled.
	telegramBot.Listen(ctx)
}
