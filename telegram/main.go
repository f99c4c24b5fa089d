package telegram

import (
	"context"
	"errors"
	"fmt"
	"oratodev/coach"
	"oratodev/database/postgres"
	"oratodev/httpmiddleware"
	"oratodev/logger"
	"oratodev/modelapi/deepgramapi"
	"oratodev/modelapi/openaiapi"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type TelegramConnectProps struct {
	Logger   *logger.LogMiddleware
	Coach    *coach.Coach
	Deepgram *deepgramapi.DeepgramAPI
	OpenAI   *openaiapi.OpenAI
	DB       *postgres.Database
}

type Telegram struct {
	logger       *logger.LogMiddleware
	bot          *tgbotapi.BotAPI
	coach        *coach.Coach
	deepgram     *deepgramapi.DeepgramAPI
	openai       *openaiapi.OpenAI
	db           *postgres.Database
	voiceReplies bool
}

func Connect(ctx context.Context, args TelegramConnectProps) *Telegram {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		args.Logger.Logger(ctx).Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	debug := os.Getenv("TELEGRAM_DEBUG") == "true"
	bot.Debug = debug
	voiceReplies := os.Getenv("TELEGRAM_VOICE_REPLIES") == "true"

	span.SetAttributes(
		attribute.String("bot.username", bot.Self.UserName),
		attribute.Bool("bot.debug", debug),
		attribute.Bool("bot.voice_replies", voiceReplies),
	)

	args.Logger.Logger(ctx).Info("[Telegram] Bot connected successfully",
		zap.String("username", bot.Self.UserName),
		zap.Bool("debug", debug),
	)

	return &Telegram{
		logger:       args.Logger,
		bot:          bot,
		coach:        args.Coach,
		deepgram:     args.Deepgram,
		openai:       args.OpenAI,
		db:           args.DB,
		voiceReplies: voiceReplies,
	}
}

func (t *Telegram) Listen(ctx context.Context) {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Logger(ctx).Info("[Telegram] Starting bot message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("[Telegram] Shutting down bot listener")
			return
		case update := <-updates:
			if update.Message != nil {
				t.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil {
		return
	}

	from := message.From
	span.SetAttributes(
		attribute.Int64("user.id", from.ID),
		attribute.String("user.username", from.UserName),
	)

	user, err := t.db.SetupNewUser(ctx, postgres.SetupNewUserProps{
		TelegramUserID:    from.ID,
		TelegramFirstName: from.FirstName,
		TelegramUsername:  from.UserName,
		TelegramLastName:  from.LastName,
	})
	if err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Could not resolve user", zap.Error(err))
		return
	}

	switch {
	case message.Voice != nil:
		t.handleVoiceNote(ctx, message, user.ID)
	case message.IsCommand():
		t.handleCommand(ctx, message, user.ID)
	case message.Text != "":
		t.handleText(ctx, message, user.ID)
	}
}

func (t *Telegram) handleCommand(ctx context.Context, message *tgbotapi.Message, userID int64) {
	tracer := otel.Tracer("telegram/handleCommand")
	ctx, span := tracer.Start(ctx, "handleCommand")
	defer span.End()

	span.SetAttributes(attribute.String("command", message.Command()))

	switch message.Command() {
	case "start":
		t.reply(ctx, message.Chat.ID, "Hi, I'm Orato, your speech coach. Message me to chat, send a voice note for feedback, or try /scenarios for a practice simulation.")
	case "actions":
		actions := t.coach.SuggestActions(ctx, userID)
		t.reply(ctx, message.Chat.ID, "Here's what you could try next:\n- "+strings.Join(actions, "\n- "))
	case "scenarios":
		var lines []string
		for _, sc := range t.coach.Scenarios() {
			lines = append(lines, fmt.Sprintf("%s — %s", sc.ID, sc.Title))
		}
		t.reply(ctx, message.Chat.ID, "Available simulations:\n"+strings.Join(lines, "\n")+"\n\nStart one with /simulate <id>.")
	case "simulate":
		scenarioID := strings.TrimSpace(message.CommandArguments())
		if scenarioID == "" {
			t.reply(ctx, message.Chat.ID, "Tell me which one: /simulate <id>. See /scenarios for the list.")
			return
		}
		result, err := t.coach.StartSimulation(ctx, userID, scenarioID)
		if err != nil {
			t.reply(ctx, message.Chat.ID, startErrorText(err))
			return
		}
		t.reply(ctx, message.Chat.ID, fmt.Sprintf("%s\n\n%s\n\nHint: %s", result.Scenario.Title, result.Scenario.Description, result.Step.Hint))
	case "exit":
		rounds := t.coach.ExitSimulation(ctx, userID)
		t.reply(ctx, message.Chat.ID, fmt.Sprintf("Simulation closed after %d rounds. Back to open coaching.", len(rounds)))
	default:
		t.reply(ctx, message.Chat.ID, "I don't know that command. Try /actions, /scenarios, /simulate or /exit.")
	}
}

func (t *Telegram) handleText(ctx context.Context, message *tgbotapi.Message, userID int64) {
	tracer := otel.Tracer("telegram/handleText")
	ctx, span := tracer.Start(ctx, "handleText")
	defer span.End()

	// An active simulation captures plain text as the next turn.
	turn, err := t.coach.SubmitSimulationTurn(ctx, userID, message.Text)
	switch {
	case err == nil:
		text := turn.CoachText
		if turn.Completed {
			text += "\n\nThat was the last round!\n\n" + turn.Feedback
		} else if turn.NextHint != "" {
			text += "\n\nHint: " + turn.NextHint
		}
		t.reply(ctx, message.Chat.ID, text)
		return
	case errors.Is(err, coach.ErrBusy):
		t.reply(ctx, message.Chat.ID, "One moment, I'm still thinking about your last message.")
		return
	case !fallsThroughToCoaching(err):
		t.logger.Logger(ctx).Error("[Telegram] Simulation turn failed", zap.Error(err))
		return
	}

	reply, err := t.coach.Converse(ctx, userID, message.Text)
	if err != nil {
		if errors.Is(err, coach.ErrBusy) {
			t.reply(ctx, message.Chat.ID, "One moment, I'm still thinking about your last message.")
			return
		}
		t.logger.Logger(ctx).Error("[Telegram] Converse failed", zap.Error(err))
		return
	}

	t.replyMaybeVoice(ctx, message.Chat.ID, reply.Message.Content)
}

func (t *Telegram) handleVoiceNote(ctx context.Context, message *tgbotapi.Message, userID int64) {
	tracer := otel.Tracer("telegram/handleVoiceNote")
	ctx, span := tracer.Start(ctx, "handleVoiceNote")
	defer span.End()

	span.SetAttributes(attribute.Int("voice.duration", message.Voice.Duration))

	fileURL, err := t.bot.GetFileDirectURL(message.Voice.FileID)
	if err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Could not resolve voice file", zap.Error(err))
		return
	}

	audioData, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{Method: "GET", Url: fileURL})
	if err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Could not download voice file", zap.Error(err))
		return
	}

	transcript, err := t.deepgram.Transcribe(ctx, audioData)
	if err != nil || strings.TrimSpace(transcript) == "" {
		t.reply(ctx, message.Chat.ID, "I couldn't make out that recording. Could you try again somewhere quieter?")
		return
	}

	analysis := t.coach.AnalyzeRecording(ctx, userID, transcript)
	if err := t.db.SaveAnalysis(ctx, postgres.SaveAnalysisProps{UserID: userID, Transcript: transcript, Result: analysis}); err != nil {
		t.logger.Logger(ctx).Warn("[Telegram] Could not persist analysis", zap.Error(err))
	}

	t.reply(ctx, message.Chat.ID, formatAnalysis(analysis))
}

func (t *Telegram) reply(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Failed to send response", zap.Error(err))
	}
}

func (t *Telegram) replyMaybeVoice(ctx context.Context, chatID int64, text string) {
	if t.voiceReplies && t.openai != nil {
		if audio, err := t.openai.GenerateSpeech(ctx, text); err == nil {
			voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "reply.mp3", Bytes: audio})
			voice.Caption = text
			if _, err := t.bot.Send(voice); err == nil {
				return
			}
		}
		t.logger.Logger(ctx).Warn("[Telegram] Voice reply failed, sending text instead")
	}
	t.reply(ctx, chatID, text)
}

func formatAnalysis(a coach.VoiceAnalysisResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Overall: %d/100\n", a.Overall))
	b.WriteString(fmt.Sprintf("Diction %d · Tempo %d · Intonation %d · Volume %d\n", a.Diction, a.Tempo, a.Intonation, a.Volume))
	b.WriteString(fmt.Sprintf("Confidence %d · No fillers %d · Structure %d · Persuasion %d\n", a.Confidence, a.FillerWordsAbsence, a.Structure, a.Persuasiveness))
	if len(a.Strengths) > 0 {
		b.WriteString("\nStrengths: " + strings.Join(a.Strengths, "; ") + "\n")
	}
	if len(a.Improvements) > 0 {
		b.WriteString("Work on: " + strings.Join(a.Improvements, "; ") + "\n")
	}
	b.WriteString("\nTip: " + a.Tip)
	return b.String()
}

// fallsThroughToCoaching reports whether a failed simulation turn just
// means the user is not in a simulation, so the text belongs to open
// coaching. Any other failure stays with the simulation.
func fallsThroughToCoaching(err error) bool {
	return errors.Is(err, coach.ErrInvalidState)
}

func startErrorText(err error) string {
	switch {
	case errors.Is(err, coach.ErrUnknownScenario):
		return "I don't have that scenario. See /scenarios for the list."
	case errors.Is(err, coach.ErrInvalidState):
		return "You're already in a simulation. Finish it or use /exit first."
	case errors.Is(err, coach.ErrInvalidScenario):
		return "That scenario has no steps, so I can't start it."
	default:
		return "I couldn't start that simulation right now."
	}
}
