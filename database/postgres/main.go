package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"oratodev/coach"
	"oratodev/logger"
	"os"
	"time"

	_ "github.com/lib/pq"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type DatabaseConnectProps struct {
	Logger *logger.LogMiddleware
}

type Database struct {
	Queries
	logger *logger.LogMiddleware
}

func Connect(ctx context.Context, args DatabaseConnectProps) *Database {
	tracer := otel.Tracer("postgres/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	connectRetries := 5
	var conn *sql.DB
	var err error
	var connStr string

	logger := args.Logger.Logger(ctx)

	for connectRetries > 0 {
		conn, err, connStr = getConnection(ctx)
		if err == nil {
			logger.Info("[Postgres] Database client started")
			break
		}
		connectRetries -= 1
		sleepTime := 5
		logger.Error(
			"[Postgres] Could not connect to Postgres. Retrying after sleeping.",
			zap.Error(err),
			zap.Int("Retries Left", connectRetries),
			zap.Int("Sleep Time", sleepTime),
			zap.String("Connection String", connStr))
		time.Sleep(time.Second * time.Duration(sleepTime))
	}

	if connectRetries <= 0 {
		logger.Error("[Postgres] Failed to Connect to Postgres")
		span.RecordError(fmt.Errorf("failed to connect to Postgres"))
		os.Exit(1)
	}

	queries := New(conn)
	return &Database{Queries: *queries, logger: args.Logger}
}

func getConnection(ctx context.Context) (*sql.DB, error, string) {
	tracer := otel.Tracer("postgres/getConnection")
	_, span := tracer.Start(ctx, "getConnection")
	defer span.End()

	host := os.Getenv("POSTGRES_DB_HOST")
	port := os.Getenv("POSTGRES_DB_PORT")
	user := os.Getenv("POSTGRES_DB_USER")
	password := os.Getenv("POSTGRES_DB_PASS")
	dbname := os.Getenv("POSTGRES_DB_NAME")

	sslMode := "disable"

	postgresqlDbInfo := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslMode,
	)

	db, err := sql.Open("postgres", postgresqlDbInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err, postgresqlDbInfo
	}
	err = db.Ping()
	if err != nil {
		span.RecordError(err)
		return nil, err, postgresqlDbInfo
	}

	return db, nil, ""
}

type SetupNewUserProps struct {
	TelegramUserID    int64
	TelegramFirstName string
	TelegramUsername  string
	TelegramLastName  string
}

// SetupNewUser creates or fetches the user row for a Telegram identity.
func (d *Database) SetupNewUser(ctx context.Context, args SetupNewUserProps) (*UserInfo, error) {
	tracer := otel.Tracer("postgres/SetupNewUser")
	ctx, span := tracer.Start(ctx, "SetupNewUser")
	defer span.End()

	user, err := d.Queries.AddUser(ctx, AddUserParams{
		TelegramUserID:    args.TelegramUserID,
		TelegramUsername:  sql.NullString{Valid: args.TelegramUsername != "", String: args.TelegramUsername},
		TelegramFirstName: sql.NullString{Valid: args.TelegramFirstName != "", String: args.TelegramFirstName},
		TelegramLastName:  sql.NullString{Valid: args.TelegramLastName != "", String: args.TelegramLastName},
	})
	if err != nil {
		d.logger.Logger(ctx).Error(
			"[Postgres] Could not setup new user",
			zap.Error(err),
			zap.Int64("telegram_user_id", args.TelegramUserID),
		)
		span.RecordError(err)
		return nil, fmt.Errorf("could not setup new user")
	}

	return &user, nil
}

// LoadProfile implements coach.Store. A user without a saved profile
// yields a nil summary, not an error.
func (d *Database) LoadProfile(ctx context.Context, userID int64) (*coach.ProfileSummary, error) {
	tracer := otel.Tracer("postgres/LoadProfile")
	ctx, span := tracer.Start(ctx, "LoadProfile")
	defer span.End()

	profile, err := d.Queries.GetProfile(ctx, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not load profile: %w", err)
	}

	return &coach.ProfileSummary{
		Goal:         profile.Goal.String,
		DailyMinutes: int(profile.DailyMinutes.Int64),
	}, nil
}

// LoadProgress implements coach.Store.
func (d *Database) LoadProgress(ctx context.Context, userID int64) (*coach.ProgressSummary, error) {
	tracer := otel.Tracer("postgres/LoadProgress")
	ctx, span := tracer.Start(ctx, "LoadProgress")
	defer span.End()

	progress, err := d.Queries.GetProgress(ctx, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not load progress: %w", err)
	}

	levels, err := decodeSkillLevels(progress.SkillLevels)
	if err != nil {
		d.logger.Logger(ctx).Warn("[Postgres] Dropping malformed skill levels",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		levels = nil
	}

	return &coach.ProgressSummary{
		Streak:         int(progress.Streak),
		TotalExercises: int(progress.TotalExercises),
		SkillLevels:    levels,
	}, nil
}

// LoadDiagnostic implements coach.Store. Nil when the user never took
// the diagnostic.
func (d *Database) LoadDiagnostic(ctx context.Context, userID int64) (*int, error) {
	tracer := otel.Tracer("postgres/LoadDiagnostic")
	ctx, span := tracer.Start(ctx, "LoadDiagnostic")
	defer span.End()

	level, err := d.Queries.GetDiagnosticLevel(ctx, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not load diagnostic: %w", err)
	}

	value := int(level)
	return &value, nil
}

// LoadMessages implements coach.Store. Returns up to n of the user's
// most recent messages in chronological order.
func (d *Database) LoadMessages(ctx context.Context, userID int64, n int) ([]coach.Message, error) {
	tracer := otel.Tracer("postgres/LoadMessages")
	ctx, span := tracer.Start(ctx, "LoadMessages")
	defer span.End()

	rows, err := d.Queries.GetRecentMessages(ctx, userID, n)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not load messages: %w", err)
	}

	// rows arrive newest-first, flip back to chronological
	messages := make([]coach.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		msg := coach.Message{
			ID:        row.ID,
			Role:      coach.Role(row.Role),
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
		if row.IsError || row.ErrorText.Valid || row.LatencyMs.Valid {
			msg.Metadata = &coach.MessageMetadata{
				IsError:   row.IsError,
				ErrorText: row.ErrorText.String,
				LatencyMs: row.LatencyMs.Int64,
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// AppendMessage implements coach.Store.
func (d *Database) AppendMessage(ctx context.Context, userID int64, msg coach.Message) error {
	tracer := otel.Tracer("postgres/AppendMessage")
	ctx, span := tracer.Start(ctx, "AppendMessage")
	defer span.End()

	params := InsertMessageParams{
		ID:        msg.ID,
		UserID:    userID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Metadata != nil {
		params.IsError = msg.Metadata.IsError
		params.ErrorText = sql.NullString{Valid: msg.Metadata.ErrorText != "", String: msg.Metadata.ErrorText}
		params.LatencyMs = sql.NullInt64{Valid: msg.Metadata.LatencyMs > 0, Int64: msg.Metadata.LatencyMs}
	}

	if err := d.Queries.InsertMessage(ctx, params); err != nil {
		span.RecordError(err)
		return fmt.Errorf("could not append message: %w", err)
	}
	return nil
}

type SaveProfileProps struct {
	UserID       int64
	Goal         string
	DailyMinutes int
}

// SaveProfile upserts the user's coaching goal and daily target.
func (d *Database) SaveProfile(ctx context.Context, args SaveProfileProps) error {
	tracer := otel.Tracer("postgres/SaveProfile")
	ctx, span := tracer.Start(ctx, "SaveProfile")
	defer span.End()

	if err := d.Queries.UpsertProfile(ctx, args.UserID, args.Goal, args.DailyMinutes); err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not save profile",
			zap.Error(err),
			zap.Int64("user_id", args.UserID),
		)
		span.RecordError(err)
		return fmt.Errorf("could not save profile")
	}
	return nil
}

// SaveProgress upserts the user's streak, exercise count and skill levels.
func (d *Database) SaveProgress(ctx context.Context, userID int64, progress coach.ProgressSummary) error {
	tracer := otel.Tracer("postgres/SaveProgress")
	ctx, span := tracer.Start(ctx, "SaveProgress")
	defer span.End()

	if err := d.Queries.UpsertProgress(ctx, userID, progress); err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not save progress",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		span.RecordError(err)
		return fmt.Errorf("could not save progress")
	}
	return nil
}

// SaveDiagnostic records a diagnostic result. LoadDiagnostic reads the
// latest one.
func (d *Database) SaveDiagnostic(ctx context.Context, userID int64, overallLevel int) error {
	tracer := otel.Tracer("postgres/SaveDiagnostic")
	ctx, span := tracer.Start(ctx, "SaveDiagnostic")
	defer span.End()

	if err := d.Queries.InsertDiagnostic(ctx, userID, overallLevel); err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not save diagnostic",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		span.RecordError(err)
		return fmt.Errorf("could not save diagnostic")
	}
	return nil
}

type SaveAnalysisProps struct {
	UserID     int64
	Transcript string
	Result     coach.VoiceAnalysisResult
}

// SaveAnalysis stores a scored recording so progress views can replay it.
func (d *Database) SaveAnalysis(ctx context.Context, args SaveAnalysisProps) error {
	tracer := otel.Tracer("postgres/SaveAnalysis")
	ctx, span := tracer.Start(ctx, "SaveAnalysis")
	defer span.End()

	if err := d.Queries.InsertAnalysis(ctx, args.UserID, args.Transcript, args.Result); err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not save analysis",
			zap.Error(err),
			zap.Int64("user_id", args.UserID),
		)
		span.RecordError(err)
		return fmt.Errorf("could not save analysis")
	}
	return nil
}
