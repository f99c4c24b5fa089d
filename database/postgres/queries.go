package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"oratodev/coach"
	"time"
)

// Queries holds the raw SQL access layer. Database wraps it with
// logging and the coach.Store adaptation.
type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

type UserInfo struct {
	ID                int64
	TelegramUserID    int64
	TelegramUsername  sql.NullString
	TelegramFirstName sql.NullString
	TelegramLastName  sql.NullString
	CreatedAt         time.Time
}

type AddUserParams struct {
	TelegramUserID    int64
	TelegramUsername  sql.NullString
	TelegramFirstName sql.NullString
	TelegramLastName  sql.NullString
}

const addUser = `
INSERT INTO users (telegram_user_id, telegram_username, telegram_first_name, telegram_last_name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (telegram_user_id) DO UPDATE SET telegram_username = EXCLUDED.telegram_username
RETURNING id, telegram_user_id, telegram_username, telegram_first_name, telegram_last_name, created_at
`

func (q *Queries) AddUser(ctx context.Context, args AddUserParams) (UserInfo, error) {
	row := q.db.QueryRowContext(ctx, addUser,
		args.TelegramUserID, args.TelegramUsername, args.TelegramFirstName, args.TelegramLastName)

	var user UserInfo
	err := row.Scan(&user.ID, &user.TelegramUserID, &user.TelegramUsername,
		&user.TelegramFirstName, &user.TelegramLastName, &user.CreatedAt)
	return user, err
}

type ProfileRow struct {
	UserID       int64
	Goal         sql.NullString
	DailyMinutes sql.NullInt64
}

const getProfile = `
SELECT user_id, goal, daily_minutes FROM profiles WHERE user_id = $1
`

func (q *Queries) GetProfile(ctx context.Context, userID int64) (ProfileRow, error) {
	row := q.db.QueryRowContext(ctx, getProfile, userID)

	var profile ProfileRow
	err := row.Scan(&profile.UserID, &profile.Goal, &profile.DailyMinutes)
	return profile, err
}

const upsertProfile = `
INSERT INTO profiles (user_id, goal, daily_minutes)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET goal = EXCLUDED.goal, daily_minutes = EXCLUDED.daily_minutes
`

func (q *Queries) UpsertProfile(ctx context.Context, userID int64, goal string, dailyMinutes int) error {
	_, err := q.db.ExecContext(ctx, upsertProfile, userID,
		sql.NullString{Valid: goal != "", String: goal},
		sql.NullInt64{Valid: dailyMinutes > 0, Int64: int64(dailyMinutes)})
	return err
}

type ProgressRow struct {
	UserID         int64
	Streak         int64
	TotalExercises int64
	SkillLevels    []byte
}

const getProgress = `
SELECT user_id, streak, total_exercises, skill_levels FROM progress WHERE user_id = $1
`

func (q *Queries) GetProgress(ctx context.Context, userID int64) (ProgressRow, error) {
	row := q.db.QueryRowContext(ctx, getProgress, userID)

	var progress ProgressRow
	err := row.Scan(&progress.UserID, &progress.Streak, &progress.TotalExercises, &progress.SkillLevels)
	return progress, err
}

const upsertProgress = `
INSERT INTO progress (user_id, streak, total_exercises, skill_levels)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
  streak = EXCLUDED.streak,
  total_exercises = EXCLUDED.total_exercises,
  skill_levels = EXCLUDED.skill_levels
`

func (q *Queries) UpsertProgress(ctx context.Context, userID int64, progress coach.ProgressSummary) error {
	levels, err := json.Marshal(progress.SkillLevels)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, upsertProgress, userID,
		int64(progress.Streak), int64(progress.TotalExercises), levels)
	return err
}

const getDiagnosticLevel = `
SELECT overall_level FROM diagnostics WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1
`

func (q *Queries) GetDiagnosticLevel(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, getDiagnosticLevel, userID)

	var level int64
	err := row.Scan(&level)
	return level, err
}

const insertDiagnostic = `
INSERT INTO diagnostics (user_id, overall_level) VALUES ($1, $2)
`

func (q *Queries) InsertDiagnostic(ctx context.Context, userID int64, overallLevel int) error {
	_, err := q.db.ExecContext(ctx, insertDiagnostic, userID, int64(overallLevel))
	return err
}

type InsertMessageParams struct {
	ID        string
	UserID    int64
	Role      string
	Content   string
	IsError   bool
	ErrorText sql.NullString
	LatencyMs sql.NullInt64
	CreatedAt time.Time
}

const insertMessage = `
INSERT INTO messages (id, user_id, role, content, is_error, error_text, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func (q *Queries) InsertMessage(ctx context.Context, args InsertMessageParams) error {
	_, err := q.db.ExecContext(ctx, insertMessage,
		args.ID, args.UserID, args.Role, args.Content,
		args.IsError, args.ErrorText, args.LatencyMs, args.CreatedAt)
	return err
}

type MessageRow struct {
	ID        string
	UserID    int64
	Role      string
	Content   string
	IsError   bool
	ErrorText sql.NullString
	LatencyMs sql.NullInt64
	CreatedAt time.Time
}

const getRecentMessages = `
SELECT id, user_id, role, content, is_error, error_text, latency_ms, created_at
FROM messages WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
`

// GetRecentMessages returns the newest rows first; callers reverse as
// needed.
func (q *Queries) GetRecentMessages(ctx context.Context, userID int64, limit int) ([]MessageRow, error) {
	rows, err := q.db.QueryContext(ctx, getRecentMessages, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []MessageRow
	for rows.Next() {
		var msg MessageRow
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &msg.Content,
			&msg.IsError, &msg.ErrorText, &msg.LatencyMs, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

const insertAnalysis = `
INSERT INTO recording_analyses (user_id, transcript, scores) VALUES ($1, $2, $3)
`

func (q *Queries) InsertAnalysis(ctx context.Context, userID int64, transcript string, result coach.VoiceAnalysisResult) error {
	scores, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, insertAnalysis, userID, transcript, scores)
	return err
}

func decodeSkillLevels(raw []byte) ([]coach.SkillLevel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var levels []coach.SkillLevel
	if err := json.Unmarshal(raw, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}
