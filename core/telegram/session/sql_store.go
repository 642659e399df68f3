package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/menubot/core/logger"
)

// SQLStore keeps sessions in the sessions table (postgres or sqlite).
// Timestamps are stored as unix seconds and Data as a JSON object.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLStore returns a store over db. The schema is created by migrations.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

type sessionRow struct {
	UserID            int64  `db:"user_id"`
	ChatID            int64  `db:"chat_id"`
	Username          string `db:"username"`
	FirstName         string `db:"first_name"`
	LanguageCode      string `db:"language_code"`
	State             int    `db:"state"`
	StandingMessageID int    `db:"standing_message_id"`
	Data              string `db:"data"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

const selectSession = `SELECT user_id, chat_id, username, first_name, language_code, state,
	standing_message_id, data, created_at, updated_at FROM sessions WHERE user_id = ?`

const upsertSession = `INSERT INTO sessions (user_id, chat_id, username, first_name, language_code,
	state, standing_message_id, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	chat_id = excluded.chat_id,
	username = excluded.username,
	first_name = excluded.first_name,
	language_code = excluded.language_code,
	state = excluded.state,
	standing_message_id = excluded.standing_message_id,
	data = excluded.data,
	updated_at = excluded.updated_at`

const insertSession = `INSERT INTO sessions (user_id, chat_id, username, first_name, language_code,
	state, standing_message_id, data, created_at, updated_at)
VALUES (?, 0, '', '', '', 0, 0, '{}', ?, ?)
ON CONFLICT (user_id) DO NOTHING`

// Load returns the stored session, inserting an empty one on first contact.
func (s *SQLStore) Load(ctx context.Context, userID int64) (*Session, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(selectSession), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.create(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %d: %w", userID, err)
	}
	return row.session(ctx), nil
}

func (s *SQLStore) create(ctx context.Context, userID int64) (*Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(insertSession), userID, now.Unix(), now.Unix()); err != nil {
		return nil, fmt.Errorf("session: create %d: %w", userID, err)
	}
	logger.SESS.LogAttrs(ctx, slog.LevelDebug, "session.create",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("store", "sql"),
	)
	var row sessionRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(selectSession), userID); err != nil {
		return nil, fmt.Errorf("session: reload %d: %w", userID, err)
	}
	return row.session(ctx), nil
}

// Commit upserts the session.
func (s *SQLStore) Commit(ctx context.Context, sess *Session) error {
	if sess == nil || sess.UserID == 0 {
		return ErrInvalidUser
	}
	data := sess.Data
	if data == nil {
		data = map[string]string{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session: encode data: %w", err)
	}
	now := s.now().UTC()
	created := sess.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(upsertSession),
		sess.UserID, sess.ChatID, sess.Username, sess.FirstName, sess.LanguageCode,
		sess.State, sess.StandingMessageID, string(raw), created.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("session: commit %d: %w", sess.UserID, err)
	}
	return nil
}

func (r sessionRow) session(ctx context.Context) *Session {
	sess := &Session{
		UserID:            r.UserID,
		ChatID:            r.ChatID,
		Username:          r.Username,
		FirstName:         r.FirstName,
		LanguageCode:      r.LanguageCode,
		State:             r.State,
		StandingMessageID: r.StandingMessageID,
		Data:              make(map[string]string),
		CreatedAt:         time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt:         time.Unix(r.UpdatedAt, 0).UTC(),
	}
	if r.Data != "" {
		if err := json.Unmarshal([]byte(r.Data), &sess.Data); err != nil {
			logger.SESS.LogAttrs(ctx, slog.LevelWarn, "session.decode",
				slog.String("status", "fail"),
				slog.Int64("user_id", r.UserID),
				slog.String("err", err.Error()),
			)
			sess.Data = make(map[string]string)
		}
	}
	return sess
}
