package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PgStore persists sessions in the sessions table so that every process
// sharing the database sees the same login state.
type PgStore struct {
	conn *sql.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{conn: db}
}

func (s *PgStore) Get(ctx context.Context, token string) (*Session, error) {
	var (
		sess      Session
		userId    sql.NullInt64
		loginTime sql.NullTime
	)

	err := s.conn.QueryRowContext(
		ctx,
		"SELECT id, user_id, username, is_logged_in, login_time, visit_count, expires_at "+
			"FROM sessions WHERE id = $1 AND expires_at > $2",
		token,
		time.Now().UTC(),
	).Scan(
		&sess.Id,
		&userId,
		&sess.Username,
		&sess.IsLoggedIn,
		&loginTime,
		&sess.VisitCount,
		&sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess.UserId = int(userId.Int64)
	if loginTime.Valid {
		t := loginTime.Time
		sess.LoginTime = &t
	}

	return &sess, nil
}

func (s *PgStore) Set(ctx context.Context, token string, sess *Session) error {
	var userId sql.NullInt64
	if sess.UserId != 0 {
		userId = sql.NullInt64{Int64: int64(sess.UserId), Valid: true}
	}

	var loginTime sql.NullTime
	if sess.LoginTime != nil {
		loginTime = sql.NullTime{Time: sess.LoginTime.UTC(), Valid: true}
	}

	_, err := s.conn.ExecContext(
		ctx,
		"INSERT INTO sessions (id, user_id, username, is_logged_in, login_time, visit_count, expires_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"ON CONFLICT (id) DO UPDATE SET "+
			"user_id = EXCLUDED.user_id, username = EXCLUDED.username, is_logged_in = EXCLUDED.is_logged_in, "+
			"login_time = EXCLUDED.login_time, visit_count = EXCLUDED.visit_count, expires_at = EXCLUDED.expires_at",
		token,
		userId,
		sess.Username,
		sess.IsLoggedIn,
		loginTime,
		sess.VisitCount,
		sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}

func (s *PgStore) Destroy(ctx context.Context, token string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", token); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	return nil
}

// DeleteExpired removes sessions past their expiry and returns the number deleted.
func (s *PgStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= $1", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return res.RowsAffected()
}

var _ Store = (*PgStore)(nil)
