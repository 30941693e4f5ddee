package database

import (
	"context"
	"database/sql"
	"time"
)

const (
	userColumns = "id, username, display_name, email, password_hash, name_color, bio, created_at, updated_at"

	chatMessageSelect = "SELECT cm.id, cm.user_id, cm.message, cm.created_at, u.username, u.display_name, u.name_color " +
		"FROM chat_messages cm JOIN users u ON cm.user_id = u.id "

	commentSelect = "SELECT c.id, c.user_id, c.text, c.created_at, u.username, u.display_name, u.name_color " +
		"FROM comments c JOIN users u ON c.user_id = u.id "
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.DisplayName,
		&u.Email,
		&u.PasswordHash,
		&u.NameColor,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgForumRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(
		ctx,
		"INSERT INTO users (username, display_name, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+userColumns,
		params.Username,
		params.DisplayName,
		params.Email,
		params.PasswordHash,
		now,
		now,
	)

	u, err := scanUser(row)
	if err != nil {
		return User{}, mapError(err)
	}

	return u, nil
}

func (db *PgForumRepository) GetUserById(ctx context.Context, id int) (User, error) {
	row := db.conn.QueryRowContext(
		ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1",
		id,
	)

	return scanUser(row)
}

func (db *PgForumRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(
		ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1 LIMIT 1",
		username,
	)

	return scanUser(row)
}

func (db *PgForumRepository) UpdatePasswordHash(ctx context.Context, userId int, hash string) error {
	return db.updateUser(ctx, "UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1", userId, hash)
}

func (db *PgForumRepository) UpdateEmail(ctx context.Context, userId int, email string) error {
	return db.updateUser(ctx, "UPDATE users SET email = $2, updated_at = $3 WHERE id = $1", userId, email)
}

func (db *PgForumRepository) UpdateDisplayName(ctx context.Context, userId int, displayName string) error {
	return db.updateUser(ctx, "UPDATE users SET display_name = $2, updated_at = $3 WHERE id = $1", userId, displayName)
}

func (db *PgForumRepository) UpdateCustomization(ctx context.Context, params UpdateCustomizationParams) error {
	res, err := db.conn.ExecContext(
		ctx,
		"UPDATE users SET name_color = $2, bio = $3, updated_at = $4 WHERE id = $1",
		params.UserId,
		params.NameColor,
		params.Bio,
		time.Now().UTC(),
	)
	if err != nil {
		return mapError(err)
	}

	return expectAffected(res)
}

func (db *PgForumRepository) updateUser(ctx context.Context, query string, userId int, value string) error {
	res, err := db.conn.ExecContext(ctx, query, userId, value, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}

	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *PgForumRepository) CreateChatMessage(ctx context.Context, userId int, message string, createdAt time.Time) (ChatMessage, error) {
	row := db.conn.QueryRowContext(
		ctx,
		"WITH ins AS ("+
			"INSERT INTO chat_messages (user_id, message, created_at) VALUES ($1, $2, $3) "+
			"RETURNING id, user_id, message, created_at) "+
			"SELECT ins.id, ins.user_id, ins.message, ins.created_at, u.username, u.display_name, u.name_color "+
			"FROM ins JOIN users u ON ins.user_id = u.id",
		userId,
		message,
		createdAt.UTC(),
	)

	return scanChatMessage(row)
}

func scanChatMessage(row rowScanner) (ChatMessage, error) {
	var msg ChatMessage
	err := row.Scan(
		&msg.Id,
		&msg.UserId,
		&msg.Message,
		&msg.CreatedAt,
		&msg.Username,
		&msg.DisplayName,
		&msg.NameColor,
	)

	return msg, err
}

func (db *PgForumRepository) ListChatMessages(ctx context.Context, before *time.Time, limit int) ([]ChatMessage, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if before != nil {
		rows, err = db.conn.QueryContext(
			ctx,
			chatMessageSelect+"WHERE cm.created_at < $1 ORDER BY cm.created_at DESC, cm.id DESC LIMIT $2",
			before.UTC(),
			limit,
		)
	} else {
		rows, err = db.conn.QueryContext(
			ctx,
			chatMessageSelect+"ORDER BY cm.created_at DESC, cm.id DESC LIMIT $1",
			limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]ChatMessage, 0, limit)
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgForumRepository) CreateComment(ctx context.Context, userId int, text string) (Comment, error) {
	row := db.conn.QueryRowContext(
		ctx,
		"WITH ins AS ("+
			"INSERT INTO comments (user_id, text, created_at) VALUES ($1, $2, $3) "+
			"RETURNING id, user_id, text, created_at) "+
			"SELECT ins.id, ins.user_id, ins.text, ins.created_at, u.username, u.display_name, u.name_color "+
			"FROM ins JOIN users u ON ins.user_id = u.id",
		userId,
		text,
		time.Now().UTC(),
	)

	return scanComment(row)
}

func scanComment(row rowScanner) (Comment, error) {
	var c Comment
	err := row.Scan(
		&c.Id,
		&c.UserId,
		&c.Text,
		&c.CreatedAt,
		&c.Username,
		&c.DisplayName,
		&c.NameColor,
	)

	return c, err
}

func (db *PgForumRepository) ListComments(ctx context.Context, before *time.Time, limit int) ([]Comment, error) {
	if before != nil {
		return db.queryComments(
			ctx,
			commentSelect+"WHERE c.created_at < $1 ORDER BY c.created_at DESC, c.id DESC LIMIT $2",
			limit,
			before.UTC(),
			limit,
		)
	}

	return db.queryComments(
		ctx,
		commentSelect+"ORDER BY c.created_at DESC, c.id DESC LIMIT $1",
		limit,
		limit,
	)
}

func (db *PgForumRepository) ListCommentsByUser(ctx context.Context, userId, limit int) ([]Comment, error) {
	return db.queryComments(
		ctx,
		commentSelect+"WHERE c.user_id = $1 ORDER BY c.created_at DESC, c.id DESC LIMIT $2",
		limit,
		userId,
		limit,
	)
}

func (db *PgForumRepository) queryComments(ctx context.Context, query string, limit int, args ...any) ([]Comment, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]Comment, 0, limit)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}

		comments = append(comments, c)
	}

	return comments, rows.Err()
}
