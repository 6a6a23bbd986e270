package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/webapp-auth/backend/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func (s *SQLite) CreateUser(ctx context.Context, username, passwordHash string, email *string) (*model.User, error) {
	query := `
		INSERT INTO users (username, password_hash, email)
		VALUES (?, ?, ?)
		RETURNING id, username, password_hash, email, created_at
	`
	var user *model.User
	err := s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		var err error
		user, err = scanUser(q.QueryRowContext(ctx, query, username, passwordHash, email))
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, email, created_at
		FROM users
		WHERE username = ?
	`
	var user *model.User
	err := s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		var err error
		user, err = scanUser(q.QueryRowContext(ctx, query, username))
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLite) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, email, created_at
		FROM users
		WHERE id = ?
	`
	var user *model.User
	err := s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		var err error
		user, err = scanUser(q.QueryRowContext(ctx, query, userID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLite) ListUsers(ctx context.Context) ([]model.User, error) {
	query := `
		SELECT id, username, email, created_at
		FROM users
		ORDER BY id
	`
	users := []model.User{}
	err := s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		rows, err := q.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				user  model.User
				email sql.NullString
			)
			if err := rows.Scan(&user.ID, &user.Username, &email, timestamp{&user.CreatedAt}); err != nil {
				return err
			}
			if email.Valid {
				user.Email = &email.String
			}
			users = append(users, user)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *SQLite) InsertSession(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO sessions (user_id, token, expires_at)
		VALUES (?, ?, ?)
	`
	return s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, query, userID, tokenHash, formatTime(expiresAt))
		return err
	})
}

func (s *SQLite) GetSessionByToken(ctx context.Context, tokenHash string) (*model.Session, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at
		FROM sessions
		WHERE token = ?
	`
	var session model.Session
	err := s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRowContext(ctx, query, tokenHash).Scan(
			&session.ID,
			&session.UserID,
			&session.TokenHash,
			timestamp{&session.ExpiresAt},
			timestamp{&session.CreatedAt},
		)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SQLite) DeleteSessionByToken(ctx context.Context, tokenHash string) error {
	return s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, tokenHash)
		return err
	})
}

func (s *SQLite) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := s.WithConn(ctx, func(ctx context.Context, q Querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(now))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user  model.User
		email sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&email,
		timestamp{&user.CreatedAt},
	)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		user.Email = &email.String
	}
	return &user, nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
