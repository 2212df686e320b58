package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/existflow/irontodo/internal/model"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgreSQL error codes
const (
	pqUniqueViolation = "23505"
	pqInvalidText     = "22P02" // e.g. a malformed uuid
)

// PostgresRepository stores users, sessions and tasks in PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// OpenPostgres connects to dbURL and creates the tables if needed
func OpenPostgres(ctx context.Context, dbURL string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresRepository{db: db}, nil
}

// mapError turns driver errors into repository errors
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrConflict
		case pqInvalidText:
			return ErrNotFound
		}
	}
	return err
}

func (r *PostgresRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (model.User, error) {
	u := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		u.ID, username, email, passwordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		return model.User{}, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE username = $1`, username))
}

func (r *PostgresRepository) UserByID(ctx context.Context, id string) (model.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE id = $1`, id))
}

func (r *PostgresRepository) scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return model.User{}, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) CreateSession(ctx context.Context, session model.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)`,
		session.Token, session.UserID, session.ExpiresAt,
	)
	return mapError(err)
}

func (r *PostgresRepository) SessionByToken(ctx context.Context, token string) (model.Session, error) {
	var s model.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, created_at
		FROM sessions WHERE token = $1`, token,
	).Scan(&s.Token, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return model.Session{}, mapError(err)
	}
	return s, nil
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return mapError(err)
}

const taskColumns = `id, text, completed, created_at, user_id`

func scanTask(scan func(dest ...any) error) (model.Task, error) {
	var t model.Task
	if err := scan(&t.ID, &t.Text, &t.Completed, &t.CreatedAt, &t.OwnerID); err != nil {
		return model.Task{}, mapError(err)
	}
	return t, nil
}

func (r *PostgresRepository) ListTasks(ctx context.Context, ownerID string) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *PostgresRepository) InsertTask(ctx context.Context, ownerID, text string) (model.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, text, user_id)
		VALUES ($1, $2, $3)
		RETURNING `+taskColumns,
		uuid.NewString(), text, ownerID,
	)
	return scanTask(row.Scan)
}

func (r *PostgresRepository) UpdateTask(ctx context.Context, id, ownerID string, patch model.TaskPatch) (model.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET text = COALESCE($3, text),
		    completed = COALESCE($4, completed)
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		id, ownerID, patch.Text, patch.Completed,
	)
	return scanTask(row.Scan)
}

func (r *PostgresRepository) DeleteTask(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
