package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskhub/pkg/utils"

	"github.com/google/uuid"
)

// Repository is the persistence contract for users.
type Repository interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	UpdateProfile(ctx context.Context, id, name string, now time.Time) (User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
	UpdateStatus(ctx context.Context, id string, status Status, now time.Time) (User, error)
}

// PostgresRepository assumes the users table from internal/migrations.
type PostgresRepository struct {
	db utils.Querier
}

func NewPostgresRepository(db utils.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, password_hash, role, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.Role,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, u User) error {
	const q = `
INSERT INTO users (` + userColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		u.ID,
		u.Email,
		u.Name,
		u.PasswordHash,
		u.Role,
		u.Status,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if utils.IsUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (User, error) {
	// Non-UUID ids cannot exist; avoid a 22P02 round trip.
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

// List reads the count and the page from one snapshot when it owns the pool.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	db, ok := r.db.(*sql.DB)
	if !ok {
		return r.list(ctx, limit, offset)
	}
	var (
		items []User
		total int
	)
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := utils.WithTx(ctx, db, opts, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		items, total, err = (&PostgresRepository{db: tx}).list(ctx, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepository) list(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `
SELECT ` + userColumns + `
FROM users
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2
`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return out, total, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, name string, now time.Time) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	const q = `
UPDATE users SET name = $2, updated_at = $3
WHERE id = $1
RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q, id, name, now))
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	const q = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, passwordHash, now)
	if err != nil {
		return err
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

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status, now time.Time) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	const q = `
UPDATE users SET status = $2, updated_at = $3
WHERE id = $1
RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q, id, status, now))
}
