package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskhub/pkg/utils"

	"github.com/google/uuid"
)

// Repository is owner-scoped: every read and write takes the owner id,
// and a task of another owner is indistinguishable from a missing one.
type Repository interface {
	Create(ctx context.Context, t Task) error
	Get(ctx context.Context, ownerID, id string) (Task, error)
	List(ctx context.Context, ownerID string, f Filter) ([]Task, int, error)
	// Update writes t only while the stored status still equals prev;
	// otherwise it returns ErrConflict.
	Update(ctx context.Context, t Task, prev Status) error
	Delete(ctx context.Context, ownerID, id string) error
	CountByStatus(ctx context.Context, ownerID string) (map[Status]int, error)
	CountOverdue(ctx context.Context, ownerID string, now time.Time) (int, error)
}

type PostgresRepository struct {
	db utils.Querier
}

func NewPostgresRepository(db utils.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const taskColumns = `id, owner_id, title, description, status, priority, due_at, completed_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var (
		t         Task
		due, done sql.NullTime
	)
	if err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&due,
		&done,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	if due.Valid {
		v := due.Time
		t.DueAt = &v
	}
	if done.Valid {
		v := done.Time
		t.CompletedAt = &v
	}
	return t, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *PostgresRepository) Create(ctx context.Context, t Task) error {
	const q = `
INSERT INTO tasks (` + taskColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		t.ID,
		t.OwnerID,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		t.DueAt,
		t.CompletedAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (Task, error) {
	if !validID(id) || !validID(ownerID) {
		return Task{}, ErrNotFound
	}
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`
	return scanTask(r.db.QueryRowContext(ctx, q, id, ownerID))
}

// List reads the count and the page from one snapshot when it owns the pool.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, f Filter) ([]Task, int, error) {
	db, ok := r.db.(*sql.DB)
	if !ok {
		return r.list(ctx, ownerID, f)
	}
	var (
		items []Task
		total int
	)
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := utils.WithTx(ctx, db, opts, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		items, total, err = (&PostgresRepository{db: tx}).list(ctx, ownerID, f)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepository) list(ctx context.Context, ownerID string, f Filter) ([]Task, int, error) {
	if !validID(ownerID) {
		return []Task{}, 0, nil
	}

	where := []string{"owner_id = $1"}
	args := []any{ownerID}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	q := fmt.Sprintf(`
SELECT %s
FROM tasks
WHERE %s
ORDER BY created_at DESC, id
LIMIT $%d OFFSET $%d
`, taskColumns, cond, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Task, 0, f.Limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, t Task, prev Status) error {
	if !validID(t.ID) || !validID(t.OwnerID) {
		return ErrNotFound
	}
	const q = `
UPDATE tasks
SET title = $3, description = $4, status = $5, priority = $6,
    due_at = $7, completed_at = $8, updated_at = $9
WHERE id = $1 AND owner_id = $2 AND status = $10
`
	res, err := r.db.ExecContext(ctx, q,
		t.ID,
		t.OwnerID,
		t.Title,
		t.Description,
		t.Status,
		t.Priority,
		t.DueAt,
		t.CompletedAt,
		t.UpdatedAt,
		prev,
	)
	if err != nil {
		return err
	}
	err = expectOne(res)
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	var exists bool
	const existsQ = `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND owner_id = $2)`
	if err := r.db.QueryRowContext(ctx, existsQ, t.ID, t.OwnerID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	if !validID(id) || !validID(ownerID) {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *PostgresRepository) CountByStatus(ctx context.Context, ownerID string) (map[Status]int, error) {
	out := map[Status]int{}
	if !validID(ownerID) {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE owner_id = $1 GROUP BY status`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s Status
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountOverdue(ctx context.Context, ownerID string, now time.Time) (int, error) {
	if !validID(ownerID) {
		return 0, nil
	}
	const q = `
SELECT count(*) FROM tasks
WHERE owner_id = $1 AND status <> 'done' AND due_at IS NOT NULL AND due_at < $2
`
	var n int
	err := r.db.QueryRowContext(ctx, q, ownerID, now).Scan(&n)
	return n, err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
