package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"taskhub/pkg/utils"
)

// PostgresRepository writes to the audit_events table. It only ever INSERTs.
type PostgresRepository struct {
	db utils.Querier
}

func NewPostgresRepository(db utils.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e Event) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("audit: encode metadata: %w", err)
		}
		metadata = b
	}

	const q = `
INSERT INTO audit_events (id, user_id, type, ip_address, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.UserID,
		e.Type,
		e.IPAddress,
		e.Message,
		metadata,
		e.CreatedAt,
	)
	return err
}
