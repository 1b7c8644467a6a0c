package emaillogs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamfaces/teamfaces/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record stores one delivery attempt.
func (r *Repository) Record(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (job_id, email_type, recipient_email, subject, status, attempt, sent_at, error_message)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, el.JobID, el.EmailType, el.RecipientEmail, el.Subject,
		el.Status, el.Attempt, el.SentAt, el.ErrorMessage).Scan(&el.ID, &el.CreatedAt)
}

// ListRecent returns the newest delivery attempts.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*models.EmailLog, error) {
	const q = `SELECT id, job_id, email_type, recipient_email, subject, status, attempt, sent_at, error_message, created_at
		FROM email_logs
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.JobID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status,
			&el.Attempt, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
