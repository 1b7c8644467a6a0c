package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamfaces/teamfaces/internal/models"
)

// PostgresStore persists the team, members, invite codes and activity in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const teamColumns = `name, description, COALESCE(logo_url, ''), admin_id,
	allow_self_register, require_approval, theme, created_at, updated_at`

func scanTeam(row pgx.Row) (*models.Team, error) {
	var t models.Team
	err := row.Scan(&t.Name, &t.Description, &t.LogoURL, &t.AdminID,
		&t.Settings.AllowSelfRegister, &t.Settings.RequireApproval, &t.Settings.Theme,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) GetTeam(ctx context.Context) (*models.Team, error) {
	q := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return scanTeam(s.pool.QueryRow(ctx, q, models.DefaultTeamID))
}

func (s *PostgresStore) CreateTeam(ctx context.Context, t *models.Team) error {
	const q = `INSERT INTO teams (id, name, description, logo_url, admin_id,
			allow_self_register, require_approval, theme, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $9)
		ON CONFLICT (id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, q, models.DefaultTeamID, t.Name, t.Description, t.LogoURL, t.AdminID,
		t.Settings.AllowSelfRegister, t.Settings.RequireApproval, t.Settings.Theme, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	t.UpdatedAt = t.CreatedAt
	return nil
}

func (s *PostgresStore) UpdateTeam(ctx context.Context, f TeamFields, now time.Time) (*models.Team, error) {
	var selfRegister, approval *bool
	var theme *string
	if f.Settings != nil {
		selfRegister, approval, theme = &f.Settings.AllowSelfRegister, &f.Settings.RequireApproval, &f.Settings.Theme
	}
	q := `UPDATE teams SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			logo_url = COALESCE($4, logo_url),
			allow_self_register = COALESCE($5, allow_self_register),
			require_approval = COALESCE($6, require_approval),
			theme = COALESCE($7, theme),
			updated_at = $8
		WHERE id = $1
		RETURNING ` + teamColumns
	return scanTeam(s.pool.QueryRow(ctx, q, models.DefaultTeamID, f.Name, f.Description, f.LogoURL,
		selfRegister, approval, theme, now))
}

const memberColumns = `id, name, email, role, status, status_message, schedule,
	COALESCE(photo_url, ''), last_active, created_at`

func scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	var role, status string
	err := row.Scan(&m.ID, &m.Name, &m.Email, &role, &status, &m.StatusMessage, &m.Schedule,
		&m.PhotoURL, &m.LastActive, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	m.Status = models.Status(status)
	return &m, nil
}

func (s *PostgresStore) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	m, err := scanMember(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (s *PostgresStore) UpsertMember(ctx context.Context, id uuid.UUID, f MemberFields, now time.Time) (*models.Member, error) {
	var role, status *string
	if f.Role != nil {
		r := string(*f.Role)
		role = &r
	}
	if f.Status != nil {
		st := string(*f.Status)
		status = &st
	}
	q := `INSERT INTO members (id, name, email, role, status, status_message, schedule, photo_url, last_active, created_at, updated_at)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, 'member'), COALESCE($5, 'available'),
			COALESCE($6, ''), COALESCE($7, ''), $8, $9, $10, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE($2, members.name),
			email = COALESCE($3, members.email),
			role = COALESCE($4, members.role),
			status = COALESCE($5, members.status),
			status_message = COALESCE($6, members.status_message),
			schedule = COALESCE($7, members.schedule),
			photo_url = COALESCE($8, members.photo_url),
			last_active = COALESCE($9, members.last_active),
			updated_at = $10
		RETURNING ` + memberColumns
	m, err := scanMember(s.pool.QueryRow(ctx, q, id, f.Name, f.Email, role, status,
		f.StatusMessage, f.Schedule, f.PhotoURL, f.LastActive, now))
	if err != nil {
		return nil, fmt.Errorf("upsert member: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context) ([]models.Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members ORDER BY seq`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

func (s *PostgresStore) CountMembersActiveSince(ctx context.Context, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM members WHERE last_active >= $1`
	var n int
	err := s.pool.QueryRow(ctx, q, since).Scan(&n)
	return n, err
}

const inviteColumns = `code, created_by, created_at, expires_at, used, used_by, used_at`

func scanInvite(row pgx.Row) (*models.InviteCode, error) {
	var c models.InviteCode
	err := row.Scan(&c.Code, &c.CreatedBy, &c.CreatedAt, &c.ExpiresAt, &c.Used, &c.UsedBy, &c.UsedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateInviteCode(ctx context.Context, c *models.InviteCode) error {
	const q = `INSERT INTO invite_codes (code, created_by, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO NOTHING`
	tag, err := s.pool.Exec(ctx, q, c.Code, c.CreatedBy, c.CreatedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert invite code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) GetInviteCode(ctx context.Context, code string) (*models.InviteCode, error) {
	q := `SELECT ` + inviteColumns + ` FROM invite_codes WHERE code = $1`
	c, err := scanInvite(s.pool.QueryRow(ctx, q, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) ConsumeInviteCode(ctx context.Context, code string, userID uuid.UUID, now time.Time) (*models.InviteCode, error) {
	q := `UPDATE invite_codes SET used = TRUE, used_by = $2, used_at = $3
		WHERE code = $1 AND used = FALSE AND expires_at > $3
		RETURNING ` + inviteColumns
	c, err := scanInvite(s.pool.QueryRow(ctx, q, code, userID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidInvite
	}
	if err != nil {
		return nil, fmt.Errorf("consume invite code: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListActiveInviteCodes(ctx context.Context, now time.Time) ([]models.InviteCode, error) {
	q := `SELECT ` + inviteColumns + ` FROM invite_codes
		WHERE used = FALSE AND expires_at > $1
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.InviteCode
	for rows.Next() {
		c, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

func (s *PostgresStore) RecordActivity(ctx context.Context, a *models.Activity) error {
	const q = `INSERT INTO activity_logs (id, type, user_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, q, a.ID, string(a.Type), a.UserID, a.Message, a.Timestamp)
	return err
}

func (s *PostgresStore) RecentActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	const q = `SELECT id, type, user_id, message, created_at FROM activity_logs
		ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Activity
	for rows.Next() {
		var a models.Activity
		var typ string
		if err := rows.Scan(&a.ID, &typ, &a.UserID, &a.Message, &a.Timestamp); err != nil {
			return nil, err
		}
		a.Type = models.ActivityType(typ)
		list = append(list, a)
	}
	return list, rows.Err()
}
