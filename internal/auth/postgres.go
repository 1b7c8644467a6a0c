package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamfaces/teamfaces/internal/models"
)

// PostgresUserStore handles user persistence.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore creates a Postgres-backed user store.
func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

const userColumns = `id, email, password_hash, name, role, COALESCE(photo_url, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &role, &u.PhotoURL, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new user and fills its generated fields.
func (s *PostgresUserStore) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (email, password_hash, name, role, photo_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, u.Email, u.Password, u.Name, string(u.Role), u.PhotoURL).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns a user by ID.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.pool.QueryRow(ctx, q, id))
}

// GetByEmail returns a user by email.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.pool.QueryRow(ctx, q, email))
}

// Update merges fields into the user.
func (s *PostgresUserStore) Update(ctx context.Context, id uuid.UUID, f UserFields) (*models.User, error) {
	q := `UPDATE users SET
			email = COALESCE($2, email),
			password_hash = COALESCE($3, password_hash),
			name = COALESCE($4, name),
			photo_url = COALESCE($5, photo_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(s.pool.QueryRow(ctx, q, id, f.Email, f.PasswordHash, f.Name, f.PhotoURL))
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	return u, err
}

// Delete removes the user. Their member record goes with it.
func (s *PostgresUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
