package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
)

// PostgresStore resolves directory records from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed directory store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, username, email, role, COALESCE(org_id, '00000000-0000-0000-0000-000000000000')
		FROM users
		WHERE lower(email) = lower($1)
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*User, error) {
	query := `
		SELECT id, username, email, role, COALESCE(org_id, '00000000-0000-0000-0000-000000000000')
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		userID uuid.UUID
		orgID  uuid.UUID
		user   User
		role   string
	)
	if err := row.Scan(&userID, &user.Username, &user.Email, &role, &orgID); err != nil {
		return nil, err
	}
	user.ID = id.UserID(userID)
	user.OrgID = id.OrgID(orgID)
	user.Role = Role(role)
	return &user, nil
}
