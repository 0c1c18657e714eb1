package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cdobey/legitify/internal/affiliation/models"
	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
)

// PostgresStore is a PostgreSQL-backed implementation of Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, affiliation *models.Affiliation) error {
	const query = `
		INSERT INTO affiliations (id, user_id, org_id, scope, status, initiated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		affiliation.ID.String(),
		affiliation.UserID.String(),
		affiliation.OrgID.String(),
		string(affiliation.Scope),
		string(affiliation.Status),
		string(affiliation.InitiatedBy),
		affiliation.CreatedAt,
		affiliation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert affiliation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert affiliation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, affiliationID id.AffiliationID) (*models.Affiliation, error) {
	const query = `
		SELECT id, user_id, org_id, scope, status, initiated_by, created_at, updated_at
		FROM affiliations
		WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, affiliationID.String())
	affiliation, err := scanAffiliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select affiliation: %w", err)
	}
	return affiliation, nil
}

func (s *PostgresStore) FindNonTerminal(ctx context.Context, userID id.UserID, orgID id.OrgID, scope models.Scope) (*models.Affiliation, error) {
	const query = `
		SELECT id, user_id, org_id, scope, status, initiated_by, created_at, updated_at
		FROM affiliations
		WHERE user_id = $1 AND org_id = $2 AND scope = $3 AND status != $4
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, userID.String(), orgID.String(), string(scope), string(models.StatusRejected))
	affiliation, err := scanAffiliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select non-terminal affiliation: %w", err)
	}
	return affiliation, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, affiliationID id.AffiliationID, expected, next models.Status, updatedAt time.Time) error {
	const query = `
		UPDATE affiliations
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := s.db.ExecContext(ctx, query, string(next), updatedAt, affiliationID.String(), string(expected))
	if err != nil {
		return fmt.Errorf("update affiliation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update affiliation rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing row from a lost compare-and-set race.
		if _, findErr := s.FindByID(ctx, affiliationID); findErr != nil {
			return findErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Affiliation, error) {
	const query = `
		SELECT id, user_id, org_id, scope, status, initiated_by, created_at, updated_at
		FROM affiliations
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`

	return s.queryAffiliations(ctx, query, userID.String())
}

func (s *PostgresStore) ListByOrgAndStatus(ctx context.Context, orgID id.OrgID, status models.Status) ([]*models.Affiliation, error) {
	const query = `
		SELECT id, user_id, org_id, scope, status, initiated_by, created_at, updated_at
		FROM affiliations
		WHERE org_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC`

	return s.queryAffiliations(ctx, query, orgID.String(), string(status))
}

func (s *PostgresStore) queryAffiliations(ctx context.Context, query string, args ...any) ([]*models.Affiliation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select affiliations: %w", err)
	}
	defer rows.Close()

	var result []*models.Affiliation
	for rows.Next() {
		affiliation, err := scanAffiliation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan affiliation: %w", err)
		}
		result = append(result, affiliation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate affiliations: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAffiliation(row rowScanner) (*models.Affiliation, error) {
	var (
		affiliation models.Affiliation
		rawID       string
		rawUserID   string
		rawOrgID    string
		rawScope    string
		rawStatus   string
		rawParty    string
		updatedAt   sql.NullTime
	)
	if err := row.Scan(&rawID, &rawUserID, &rawOrgID, &rawScope, &rawStatus, &rawParty, &affiliation.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}

	affiliationID, err := id.ParseAffiliationID(rawID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(rawUserID)
	if err != nil {
		return nil, err
	}
	orgID, err := id.ParseOrgID(rawOrgID)
	if err != nil {
		return nil, err
	}

	affiliation.ID = affiliationID
	affiliation.UserID = userID
	affiliation.OrgID = orgID
	affiliation.Scope = models.Scope(rawScope)
	affiliation.Status = models.Status(rawStatus)
	affiliation.InitiatedBy = models.Party(rawParty)
	if updatedAt.Valid {
		ts := updatedAt.Time
		affiliation.UpdatedAt = &ts
	}
	return &affiliation, nil
}
