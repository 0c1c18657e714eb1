package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cdobey/legitify/internal/access/models"
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

func (s *PostgresStore) Save(ctx context.Context, request *models.AccessRequest) error {
	const query = `
		INSERT INTO access_requests (id, credential_id, verifier_id, status, requested_at, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		request.ID.String(),
		request.CredentialID.String(),
		request.VerifierID.String(),
		string(request.Status),
		request.RequestedAt,
		request.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("insert access request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert access request rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.AccessRequestID) (*models.AccessRequest, error) {
	const query = `
		SELECT id, credential_id, verifier_id, status, requested_at, granted_at
		FROM access_requests
		WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, requestID.String())
	request, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select access request: %w", err)
	}
	return request, nil
}

func (s *PostgresStore) FindNonTerminal(ctx context.Context, credentialID id.CredentialID, verifierID id.UserID) (*models.AccessRequest, error) {
	const query = `
		SELECT id, credential_id, verifier_id, status, requested_at, granted_at
		FROM access_requests
		WHERE credential_id = $1 AND verifier_id = $2 AND status != $3
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, credentialID.String(), verifierID.String(), string(models.StatusDenied))
	request, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select non-terminal access request: %w", err)
	}
	return request, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, requestID id.AccessRequestID, expected, next models.Status, grantedAt *time.Time) error {
	const query = `
		UPDATE access_requests
		SET status = $1, granted_at = COALESCE($2, granted_at)
		WHERE id = $3 AND status = $4`

	var granted *time.Time
	if next == models.StatusGranted {
		granted = grantedAt
	}
	result, err := s.db.ExecContext(ctx, query, string(next), granted, requestID.String(), string(expected))
	if err != nil {
		return fmt.Errorf("update access request status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update access request rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing row from a lost compare-and-set race.
		if _, findErr := s.FindByID(ctx, requestID); findErr != nil {
			return findErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListByVerifier(ctx context.Context, verifierID id.UserID) ([]*models.AccessRequest, error) {
	const query = `
		SELECT id, credential_id, verifier_id, status, requested_at, granted_at
		FROM access_requests
		WHERE verifier_id = $1
		ORDER BY requested_at ASC, id ASC`

	return s.queryRequests(ctx, query, verifierID.String())
}

func (s *PostgresStore) ListByCredentialAndStatus(ctx context.Context, credentialID id.CredentialID, status models.Status) ([]*models.AccessRequest, error) {
	const query = `
		SELECT id, credential_id, verifier_id, status, requested_at, granted_at
		FROM access_requests
		WHERE credential_id = $1 AND status = $2
		ORDER BY requested_at ASC, id ASC`

	return s.queryRequests(ctx, query, credentialID.String(), string(status))
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*models.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select access requests: %w", err)
	}
	defer rows.Close()

	var result []*models.AccessRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}
		result = append(result, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access requests: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.AccessRequest, error) {
	var (
		request         models.AccessRequest
		rawID           string
		rawCredentialID string
		rawVerifierID   string
		rawStatus       string
		grantedAt       sql.NullTime
	)
	if err := row.Scan(&rawID, &rawCredentialID, &rawVerifierID, &rawStatus, &request.RequestedAt, &grantedAt); err != nil {
		return nil, err
	}

	requestID, err := id.ParseAccessRequestID(rawID)
	if err != nil {
		return nil, err
	}
	credentialID, err := id.ParseCredentialID(rawCredentialID)
	if err != nil {
		return nil, err
	}
	verifierID, err := id.ParseUserID(rawVerifierID)
	if err != nil {
		return nil, err
	}

	request.ID = requestID
	request.CredentialID = credentialID
	request.VerifierID = verifierID
	request.Status = models.Status(rawStatus)
	if grantedAt.Valid {
		ts := grantedAt.Time
		request.GrantedAt = &ts
	}
	return &request, nil
}
