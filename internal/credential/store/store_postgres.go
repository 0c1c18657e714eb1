package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cdobey/legitify/internal/credential/models"
	"github.com/cdobey/legitify/internal/sentinel"
	id "github.com/cdobey/legitify/pkg/domain"
)

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed credential store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `
	id, holder_id, issuer_user_id, issuer_org_id,
	title, description, type, attributes, file_bytes, content_hash,
	status, created_at, ledger_timestamp
`

func (s *PostgresStore) Save(ctx context.Context, credential *models.Credential) error {
	attributes, err := json.Marshal(credential.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		string(credential.ID),
		uuid.UUID(credential.HolderID),
		uuid.UUID(credential.IssuerUserID),
		uuid.UUID(credential.IssuerOrgID),
		credential.Title,
		credential.Description,
		credential.Type,
		attributes,
		credential.FileBytes,
		credential.ContentHash,
		string(credential.Status),
		credential.CreatedAt,
		credential.LedgerTimestamp,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	credential, err := scanCredential(s.db.QueryRowContext(ctx, query, string(credentialID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return credential, nil
}

func (s *PostgresStore) ListByHolderAndStatus(ctx context.Context, holderID id.UserID, status models.Status) ([]*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE holder_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
	`
	return s.list(ctx, query, uuid.UUID(holderID), string(status))
}

func (s *PostgresStore) ListByHolder(ctx context.Context, holderID id.UserID) ([]*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE holder_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return s.list(ctx, query, uuid.UUID(holderID))
}

// UpdateStatus performs the compare-and-swap transition. The WHERE clause on
// status is what makes concurrent double-accepts lose cleanly.
func (s *PostgresStore) UpdateStatus(ctx context.Context, credentialID id.CredentialID, expected, next models.Status) error {
	query := `UPDATE credentials SET status = $1 WHERE id = $2 AND status = $3`
	res, err := s.db.ExecContext(ctx, query, string(next), string(credentialID), string(expected))
	if err != nil {
		return fmt.Errorf("update credential status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential status: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish "missing" from "lost the precondition race".
	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM credentials WHERE id = $1`, string(credentialID)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update credential status: %w", err)
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Credential, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*models.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return credentials, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var (
		credential   models.Credential
		credentialID string
		holderID     uuid.UUID
		issuerUserID uuid.UUID
		issuerOrgID  uuid.UUID
		attributes   []byte
		status       string
		ledgerTS     sql.NullTime
	)
	err := row.Scan(
		&credentialID,
		&holderID,
		&issuerUserID,
		&issuerOrgID,
		&credential.Title,
		&credential.Description,
		&credential.Type,
		&attributes,
		&credential.FileBytes,
		&credential.ContentHash,
		&status,
		&credential.CreatedAt,
		&ledgerTS,
	)
	if err != nil {
		return nil, err
	}
	credential.ID = id.CredentialID(credentialID)
	credential.HolderID = id.UserID(holderID)
	credential.IssuerUserID = id.UserID(issuerUserID)
	credential.IssuerOrgID = id.OrgID(issuerOrgID)
	credential.Status = models.Status(status)
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &credential.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	if ledgerTS.Valid {
		ts := ledgerTS.Time
		credential.LedgerTimestamp = &ts
	}
	return &credential, nil
}
