package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/auth"
	"gorm.io/gorm"
)

// CredentialRepository reads the login columns of the users table.
type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{
		db: db,
	}
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	query := `SELECT id, password_hash, is_active FROM users WHERE email = ?`
	return r.scan(ctx, query, email)
}

func (r *CredentialRepository) GetByID(ctx context.Context, userID string) (*auth.Credentials, error) {
	query := `SELECT id, password_hash, is_active FROM users WHERE id = ?`
	return r.scan(ctx, query, userID)
}

func (r *CredentialRepository) scan(ctx context.Context, query string, arg string) (*auth.Credentials, error) {
	var creds auth.Credentials

	row := r.db.WithContext(ctx).Raw(query, arg).Row()
	if err := row.Scan(&creds.UserID, &creds.PasswordHash, &creds.IsActive); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return &creds, nil
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
