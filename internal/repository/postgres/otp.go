package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/neosign/identity/pkg/errors"

	"github.com/neosign/identity/internal/domain"
	"github.com/neosign/identity/pkg/database"
)

// OTPRepository implements repository.OTPRepository using PostgreSQL.
type OTPRepository struct {
	db database.DBTX
}

// NewOTPRepository creates a new PostgreSQL-backed OTP repository.
func NewOTPRepository(db database.DBTX) *OTPRepository {
	return &OTPRepository{db: db}
}

// Create stores a newly issued code. Existing rows for the same user are
// left untouched; several unexpired codes may coexist.
func (r *OTPRepository) Create(ctx context.Context, o *domain.OTP) error {
	query := `
		INSERT INTO otps (id, user_id, code, purpose, expires_at, user_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		o.ID,
		o.UserID,
		o.Code,
		o.Purpose,
		o.ExpiresAt,
		o.UserSeen,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}

	return nil
}

// Find returns the most recently issued record for the user and code.
// Expiry and the seen flag are not filtered here; the service decides
// usability so the distinction stays in one place.
func (r *OTPRepository) Find(ctx context.Context, userID string, code int) (*domain.OTP, error) {
	query := `
		SELECT id, user_id, code, purpose, expires_at, user_seen, created_at
		FROM otps
		WHERE user_id = $1 AND code = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var o domain.OTP
	err := r.db.QueryRow(ctx, query, userID, code).Scan(
		&o.ID,
		&o.UserID,
		&o.Code,
		&o.Purpose,
		&o.ExpiresAt,
		&o.UserSeen,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan otp: %w", err)
	}

	return &o, nil
}

// MarkSeen records consumption of the code.
func (r *OTPRepository) MarkSeen(ctx context.Context, id string) error {
	query := `UPDATE otps SET user_seen = true WHERE id = $1`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark otp seen: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("otp not found")
	}

	return nil
}
