package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnthoniusHendriyanto/account-auth/internal/auth/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type OTPRepository struct {
	db DBTX
}

func NewPostgresOTPRepository(db DBTX) *OTPRepository {
	return &OTPRepository{db: db}
}

// Replace upserts on the (user_id, type) unique key, so a second Send for
// the same pair overwrites the live code instead of adding another row.
func (r *OTPRepository) Replace(ctx context.Context, otp *domain.OneTimeCode) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO one_time_codes (id, user_id, code, type, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, type) DO UPDATE
		SET id = EXCLUDED.id, code = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
	`, otp.ID, otp.UserID, otp.Code, string(otp.Type), otp.ExpiresAt, otp.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "one_time_codes_code_type_key" {
			return domain.ErrOtpCodeTaken
		}
		return fmt.Errorf("failed to store otp code: %w", err)
	}
	return nil
}

func (r *OTPRepository) FindByCodeAndType(ctx context.Context, code string, otpType domain.OTPType) (*domain.OneTimeCode, error) {
	var (
		otp domain.OneTimeCode
		typ string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, code, type, expires_at, created_at
		FROM one_time_codes
		WHERE code = $1 AND type = $2
		LIMIT 1;
	`, code, string(otpType)).Scan(&otp.ID, &otp.UserID, &otp.Code, &typ, &otp.ExpiresAt, &otp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get otp code: %w", err)
	}
	otp.Type = domain.OTPType(typ)
	return &otp, nil
}

func (r *OTPRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM one_time_codes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete otp code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OTPRepository) DeleteByUserAndType(ctx context.Context, userID string, otpType domain.OTPType) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM one_time_codes WHERE user_id = $1 AND type = $2
	`, userID, string(otpType))
	if err != nil {
		return fmt.Errorf("failed to invalidate otp codes: %w", err)
	}
	return nil
}

func (r *OTPRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM one_time_codes WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otp codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
