package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"letsconnect/internal/database"
	"letsconnect/internal/models"
)

// Timestamps are stored as unix milliseconds so both dialects compare them
// numerically.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

type sqlUserRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQLUserRepository(db *sql.DB, dialect database.Dialect) UserRepository {
	return &sqlUserRepository{db: db, dialect: dialect}
}

func (r *sqlUserRepository) FindByEmail(ctx context.Context, email string) (_ *models.Identity, err error) {
	done := track("findByEmail", "user")
	defer func() { done(err) }()

	query := r.dialect.Rebind(`
		SELECT id, name, email, phone, roll_number, password_hash, created_at
		FROM coord_details
		WHERE email = ?`)

	var (
		id        int64
		createdAt int64
		identity  models.Identity
	)
	err = r.db.QueryRowContext(ctx, query, email).Scan(
		&id,
		&identity.Name,
		&identity.Email,
		&identity.Phone,
		&identity.RollNumber,
		&identity.PasswordHash,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to find coordinator by email")
		return nil, fmt.Errorf("failed to find coordinator: %w", err)
	}

	identity.ID = strconv.FormatInt(id, 10)
	identity.CreatedAt = fromMillis(createdAt)
	return &identity, nil
}

type sqlOTPRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQLOTPRepository(db *sql.DB, dialect database.Dialect) OTPRepository {
	return &sqlOTPRepository{db: db, dialect: dialect}
}

func (r *sqlOTPRepository) Create(ctx context.Context, rec *models.OTPRecord) (err error) {
	done := track("create", "otp")
	defer func() { done(err) }()

	query := r.dialect.Rebind(`
		INSERT INTO otp_records (email, session_token, code, status, issued_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err = r.db.ExecContext(ctx, query,
		rec.Email,
		rec.SessionToken,
		rec.Code,
		string(rec.Status),
		toMillis(rec.IssuedAt),
		toMillis(rec.ExpiresAt),
		toMillis(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		log.Error().Err(err).Str("email", rec.Email).Msg("Failed to insert OTP record")
		return fmt.Errorf("failed to insert otp record: %w", err)
	}
	return nil
}

func (r *sqlOTPRepository) FindByEmailAndToken(ctx context.Context, email, sessionToken string) (_ *models.OTPRecord, err error) {
	done := track("findByEmailAndToken", "otp")
	defer func() { done(err) }()

	query := r.dialect.Rebind(`
		SELECT email, session_token, code, status, issued_at, expires_at, verified_at, updated_at
		FROM otp_records
		WHERE email = ? AND session_token = ?`)

	var (
		rec                            models.OTPRecord
		status                         string
		issuedAt, expiresAt, updatedAt int64
		verifiedAt                     sql.NullInt64
	)
	err = r.db.QueryRowContext(ctx, query, email, sessionToken).Scan(
		&rec.Email,
		&rec.SessionToken,
		&rec.Code,
		&status,
		&issuedAt,
		&expiresAt,
		&verifiedAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find otp record: %w", err)
	}

	rec.Status = models.OTPStatus(status)
	rec.IssuedAt = fromMillis(issuedAt)
	rec.ExpiresAt = fromMillis(expiresAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	if verifiedAt.Valid {
		t := fromMillis(verifiedAt.Int64)
		rec.VerifiedAt = &t
	}
	return &rec, nil
}

func (r *sqlOTPRepository) TransitionStatus(ctx context.Context, email, sessionToken string, from, to models.OTPStatus, at time.Time) (_ bool, err error) {
	done := track("transitionStatus", "otp")
	defer func() { done(err) }()

	var verifiedAt sql.NullInt64
	if to == models.OTPStatusVerified {
		verifiedAt = sql.NullInt64{Int64: toMillis(at), Valid: true}
	}

	query := r.dialect.Rebind(`
		UPDATE otp_records
		SET status = ?, updated_at = ?, verified_at = COALESCE(CAST(? AS BIGINT), verified_at)
		WHERE email = ? AND session_token = ? AND status = ?`)

	res, err := r.db.ExecContext(ctx, query, string(to), toMillis(at), verifiedAt, email, sessionToken, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update otp status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *sqlOTPRepository) RevokePending(ctx context.Context, email string, at time.Time) (_ int64, err error) {
	done := track("revokePending", "otp")
	defer func() { done(err) }()

	query := r.dialect.Rebind(`
		UPDATE otp_records
		SET status = 'revoked', updated_at = ?
		WHERE email = ? AND status = 'pending'`)

	res, err := r.db.ExecContext(ctx, query, toMillis(at), email)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke pending otps: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqlOTPRepository) ClearExpiredUnverified(ctx context.Context, now time.Time) (_ int64, err error) {
	done := track("clearExpiredUnverified", "otp")
	defer func() { done(err) }()

	query := r.dialect.Rebind(`
		UPDATE otp_records
		SET code = '',
		    status = CASE WHEN status = 'pending' THEN 'expired' ELSE status END,
		    updated_at = ?
		WHERE expires_at <= ?
		  AND status <> 'verified'
		  AND (code <> '' OR status = 'pending')`)

	ms := toMillis(now)
	res, err := r.db.ExecContext(ctx, query, ms, ms)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired otps: %w", err)
	}
	return res.RowsAffected()
}

type sqlActivityRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQLActivityRepository(db *sql.DB, dialect database.Dialect) ActivityRepository {
	return &sqlActivityRepository{db: db, dialect: dialect}
}

func (r *sqlActivityRepository) Create(ctx context.Context, activity *models.Activity) (err error) {
	done := track("create", "activity")
	defer func() { done(err) }()

	query := r.dialect.Rebind(`
		INSERT INTO user_logs (email, session_token, activity, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`)

	_, err = r.db.ExecContext(ctx, query,
		activity.Email,
		activity.SessionToken,
		string(activity.Type),
		activity.Detail,
		toMillis(activity.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}
