package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"letsconnect/internal/models"
)

// OTPRepository persists issued codes. Status changes go through
// conditional updates so that concurrent callers cannot both win.
type OTPRepository interface {
	Create(ctx context.Context, rec *models.OTPRecord) error
	FindByEmailAndToken(ctx context.Context, email, sessionToken string) (*models.OTPRecord, error)
	// TransitionStatus moves the record from one status to another and
	// reports whether this call performed the change.
	TransitionStatus(ctx context.Context, email, sessionToken string, from, to models.OTPStatus, at time.Time) (bool, error)
	// RevokePending marks every pending record for email as revoked.
	RevokePending(ctx context.Context, email string, at time.Time) (int64, error)
	// ClearExpiredUnverified erases the code of every record past its expiry
	// that was never verified. Pending ones become expired.
	ClearExpiredUnverified(ctx context.Context, now time.Time) (int64, error)
}

type otpRepository struct {
	collection *mongo.Collection
}

func NewOTPRepository(db *mongo.Database) OTPRepository {
	return &otpRepository{collection: db.Collection(otpCollection)}
}

func (r *otpRepository) Create(ctx context.Context, rec *models.OTPRecord) (err error) {
	done := track("create", "otp")
	defer func() { done(err) }()

	if _, err = r.collection.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		log.Error().Err(err).Str("email", rec.Email).Msg("Failed to insert OTP record")
		return fmt.Errorf("failed to insert otp record: %w", err)
	}
	return nil
}

func (r *otpRepository) FindByEmailAndToken(ctx context.Context, email, sessionToken string) (_ *models.OTPRecord, err error) {
	done := track("findByEmailAndToken", "otp")
	defer func() { done(err) }()

	var rec models.OTPRecord
	err = r.collection.FindOne(ctx, bson.M{"email": email, "session_token": sessionToken}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find otp record: %w", err)
	}
	normalizeTimes(&rec)
	return &rec, nil
}

func (r *otpRepository) TransitionStatus(ctx context.Context, email, sessionToken string, from, to models.OTPStatus, at time.Time) (_ bool, err error) {
	done := track("transitionStatus", "otp")
	defer func() { done(err) }()

	set := bson.M{"status": to, "updated_at": at}
	if to == models.OTPStatusVerified {
		set["verified_at"] = at
	}
	filter := bson.M{"email": email, "session_token": sessionToken, "status": from}

	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to update otp status: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *otpRepository) RevokePending(ctx context.Context, email string, at time.Time) (_ int64, err error) {
	done := track("revokePending", "otp")
	defer func() { done(err) }()

	filter := bson.M{"email": email, "status": models.OTPStatusPending}
	update := bson.M{"$set": bson.M{"status": models.OTPStatusRevoked, "updated_at": at}}
	res, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke pending otps: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *otpRepository) ClearExpiredUnverified(ctx context.Context, now time.Time) (_ int64, err error) {
	done := track("clearExpiredUnverified", "otp")
	defer func() { done(err) }()

	expired := bson.M{"$lte": now}
	pending := bson.M{"expires_at": expired, "status": models.OTPStatusPending}
	res, err := r.collection.UpdateMany(ctx, pending, bson.M{"$set": bson.M{
		"status":     models.OTPStatusExpired,
		"code":       "",
		"updated_at": now,
	}})
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending otps: %w", err)
	}
	cleared := res.ModifiedCount

	stale := bson.M{
		"expires_at": expired,
		"status":     bson.M{"$in": bson.A{models.OTPStatusExpired, models.OTPStatusRevoked}},
		"code":       bson.M{"$ne": ""},
	}
	res, err = r.collection.UpdateMany(ctx, stale, bson.M{"$set": bson.M{"code": "", "updated_at": now}})
	if err != nil {
		return cleared, fmt.Errorf("failed to clear stale otp codes: %w", err)
	}
	return cleared + res.ModifiedCount, nil
}

func normalizeTimes(rec *models.OTPRecord) {
	rec.IssuedAt = rec.IssuedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if rec.VerifiedAt != nil {
		t := rec.VerifiedAt.UTC()
		rec.VerifiedAt = &t
	}
}
