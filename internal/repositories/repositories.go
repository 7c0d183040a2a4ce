package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"letsconnect/internal/database"
	"letsconnect/internal/utils"
)

var (
	// ErrNotFound is returned when no row or document matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("record conflicts with an existing one")
)

// track records query metrics. A miss is a successful query.
func track(queryType, repository string) func(err error) {
	done := utils.TrackQuery(queryType, repository)
	return func(err error) {
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		done(err)
	}
}

const (
	identitiesCollection = "coord_details"
	otpCollection        = "otp_records"
	activityCollection   = "user_logs"
)

// Repositories groups the stores built on one database handle.
type Repositories struct {
	Users    UserRepository
	OTPs     OTPRepository
	Activity ActivityRepository
}

// New picks the repository implementation matching the database driver.
func New(ctx context.Context, db database.Service) (*Repositories, error) {
	switch conn := db.(type) {
	case database.MongoService:
		mdb := conn.Database()
		if err := EnsureMongoIndexes(ctx, mdb); err != nil {
			return nil, err
		}
		return &Repositories{
			Users:    NewUserRepository(mdb),
			OTPs:     NewOTPRepository(mdb),
			Activity: NewActivityRepository(mdb),
		}, nil
	case database.SQLService:
		return &Repositories{
			Users:    NewSQLUserRepository(conn.DB(), conn.Dialect()),
			OTPs:     NewSQLOTPRepository(conn.DB(), conn.Dialect()),
			Activity: NewSQLActivityRepository(conn.DB(), conn.Dialect()),
		}, nil
	default:
		return nil, fmt.Errorf("no repositories for database driver %q", db.Driver())
	}
}

// EnsureMongoIndexes creates the unique and lookup indexes the OTP flow
// relies on. Creating an existing index is a no-op.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		identitiesCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email_unique").SetUnique(true),
			},
		},
		otpCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}, {Key: "session_token", Value: 1}},
				Options: options.Index().SetName("email_session_token_unique").SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().
					SetName("one_pending_per_email").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "pending"}),
			},
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetName("expires_at"),
			},
		},
		activityCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("email_created_at"),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
