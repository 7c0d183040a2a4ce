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

// UserRepository reads coordinator identities.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
}

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{collection: db.Collection(identitiesCollection)}
}

// identityDocument tolerates ObjectID, string or numeric _id values, since
// accounts are provisioned outside this service.
type identityDocument struct {
	ID           bson.RawValue `bson:"_id"`
	Name         string        `bson:"name"`
	Email        string        `bson:"email"`
	Phone        string        `bson:"phone,omitempty"`
	RollNumber   string        `bson:"roll_number,omitempty"`
	PasswordHash string        `bson:"password_hash"`
	CreatedAt    time.Time     `bson:"created_at,omitempty"`
}

func (d *identityDocument) toModel() *models.Identity {
	return &models.Identity{
		ID:           rawIDString(d.ID),
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		RollNumber:   d.RollNumber,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

func rawIDString(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if n, ok := v.Int64OK(); ok {
		return fmt.Sprintf("%d", n)
	}
	if n, ok := v.Int32OK(); ok {
		return fmt.Sprintf("%d", n)
	}
	return v.String()
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (_ *models.Identity, err error) {
	done := track("findByEmail", "user")
	defer func() { done(err) }()

	var doc identityDocument
	err = r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to find coordinator by email")
		return nil, fmt.Errorf("failed to find coordinator: %w", err)
	}
	return doc.toModel(), nil
}
