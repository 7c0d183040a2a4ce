package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"letsconnect/internal/models"
)

// ActivityRepository appends to the coordinator audit trail.
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
}

type activityRepository struct {
	collection *mongo.Collection
}

func NewActivityRepository(db *mongo.Database) ActivityRepository {
	return &activityRepository{collection: db.Collection(activityCollection)}
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) (err error) {
	done := track("create", "activity")
	defer func() { done(err) }()

	if _, err = r.collection.InsertOne(ctx, activity); err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}
