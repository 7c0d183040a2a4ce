package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoService interface {
	Service
	Client() *mongo.Client
	Database() *mongo.Database
}

type mongoService struct {
	db     *mongo.Client
	dbName string
}

func NewMongo(ctx context.Context, uri, dbName string) (MongoService, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info().Str("database", dbName).Msg("Connected to MongoDB")
	return &mongoService{db: client, dbName: dbName}, nil
}

func (s *mongoService) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := s.db.Ping(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("Database health check failed")
		return map[string]string{
			"message": "db down",
			"driver":  s.Driver(),
			"error":   err.Error(),
		}
	}

	return map[string]string{
		"message": "It's healthy",
		"driver":  s.Driver(),
	}
}

func (s *mongoService) Driver() string {
	return "mongo"
}

func (s *mongoService) Client() *mongo.Client {
	return s.db
}

func (s *mongoService) Database() *mongo.Database {
	return s.db.Database(s.dbName)
}

func (s *mongoService) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.db.Disconnect(ctx)
}
