package database

import (
	"context"
	"fmt"

	"letsconnect/internal/config"
)

// Service is the connection handle shared by the repositories. Concrete
// drivers also implement MongoService or SQLService.
type Service interface {
	Health() map[string]string
	Driver() string
	Close() error
}

// New connects to the store selected by cfg.DBDriver.
func New(ctx context.Context, cfg config.Config) (Service, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverPostgres:
		return NewSQL(ctx, DialectPostgres, cfg.DatabaseURL)
	case config.DriverSQLite:
		return NewSQL(ctx, DialectSQLite, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}
