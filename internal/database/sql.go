package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Rebind rewrites ? placeholders to $1..$n for Postgres. Queries must not
// contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type SQLService interface {
	Service
	DB() *sql.DB
	Dialect() Dialect
}

type sqlService struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL opens a Postgres (pgx) or SQLite (modernc) database and applies the
// embedded migrations for that dialect.
func NewSQL(ctx context.Context, dialect Dialect, dsn string) (SQLService, error) {
	var driverName string
	switch dialect {
	case DialectPostgres:
		driverName = "pgx"
	case DialectSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is empty", dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// One writer keeps ":memory:" databases on a single connection and
		// avoids SQLITE_BUSY on files.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	s := &sqlService{db: db, dialect: dialect}
	if err := s.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply %s migrations: %w", dialect, err)
	}

	log.Info().Str("dialect", string(dialect)).Msg("Connected to SQL database")
	return s, nil
}

// ApplyMigrations runs every pending up migration from the embedded files.
func (s *sqlService) ApplyMigrations() error {
	var (
		driver database.Driver
		err    error
	)
	switch s.dialect {
	case DialectPostgres:
		driver, err = migratepgx.WithInstance(s.db, &migratepgx.Config{})
	case DialectSQLite:
		driver, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	}
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "migrations/"+string(s.dialect))
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", source, string(s.dialect), driver)
	if err != nil {
		return err
	}

	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *sqlService) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Database health check failed")
		return map[string]string{
			"message": "db down",
			"driver":  s.Driver(),
			"error":   err.Error(),
		}
	}

	stats := s.db.Stats()
	return map[string]string{
		"message":          "It's healthy",
		"driver":           s.Driver(),
		"open_connections": strconv.Itoa(stats.OpenConnections),
		"in_use":           strconv.Itoa(stats.InUse),
		"idle":             strconv.Itoa(stats.Idle),
	}
}

func (s *sqlService) Driver() string {
	return string(s.dialect)
}

func (s *sqlService) DB() *sql.DB {
	return s.db
}

func (s *sqlService) Dialect() Dialect {
	return s.dialect
}

func (s *sqlService) Close() error {
	return s.db.Close()
}
