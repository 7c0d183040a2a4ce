package repositories

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.mongodb.org/mongo-driver/bson"

	"letsconnect/internal/database"
	"letsconnect/internal/models"
)

var base = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newSQLiteRepositories(t *testing.T) (*Repositories, database.SQLService) {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQL(ctx, database.DialectSQLite, filepath.Join(t.TempDir(), "otp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos, err := New(ctx, db)
	require.NoError(t, err)
	return repos, db
}

func pendingRecord(email, token, code string, issuedAt time.Time) *models.OTPRecord {
	return &models.OTPRecord{
		Email:        email,
		SessionToken: token,
		Code:         code,
		Status:       models.OTPStatusPending,
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt.Add(5 * time.Minute),
		UpdatedAt:    issuedAt,
	}
}

// testOTPRepository runs the behaviour shared by every store driver.
func testOTPRepository(t *testing.T, repo OTPRepository) {
	ctx := context.Background()

	t.Run("Create and Find", func(t *testing.T) {
		rec := pendingRecord("find@example.com", "tok-1", "123456", base)
		require.NoError(t, repo.Create(ctx, rec))

		got, err := repo.FindByEmailAndToken(ctx, "find@example.com", "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "123456", got.Code)
		assert.Equal(t, models.OTPStatusPending, got.Status)
		assert.True(t, got.IssuedAt.Equal(base))
		assert.Equal(t, 5*time.Minute, got.ExpiresAt.Sub(got.IssuedAt))
		assert.Nil(t, got.VerifiedAt)
	})

	t.Run("Find missing", func(t *testing.T) {
		_, err := repo.FindByEmailAndToken(ctx, "nobody@example.com", "tok")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Duplicate key conflicts", func(t *testing.T) {
		rec := pendingRecord("dup@example.com", "tok-dup", "111111", base)
		require.NoError(t, repo.Create(ctx, rec))
		assert.ErrorIs(t, repo.Create(ctx, rec), ErrConflict)
	})

	t.Run("Only one pending per email", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, pendingRecord("one@example.com", "tok-a", "111111", base)))
		err := repo.Create(ctx, pendingRecord("one@example.com", "tok-b", "222222", base))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("Transition happens once", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, pendingRecord("verify@example.com", "tok-v", "333333", base)))
		at := base.Add(time.Minute)

		ok, err := repo.TransitionStatus(ctx, "verify@example.com", "tok-v", models.OTPStatusPending, models.OTPStatusVerified, at)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.TransitionStatus(ctx, "verify@example.com", "tok-v", models.OTPStatusPending, models.OTPStatusVerified, at)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.FindByEmailAndToken(ctx, "verify@example.com", "tok-v")
		require.NoError(t, err)
		assert.Equal(t, models.OTPStatusVerified, got.Status)
		require.NotNil(t, got.VerifiedAt)
		assert.True(t, got.VerifiedAt.Equal(at))
	})

	t.Run("Concurrent transitions have one winner", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, pendingRecord("race@example.com", "tok-r", "444444", base)))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.TransitionStatus(ctx, "race@example.com", "tok-r", models.OTPStatusPending, models.OTPStatusVerified, base)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("Revoke pending", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, pendingRecord("revoke@example.com", "tok-old", "555555", base)))

		n, err := repo.RevokePending(ctx, "revoke@example.com", base.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		require.NoError(t, repo.Create(ctx, pendingRecord("revoke@example.com", "tok-new", "666666", base.Add(time.Second))))

		old, err := repo.FindByEmailAndToken(ctx, "revoke@example.com", "tok-old")
		require.NoError(t, err)
		assert.Equal(t, models.OTPStatusRevoked, old.Status)
	})

	t.Run("Sweep leaves verified records alone", func(t *testing.T) {
		issued := base.Add(-time.Hour)
		require.NoError(t, repo.Create(ctx, pendingRecord("sweep-done@example.com", "tok-s1", "777777", issued)))
		_, err := repo.TransitionStatus(ctx, "sweep-done@example.com", "tok-s1", models.OTPStatusPending, models.OTPStatusVerified, issued.Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, pendingRecord("sweep-stale@example.com", "tok-s2", "888888", issued)))
		require.NoError(t, repo.Create(ctx, pendingRecord("sweep-live@example.com", "tok-s3", "999999", base)))

		n, err := repo.ClearExpiredUnverified(ctx, base)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		done, err := repo.FindByEmailAndToken(ctx, "sweep-done@example.com", "tok-s1")
		require.NoError(t, err)
		assert.Equal(t, models.OTPStatusVerified, done.Status)
		assert.Equal(t, "777777", done.Code)

		stale, err := repo.FindByEmailAndToken(ctx, "sweep-stale@example.com", "tok-s2")
		require.NoError(t, err)
		assert.Equal(t, models.OTPStatusExpired, stale.Status)
		assert.Empty(t, stale.Code)

		live, err := repo.FindByEmailAndToken(ctx, "sweep-live@example.com", "tok-s3")
		require.NoError(t, err)
		assert.Equal(t, models.OTPStatusPending, live.Status)
		assert.Equal(t, "999999", live.Code)
	})
}

func TestSQLiteOTPRepository(t *testing.T) {
	repos, _ := newSQLiteRepositories(t)
	testOTPRepository(t, repos.OTPs)
}

func TestSQLiteUserRepository(t *testing.T) {
	repos, db := newSQLiteRepositories(t)
	ctx := context.Background()

	_, err := db.DB().ExecContext(ctx,
		`INSERT INTO coord_details (name, email, phone, roll_number, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"Alice", "alice@example.com", "9999999999", "CS101", "$2a$08$hash", base.UnixMilli())
	require.NoError(t, err)

	t.Run("Found", func(t *testing.T) {
		identity, err := repos.Users.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Alice", identity.Name)
		assert.Equal(t, "CS101", identity.RollNumber)
		assert.NotEmpty(t, identity.ID)
		assert.True(t, identity.CreatedAt.Equal(base))
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := repos.Users.FindByEmail(ctx, "bob@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteActivityRepository(t *testing.T) {
	repos, db := newSQLiteRepositories(t)
	ctx := context.Background()

	err := repos.Activity.Create(ctx, &models.Activity{
		Email:        "alice@example.com",
		SessionToken: "tok",
		Type:         models.ActivityOTPIssued,
		CreatedAt:    base,
	})
	require.NoError(t, err)

	var activity string
	err = db.DB().QueryRowContext(ctx, `SELECT activity FROM user_logs WHERE email = ?`, "alice@example.com").Scan(&activity)
	require.NoError(t, err)
	assert.Equal(t, "otp_issued", activity)
}

func TestMongoRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := database.NewMongo(ctx, uri, "letsconnect_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos, err := New(ctx, db)
	require.NoError(t, err)

	t.Run("OTP records", func(t *testing.T) {
		testOTPRepository(t, repos.OTPs)
	})

	t.Run("Find coordinator with string id", func(t *testing.T) {
		_, err := db.Database().Collection(identitiesCollection).InsertOne(ctx, bson.M{
			"_id":           "coord-7",
			"name":          "Alice",
			"email":         "alice@example.com",
			"password_hash": "$2a$08$hash",
		})
		require.NoError(t, err)

		identity, err := repos.Users.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "coord-7", identity.ID)
		assert.Equal(t, "Alice", identity.Name)

		_, err = repos.Users.FindByEmail(ctx, "bob@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Activity", func(t *testing.T) {
		require.NoError(t, repos.Activity.Create(ctx, &models.Activity{
			Email:     "alice@example.com",
			Type:      models.ActivityLogout,
			CreatedAt: base,
		}))
		n, err := db.Database().Collection(activityCollection).CountDocuments(ctx, bson.M{"email": "alice@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestPostgresOTPRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("letsconnect"),
		postgres.WithUsername("letsconnect"),
		postgres.WithPassword("letsconnect"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewSQL(ctx, database.DialectPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos, err := New(ctx, db)
	require.NoError(t, err)
	testOTPRepository(t, repos.OTPs)

	_, err = repos.Users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
