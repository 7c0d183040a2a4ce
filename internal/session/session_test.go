package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letsconnect/internal/models"
)

const testKey = "0123456789abcdef0123456789abcdef"

// roundTrip saves sess and returns a request carrying the resulting cookie.
func roundTrip(t *testing.T, h *Holder, r *http.Request, sess *Session) (*http.Request, *http.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sess.Save(r, rec))

	res := rec.Result()
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range res.Cookies() {
		next.AddCookie(c)
	}
	return next, res
}

func TestOTPStageRoundTrip(t *testing.T) {
	h := NewHolder(testKey, false)
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)

	sess, err := h.Load(r)
	require.NoError(t, err)
	_, _, ok := sess.OTPStage()
	assert.False(t, ok)

	sess.BeginOTPStage("alice@example.com", "01HQ0000000000000000000000")
	next, _ := roundTrip(t, h, r, sess)

	loaded, err := h.Load(next)
	require.NoError(t, err)
	email, token, ok := loaded.OTPStage()
	assert.True(t, ok)
	assert.Equal(t, "alice@example.com", email)
	assert.Equal(t, "01HQ0000000000000000000000", token)
	assert.False(t, loaded.IsAuthenticated())
}

func TestEstablishAndTerminate(t *testing.T) {
	h := NewHolder(testKey, false)
	r := httptest.NewRequest(http.MethodPost, "/api/auth/otp/verify", nil)
	at := time.Date(2024, 3, 1, 9, 31, 0, 0, time.UTC)

	sess, err := h.Load(r)
	require.NoError(t, err)
	sess.BeginOTPStage("alice@example.com", "tok")
	sess.Establish(models.Identity{ID: "1", Name: "Alice", Email: "alice@example.com", RollNumber: "CS101"}, at)

	next, _ := roundTrip(t, h, r, sess)
	loaded, err := h.Load(next)
	require.NoError(t, err)

	require.True(t, loaded.IsAuthenticated())
	current := loaded.Current()
	require.NotNil(t, current)
	assert.Equal(t, "Alice", current.Name)
	assert.Equal(t, "CS101", current.RollNumber)
	assert.True(t, loaded.AuthenticatedAt().Equal(at))
	_, _, staged := loaded.OTPStage()
	assert.False(t, staged)

	loaded.Terminate()
	assert.False(t, loaded.IsAuthenticated())
	assert.Nil(t, loaded.Current())
	assert.True(t, loaded.AuthenticatedAt().IsZero())

	_, res := roundTrip(t, h, next, loaded)
	cookies := res.Cookies()
	require.NotEmpty(t, cookies)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestTamperedCookieYieldsFreshSession(t *testing.T) {
	h := NewHolder(testKey, false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultName, Value: "garbage"})

	sess, err := h.Load(r)
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated())
}

func TestSessionsFromOtherKeysAreIgnored(t *testing.T) {
	other := NewHolder("ffffffffffffffffffffffffffffffff", false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := other.Load(r)
	require.NoError(t, err)
	sess.Establish(models.Identity{ID: "1", Email: "alice@example.com"}, time.Now())
	next, _ := roundTrip(t, other, r, sess)

	loaded, err := NewHolder(testKey, false).Load(next)
	require.NoError(t, err)
	assert.False(t, loaded.IsAuthenticated())
}
