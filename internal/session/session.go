// Package session keeps the login flow state and the authenticated
// coordinator in a signed browser cookie.
package session

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"

	"letsconnect/internal/models"
)

const DefaultName = "letsconnect_session"

const (
	keyOTPStage        = "otp_stage"
	keyOTPEmail        = "otp_email"
	keyOTPSessionToken = "otp_session_token"
	keyLoggedIn        = "logged_in"
	keyUserID          = "user_id"
	keyUserName        = "user_name"
	keyUserEmail       = "user_email"
	keyUserPhone       = "user_phone"
	keyUserRollNumber  = "user_roll_number"
	keyAuthenticatedAt = "authenticated_at"
)

var otpKeys = []string{keyOTPStage, keyOTPEmail, keyOTPSessionToken}

var identityKeys = []string{
	keyLoggedIn,
	keyUserID,
	keyUserName,
	keyUserEmail,
	keyUserPhone,
	keyUserRollNumber,
	keyAuthenticatedAt,
}

// Holder loads and saves sessions from one cookie store.
type Holder struct {
	store sessions.Store
	name  string
}

// NewHolder signs cookies with key. The cookie lives for the browser session.
func NewHolder(key string, secure bool) *Holder {
	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Holder{store: store, name: DefaultName}
}

// Load returns the session for r. A cookie that fails to decode yields a
// fresh, empty session.
func (h *Holder) Load(r *http.Request) (*Session, error) {
	s, err := h.store.Get(r, h.name)
	if err != nil {
		if s == nil {
			return nil, err
		}
		log.Debug().Err(err).Msg("Discarding unreadable session cookie")
	}
	return &Session{raw: s}, nil
}

type Session struct {
	raw *sessions.Session
}

// BeginOTPStage remembers which issued code this browser is waiting on.
// Any previous login is dropped.
func (s *Session) BeginOTPStage(email, sessionToken string) {
	s.clear(identityKeys)
	s.raw.Values[keyOTPStage] = true
	s.raw.Values[keyOTPEmail] = email
	s.raw.Values[keyOTPSessionToken] = sessionToken
}

func (s *Session) OTPStage() (email, sessionToken string, ok bool) {
	if staged, _ := s.raw.Values[keyOTPStage].(bool); !staged {
		return "", "", false
	}
	email, _ = s.raw.Values[keyOTPEmail].(string)
	sessionToken, _ = s.raw.Values[keyOTPSessionToken].(string)
	return email, sessionToken, email != "" && sessionToken != ""
}

// Establish marks the session authenticated and ends the OTP stage.
func (s *Session) Establish(identity models.Identity, at time.Time) {
	s.clear(otpKeys)
	s.raw.Values[keyLoggedIn] = true
	s.raw.Values[keyUserID] = identity.ID
	s.raw.Values[keyUserName] = identity.Name
	s.raw.Values[keyUserEmail] = identity.Email
	s.raw.Values[keyUserPhone] = identity.Phone
	s.raw.Values[keyUserRollNumber] = identity.RollNumber
	s.raw.Values[keyAuthenticatedAt] = at.UTC().UnixMilli()
}

func (s *Session) IsAuthenticated() bool {
	loggedIn, _ := s.raw.Values[keyLoggedIn].(bool)
	return loggedIn
}

// Current returns the authenticated identity, or nil.
func (s *Session) Current() *models.Identity {
	if !s.IsAuthenticated() {
		return nil
	}
	str := func(key string) string {
		v, _ := s.raw.Values[key].(string)
		return v
	}
	return &models.Identity{
		ID:         str(keyUserID),
		Name:       str(keyUserName),
		Email:      str(keyUserEmail),
		Phone:      str(keyUserPhone),
		RollNumber: str(keyUserRollNumber),
	}
}

func (s *Session) AuthenticatedAt() time.Time {
	ms, ok := s.raw.Values[keyAuthenticatedAt].(int64)
	if !ok || !s.IsAuthenticated() {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Terminate drops every value and expires the cookie on the next Save.
func (s *Session) Terminate() {
	for k := range s.raw.Values {
		delete(s.raw.Values, k)
	}
	s.raw.Options.MaxAge = -1
}

func (s *Session) Save(r *http.Request, w http.ResponseWriter) error {
	return s.raw.Save(r, w)
}

func (s *Session) clear(keys []string) {
	for _, k := range keys {
		delete(s.raw.Values, k)
	}
}
