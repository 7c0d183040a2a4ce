package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"letsconnect/internal/clock"
	"letsconnect/internal/middlewares"
	"letsconnect/internal/models"
	"letsconnect/internal/services"
	"letsconnect/internal/session"
	"letsconnect/internal/utils"
)

type AuthHandler struct {
	authService services.AuthService
	otpService  services.OTPService
	sessions    *session.Holder
	clock       clock.Clock
}

func NewAuthHandler(authService services.AuthService, otpService services.OTPService, sessions *session.Holder, clk clock.Clock) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		otpService:  otpService,
		sessions:    sessions,
		clock:       clk,
	}
}

type cooldownBody struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// statusFor maps a service error onto an HTTP status code.
func statusFor(err error) int {
	var cooldown *services.CooldownError
	switch {
	case errors.As(err, &cooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrAlreadyUsed), errors.Is(err, services.ErrRevoked),
		errors.Is(err, services.ErrConcurrentIssue):
		return http.StatusConflict
	case errors.Is(err, services.ErrDispatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sendServiceError(w http.ResponseWriter, err error) {
	var cooldown *services.CooldownError
	if errors.As(err, &cooldown) {
		w.Header().Set("Retry-After", strconv.Itoa(cooldown.Seconds()))
		utils.RespondWithJSON(w, http.StatusTooManyRequests, cooldownBody{
			OK:         false,
			Message:    services.Message(err),
			RetryAfter: cooldown.Seconds(),
		})
		return
	}
	utils.SendJSONError(w, services.Message(err), statusFor(err))
}

func (a *AuthHandler) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := a.sessions.Load(r)
	if err != nil {
		log.Error().Err(err).Msg("Could not load session")
		utils.SendJSONError(w, "Could not load your session. Please try again.", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (a *AuthHandler) saveSession(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("Could not save session")
		utils.SendJSONError(w, "Could not save your session. Please try again.", http.StatusInternalServerError)
		return false
	}
	return true
}

// Login checks the password and, on success, emails a code and opens the
// OTP stage of the session.
func (a *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Login
	if !utils.DecodeAndValidate(w, r, &creds) {
		return
	}

	identity, err := a.authService.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	issued, err := a.otpService.Issue(r.Context(), identity.Email)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	sess.BeginOTPStage(identity.Email, issued.SessionToken)
	if !a.saveSession(w, r, sess) {
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.OTPChallenge{
		OK:           true,
		Message:      "OTP sent to your email. Please check your inbox.",
		Email:        identity.Email,
		SessionToken: issued.SessionToken,
		ExpiresAt:    issued.ExpiresAt,
	})
}

// otpTarget prefers explicit values and falls back to the session's OTP stage.
func otpTarget(sess *session.Session, email, sessionToken string) (string, string, bool) {
	if email != "" && sessionToken != "" {
		return email, sessionToken, true
	}
	stagedEmail, stagedToken, ok := sess.OTPStage()
	if !ok {
		return "", "", false
	}
	if email == "" {
		email = stagedEmail
	}
	if sessionToken == "" {
		sessionToken = stagedToken
	}
	return email, sessionToken, true
}

func (a *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}

	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	email, token, ok := otpTarget(sess, req.Email, req.SessionToken)
	if !ok {
		utils.SendJSONError(w, "No OTP login in progress. Please log in again.", http.StatusBadRequest)
		return
	}

	identity, err := a.otpService.Verify(r.Context(), email, token, req.Code)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	bearer, expiresAt, err := a.authService.IssueToken(identity)
	if err != nil {
		utils.SendJSONError(w, "Could not complete login. Please try again.", http.StatusInternalServerError)
		return
	}

	sess.Establish(*identity, a.clock.Now())
	if !a.saveSession(w, r, sess) {
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.LoginResult{
		OK:             true,
		Message:        fmt.Sprintf("OTP verified successfully. Welcome %s!", identity.Name),
		Token:          bearer,
		TokenExpiresAt: expiresAt,
		Identity:       identity.Public(),
	})
}

// ResendOTP only serves a browser whose session already passed the password
// step. The target email always comes from that session.
func (a *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	email, _, ok := sess.OTPStage()
	if !ok {
		utils.SendJSONError(w, "No OTP login in progress. Please log in again.", http.StatusBadRequest)
		return
	}

	issued, err := a.otpService.Resend(r.Context(), email)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sess.BeginOTPStage(email, issued.SessionToken)
	if !a.saveSession(w, r, sess) {
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.OTPChallenge{
		OK:           true,
		Message:      "A new OTP has been sent to your email.",
		Email:        email,
		SessionToken: issued.SessionToken,
		ExpiresAt:    issued.ExpiresAt,
	})
}

func (a *AuthHandler) OTPStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	email, token, ok := otpTarget(sess, q.Get("email"), q.Get("session_token"))
	if !ok {
		utils.SendJSONError(w, "No OTP login in progress. Please log in again.", http.StatusBadRequest)
		return
	}

	st, err := a.otpService.Status(r.Context(), email, token)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.OTPStatusResponse{
		OK:               true,
		Status:           st.Status,
		ExpiresAt:        st.ExpiresAt,
		RemainingSeconds: st.RemainingSeconds,
	})
}

func (a *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.loadSession(w, r)
	if !ok {
		return
	}

	var email, token string
	if current := sess.Current(); current != nil {
		email = current.Email
	} else {
		email, token, _ = sess.OTPStage()
	}
	a.authService.Logout(r.Context(), email, token)

	sess.Terminate()
	if !a.saveSession(w, r, sess) {
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "You have been logged out.",
	})
}

func (a *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middlewares.IdentityFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Please log in to continue.", http.StatusUnauthorized)
		return
	}

	resp := map[string]interface{}{
		"ok":       true,
		"identity": identity.Public(),
	}
	if sess, err := a.sessions.Load(r); err == nil && sess.IsAuthenticated() {
		resp["authenticated_at"] = sess.AuthenticatedAt()
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
