package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"letsconnect/internal/models"
	"letsconnect/internal/session"
	"letsconnect/internal/utils"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext returns the coordinator attached by Authenticator.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*models.Identity)
	return identity, ok && identity != nil
}

func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Authenticator admits requests carrying an established session cookie or a
// bearer token issued after OTP verification.
type Authenticator struct {
	sessions  *session.Holder
	jwtSecret []byte
}

func NewAuthenticator(sessions *session.Holder, jwtSecret string) *Authenticator {
	return &Authenticator{sessions: sessions, jwtSecret: []byte(jwtSecret)}
}

func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, err := a.sessions.Load(r); err == nil && sess.IsAuthenticated() {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), sess.Current())))
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			utils.SendJSONError(w, "Please log in to continue.", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			utils.SendJSONError(w, "Invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseJWT(a.jwtSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			log.Debug().Err(err).Msg("Rejected bearer token")
			utils.SendJSONError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		identity := &models.Identity{ID: claims.ID, Email: claims.Email}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
