package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"letsconnect/internal/utils"
)

// Recover turns a handler panic into a 500 JSON response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				log.Error().
					Interface("panic", rvr).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("Panic while serving request")

				utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
