package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"letsconnect/internal/handlers"
	"letsconnect/internal/middlewares"
	"letsconnect/internal/utils"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()
	r.Use(middlewares.Instrument)
	setErrorHandlers(r)

	ch := handlers.NewCommonHandler(s.db)
	r.HandleFunc("/health", ch.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	setErrorHandlers(api)
	api.Use(s.limiter.Limit)
	s.registerAuthRoutes(api)

	return middlewares.Recover(middlewares.Cors(s.cfg.AllowedOrigins)(r))
}

// setErrorHandlers answers unmatched requests with JSON. Subrouters need
// their own copy, otherwise a method mismatch inside them surfaces as 404.
func setErrorHandlers(r *mux.Router) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSONError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	ah := handlers.NewAuthHandler(s.authService, s.otpService, s.sessions, s.clock)

	r.HandleFunc("/auth/login", ah.Login).Methods("POST")
	r.HandleFunc("/auth/otp/verify", ah.VerifyOTP).Methods("POST")
	r.HandleFunc("/auth/otp/resend", ah.ResendOTP).Methods("POST")
	r.HandleFunc("/auth/otp/status", ah.OTPStatus).Methods("GET")
	r.HandleFunc("/auth/logout", ah.Logout).Methods("POST")
	r.Handle("/me", s.auth.Require(http.HandlerFunc(ah.Me))).Methods("GET")
}
