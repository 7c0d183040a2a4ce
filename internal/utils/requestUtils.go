package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	OK      bool              `json:"ok"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// RespondWithJSON writes payload as JSON with the given status code.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// SendJSONError writes the {ok:false, message} failure body.
func SendJSONError(w http.ResponseWriter, message string, code int) {
	RespondWithJSON(w, code, errorBody{OK: false, Message: message})
}

// SendValidationError writes a 400 with per-field messages.
func SendValidationError(w http.ResponseWriter, fields map[string]string) {
	RespondWithJSON(w, http.StatusBadRequest, errorBody{OK: false, Message: "invalid request", Fields: fields})
}

// DecodeAndValidate decodes a JSON body into dst and runs struct validation.
// It writes the error response itself and reports false when the handler
// should stop.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			SendJSONError(w, "request body is required", http.StatusBadRequest)
			return false
		}
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("Invalid request body")
		SendJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}

	if fields := ValidateStruct(dst); fields != nil {
		SendValidationError(w, fields)
		return false
	}
	return true
}
