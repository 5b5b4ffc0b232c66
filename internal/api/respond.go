package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// RespondWithJSON writes payload as a JSON response with the given status.
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// WriteJSONError writes {"error": msg} with the given status.
func WriteJSONError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}
