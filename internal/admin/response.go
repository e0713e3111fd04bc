package admin

import (
	"encoding/json"
	"net/http"
)

type responseWithReqID struct {
	http.ResponseWriter
	reqID  string
	status int
}

func (w *responseWithReqID) WriteHeader(code int) {
	if w.status == 0 && w.reqID != "" {
		w.Header().Set("X-Request-Id", w.reqID)
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWithReqID) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
