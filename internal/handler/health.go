package handler

import "net/http"

// HandleRoot is the liveness check.
//
// HTTP: GET /
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Candle Clicker server is online!"))
}
