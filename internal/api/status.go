package api

import (
	"encoding/json"
	"net/http"

	"github.com/chtzvt/forestbatch/internal/batcher"
)

// RegisterStatusHandlers wires the read-only job-progress endpoint into
// mux, reporting b's current Snapshot.
func RegisterStatusHandlers(mux *http.ServeMux, b *batcher.Batcher) {
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if b == nil {
			jsonError(w, http.StatusServiceUnavailable, "no batcher attached")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(b.Snapshot())
	})
}
