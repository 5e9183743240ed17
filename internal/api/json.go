package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"routepay/internal/metrics"
	"routepay/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Conflicts any    `json:"conflicts,omitempty"`
	Fields    any    `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeStoreError maps the store error taxonomy onto problem responses:
// validation 400, not found 404, range conflict 409 (with the overlapping
// ranges in the body), integrity failures 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, Problem{
			Type: "about:blank", Title: "Validation failed", Status: http.StatusBadRequest,
			Detail: ve.Error(), Instance: r.URL.Path, Fields: ve.Fields,
		})
		return
	}
	var ce *store.ConflictError
	if errors.As(err, &ce) {
		metrics.SequenceConflicts.Inc()
		writeJSON(w, http.StatusConflict, Problem{
			Type: "about:blank", Title: "Sequence range conflict", Status: http.StatusConflict,
			Detail: ce.Error(), Instance: r.URL.Path, Conflicts: ce.Conflicts,
		})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not found", "", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), r.URL.Path)
}
