package api

import (
	"net/http"

	"golang.org/x/time/rate"
)

// ingestLimiter throttles the batch upload endpoints. Uploads arrive from a
// handful of back-office operators, so a single limiter for the process is
// enough; it exists to keep a runaway upload script from hammering the
// ingest transaction.
type ingestLimiter struct {
	lim *rate.Limiter
}

func newIngestLimiter(rps float64, burst int) *ingestLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ingestLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// allow gates one request; a nil limiter admits everything.
func (l *ingestLimiter) allow() bool {
	return l == nil || l.lim.Allow()
}

func (s *Server) checkIngestRate(w http.ResponseWriter, r *http.Request) bool {
	if s.ingestLimiter.allow() {
		return true
	}
	writeProblem(w, http.StatusTooManyRequests, "Rate limited", "too many batch uploads; retry shortly", r.URL.Path)
	return false
}
