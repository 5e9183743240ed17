package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"routepay/internal/auth"
	"routepay/internal/metrics"
	"routepay/internal/model"
	"routepay/internal/scanfile"
	"routepay/internal/store"
)

// RoutesHandler handles /v1/routes
func (s *Server) RoutesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		routes, err := s.Store.ListRoutes(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": routes})
	case http.MethodPost:
		if _, ok := s.requireWriter(w, r); !ok {
			return
		}
		var in model.Route
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateRoute(in); err != nil {
			writeStoreError(w, r, err)
			return
		}
		out, err := s.Store.CreateRoute(r.Context(), in)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
	}
}

// DriversHandler handles /v1/drivers
func (s *Server) DriversHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		drivers, err := s.Store.ListDrivers(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": drivers})
	case http.MethodPost:
		if _, ok := s.requireWriter(w, r); !ok {
			return
		}
		var in model.Driver
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateDriver(in); err != nil {
			writeStoreError(w, r, err)
			return
		}
		out, err := s.Store.CreateDriver(r.Context(), in)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
	}
}

// JourneysHandler handles /v1/journeys
func (s *Server) JourneysHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listJourneys(w, r)
	case http.MethodPost:
		s.createJourney(w, r)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
	}
}

func (s *Server) listJourneys(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	q := r.URL.Query()
	if err := validateDateFilters(q.Get("from"), q.Get("to")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	f := store.JourneyFilter{
		DriverID: q.Get("driverId"),
		RouteID:  q.Get("routeId"),
		City:     q.Get("city"),
		DateFrom: q.Get("from"),
		DateTo:   q.Get("to"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	// Drivers only see their own journeys; managers are pinned to their city.
	switch p.Role {
	case auth.RoleDriver:
		if p.DriverID == "" {
			writeProblem(w, http.StatusForbidden, "Forbidden", "driver token carries no driver id", r.URL.Path)
			return
		}
		f.DriverID = p.DriverID
	case auth.RoleManager:
		if p.City != "" {
			f.City = p.City
		}
	}
	items, err := s.Store.ListJourneys(r.Context(), f)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) createJourney(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	var in model.JourneyIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateJourneyIn(in); err != nil {
		writeStoreError(w, r, err)
		return
	}
	out, err := s.Store.CreateJourney(r.Context(), in)
	if err != nil {
		s.publishConflict(err, in.RouteID, in.JourneyDate)
		writeStoreError(w, r, err)
		return
	}
	metrics.JourneysCreated.Inc()
	s.publish("journeys", "journey.created", map[string]any{
		"journeyId": out.ID, "driverId": out.DriverID, "routeId": out.RouteID,
		"journeyDate": out.JourneyDate, "startSeq": out.StartSeq, "endSeq": out.EndSeq,
	})
	writeJSON(w, http.StatusCreated, out)
}

// JourneyByIDHandler handles /v1/journeys/{id} and /v1/journeys/{id}/deliveries
func (s *Server) JourneyByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/journeys/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not found", "", r.URL.Path)
		return
	}
	if sub == "deliveries" {
		s.listDeliveries(w, r, id)
		return
	}
	if sub != "" {
		writeProblem(w, http.StatusNotFound, "Not found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.getJourney(w, r, id)
	case http.MethodPatch, http.MethodPut:
		s.updateJourney(w, r, id)
	case http.MethodDelete:
		s.deleteJourney(w, r, id)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
	}
}

// publishConflict emits a journey.conflict event when a write was rejected
// for range overlap, so dispatch dashboards see contention live.
func (s *Server) publishConflict(err error, routeID, journeyDate string) {
	var ce *store.ConflictError
	if !errors.As(err, &ce) {
		return
	}
	if routeID == "" {
		routeID = ce.RouteID
	}
	if journeyDate == "" {
		journeyDate = ce.JourneyDate
	}
	s.publish("journeys", "journey.conflict", map[string]any{
		"routeId": routeID, "journeyDate": journeyDate, "conflicts": ce.Conflicts,
	})
}

// canReadJourney scopes reads: drivers see only their own journeys.
func canReadJourney(p auth.Principal, j model.Journey) bool {
	if p.Role == auth.RoleDriver {
		return p.DriverID != "" && p.DriverID == j.DriverID
	}
	return true
}

func (s *Server) getJourney(w http.ResponseWriter, r *http.Request, id string) {
	j, err := s.Store.GetJourney(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !canReadJourney(s.getPrincipal(r), j) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) updateJourney(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	var upd model.JourneyUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateJourneyUpdate(upd); err != nil {
		writeStoreError(w, r, err)
		return
	}
	out, err := s.Store.UpdateJourney(r.Context(), id, upd)
	if err != nil {
		s.publishConflict(err, upd.RouteID, "")
		writeStoreError(w, r, err)
		return
	}
	s.publish("journeys", "journey.updated", map[string]any{
		"journeyId": out.ID, "startSeq": out.StartSeq, "endSeq": out.EndSeq,
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteJourney(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	if err := s.Store.DeleteJourney(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.publish("journeys", "journey.deleted", map[string]any{"journeyId": id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDeliveries(w http.ResponseWriter, r *http.Request, journeyID string) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
		return
	}
	j, err := s.Store.GetJourney(r.Context(), journeyID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !canReadJourney(s.getPrincipal(r), j) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "", r.URL.Path)
		return
	}
	items, err := s.Store.ListDeliveries(r.Context(), journeyID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// dailyBatchBody decodes the upload: multipart xlsx under "file", or a JSON
// body {"rows": [...]}.
func dailyBatchBody(r *http.Request) ([]model.DailyScanRow, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return scanfile.ReadDaily(f)
	}
	var body struct {
		Rows []model.DailyScanRow `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Rows, nil
}

func weeklyBatchBody(r *http.Request) ([]model.WeeklyRow, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return scanfile.ReadWeekly(f)
	}
	var body struct {
		Rows []model.WeeklyRow `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Rows, nil
}

// DailyBatchHandler handles POST /v1/batches/daily
func (s *Server) DailyBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
		return
	}
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	if !s.checkIngestRate(w, r) {
		return
	}
	rows, err := dailyBatchBody(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Unreadable batch", err.Error(), r.URL.Path)
		return
	}
	sum, err := s.Store.IngestDaily(r.Context(), rows)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	metrics.IngestRows.WithLabelValues("daily", "processed").Add(float64(sum.Processed))
	metrics.IngestRows.WithLabelValues("daily", "skipped").Add(float64(sum.Skipped))
	metrics.DeliveriesClassified.WithLabelValues(string(model.ResultNoScanned)).Add(float64(sum.NoScanned))
	metrics.DeliveriesClassified.WithLabelValues(string(model.ResultFailedAttempt)).Add(float64(sum.FailedAttempt))
	metrics.DeliveriesClassified.WithLabelValues(string(model.ResultFirstStop)).Add(float64(sum.FirstStop))
	metrics.DeliveriesClassified.WithLabelValues(string(model.ResultDoubleStop)).Add(float64(sum.DoubleStop))
	log.Info().Int("processed", sum.Processed).Int("skipped", sum.Skipped).
		Int("merged", sum.Merged).Int("journeysUpdated", sum.JourneysUpdate).
		Str("windowStart", sum.WindowStart).Str("windowEnd", sum.WindowEnd).
		Msg("daily batch ingested")
	s.publish("ingest", "ingest.completed", map[string]any{
		"kind": "daily", "processed": sum.Processed, "skipped": sum.Skipped,
		"windowStart": sum.WindowStart, "windowEnd": sum.WindowEnd,
	})
	s.Notifier.Emit(r.Context(), "daily.ingested", sum)
	writeJSON(w, http.StatusOK, sum)
}

// WeeklyBatchHandler handles POST /v1/batches/weekly
func (s *Server) WeeklyBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
		return
	}
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	if !s.checkIngestRate(w, r) {
		return
	}
	rows, err := weeklyBatchBody(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Unreadable batch", err.Error(), r.URL.Path)
		return
	}
	sum, err := s.Store.IngestWeekly(r.Context(), rows)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	metrics.IngestRows.WithLabelValues("weekly", "processed").Add(float64(sum.Processed))
	metrics.IngestRows.WithLabelValues("weekly", "skipped").Add(float64(sum.Skipped))
	log.Info().Int("processed", sum.Processed).Int("skipped", sum.Skipped).
		Msg("weekly batch ingested")
	s.publish("ingest", "ingest.completed", map[string]any{
		"kind": "weekly", "processed": sum.Processed, "skipped": sum.Skipped,
	})
	s.Notifier.Emit(r.Context(), "weekly.ingested", sum)
	writeJSON(w, http.StatusOK, sum)
}

// WeeklyTotalsHandler handles GET /v1/weekly-totals
func (s *Server) WeeklyTotalsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
		return
	}
	q := r.URL.Query()
	if err := validateDateFilters(q.Get("from"), q.Get("to")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	items, err := s.Store.ListWeeklyTotals(r.Context(), q.Get("driverId"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// PaymentSummaryHandler handles GET /v1/payments/summary
func (s *Server) PaymentSummaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	q := r.URL.Query()
	if err := validateDateFilters(q.Get("from"), q.Get("to")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	driverID := q.Get("driverId")
	if p.Role == auth.RoleDriver {
		if p.DriverID == "" {
			writeProblem(w, http.StatusForbidden, "Forbidden", "driver token carries no driver id", r.URL.Path)
			return
		}
		driverID = p.DriverID
	}
	lines, err := s.Store.PaymentSummary(r.Context(), driverID, q.Get("from"), q.Get("to"), s.Rates)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lines, "rates": s.Rates})
}

// AggregateHandler handles POST /v1/admin/aggregate: a manual re-run of the
// guarded count roll-up, for operators recovering from a bad batch.
func (s *Server) AggregateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "", r.URL.Path)
		return
	}
	if p := s.getPrincipal(r); p.Role != auth.RoleAdmin {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin role required", r.URL.Path)
		return
	}
	n, err := s.Store.AggregateCounts(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journeysUpdated": n})
}

// HealthHandler handles /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler handles /readyz
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.ListRoutes(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
