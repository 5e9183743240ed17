package store

import (
	"context"

	"routepay/internal/model"
)

// JourneyFilter scopes ListJourneys. Empty fields are ignored. City filters
// through the journey's route; DriverID is how the HTTP layer pins drivers
// to their own journeys.
type JourneyFilter struct {
	DriverID string
	RouteID  string
	City     string
	DateFrom string
	DateTo   string
	Limit    int
}

// Store is the persistence interface used by the API server. Both
// implementations (Postgres, Memory) honor the same transactional
// semantics: conflict check + insert are one unit, sync is prune → re-point
// → fill atomically, and ingest is merge → reset → classify → aggregate
// atomically.
type Store interface {
	// Routes & drivers (thin wrappers; journeys join against them)
	CreateRoute(ctx context.Context, r model.Route) (model.Route, error)
	ListRoutes(ctx context.Context) ([]model.Route, error)
	CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error)
	ListDrivers(ctx context.Context) ([]model.Driver, error)

	// Journeys
	CreateJourney(ctx context.Context, in model.JourneyIn) (model.Journey, error)
	GetJourney(ctx context.Context, id string) (model.Journey, error)
	ListJourneys(ctx context.Context, f JourneyFilter) ([]model.Journey, error)
	UpdateJourney(ctx context.Context, id string, upd model.JourneyUpdate) (model.Journey, error)
	DeleteJourney(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, journeyID string) ([]model.Delivery, error)

	// Batch ingestion
	IngestDaily(ctx context.Context, rows []model.DailyScanRow) (model.IngestSummary, error)
	IngestWeekly(ctx context.Context, rows []model.WeeklyRow) (model.WeeklySummary, error)
	ListWeeklyTotals(ctx context.Context, driverCode, from, to string) ([]model.WeeklyTotal, error)

	// Aggregation & payments
	AggregateCounts(ctx context.Context) (int, error)
	PaymentSummary(ctx context.Context, driverID, from, to string, rates model.PayRates) ([]model.PaymentLine, error)
}
