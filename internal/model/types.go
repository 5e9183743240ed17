package model

// Core domain types shared by the stores and the HTTP layer.

// FinalResult is the closed outcome enumeration for a delivery row.
// A row starts at not_assigned and ends each ingestion cycle in exactly one
// of the terminal states; the next upload resets it before recomputing.
type FinalResult string

const (
	ResultNotAssigned   FinalResult = "not_assigned"
	ResultNoScanned     FinalResult = "no_scanned"
	ResultFailedAttempt FinalResult = "failed_attempt"
	ResultFirstStop     FinalResult = "first_stop"
	ResultDoubleStop    FinalResult = "double_stop"
)

type Route struct {
	ID   string `json:"id"`
	City string `json:"city,omitempty"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

type Driver struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name,omitempty"`
	City    string `json:"city,omitempty"`
	RouteID string `json:"routeId,omitempty"`
}

// Journey is one driver's sequence-range allocation on a route for a date.
// The aggregate columns are recomputed once per ingestion cycle; the
// CountsAggregated guard keeps a second aggregation pass from double
// counting until the next upload resets it.
type Journey struct {
	ID          string `json:"id"`
	DriverID    string `json:"driverId"`
	RouteID     string `json:"routeId"`
	JourneyDate string `json:"journeyDate"`
	StartSeq    int    `json:"startSeq"`
	EndSeq      int    `json:"endSeq"`
	Packages    int    `json:"packages"`

	NoScanned        int  `json:"noScanned"`
	FailedAttempt    int  `json:"failedAttempt"`
	DS               int  `json:"ds"`
	FirstStop        int  `json:"firstStop"`
	Delivered        int  `json:"delivered"`
	CountsAggregated bool `json:"countsAggregated"`
}

// Delivery is the per-sequence-number row owned by a journey.
// Address/recipient/status arrive from scan uploads; a row never touched by
// a batch keeps the empty placeholders and classifies as no_scanned.
type Delivery struct {
	ID             string      `json:"id"`
	JourneyID      string      `json:"journeyId"`
	DriverID       string      `json:"driverId"`
	RouteID        string      `json:"routeId"`
	SequenceNumber int         `json:"sequenceNumber"`
	SeqRouteCode   string      `json:"seqRouteCode"`
	DriverSetDate  string      `json:"driverSetDate"`
	Address        string      `json:"address,omitempty"`
	AddressUnit    string      `json:"addressUnit,omitempty"`
	RecipientName  string      `json:"recipientName,omitempty"`
	Status         string      `json:"status,omitempty"`
	FinalResult    FinalResult `json:"finalResult"`
}

// JourneyIn is the creation payload.
type JourneyIn struct {
	DriverID    string `json:"driverId"`
	RouteID     string `json:"routeId"`
	JourneyDate string `json:"journeyDate"`
	StartSeq    int    `json:"startSeq"`
	EndSeq      int    `json:"endSeq"`
}

// JourneyUpdate carries an admin edit. The journey date is immutable; range,
// driver and route may all change in one edit.
type JourneyUpdate struct {
	DriverID string `json:"driverId"`
	RouteID  string `json:"routeId"`
	StartSeq int    `json:"startSeq"`
	EndSeq   int    `json:"endSeq"`
}

// ConflictInfo describes one overlapping journey, enough for an operator to
// pick a free range.
type ConflictInfo struct {
	JourneyID string `json:"journeyId"`
	DriverID  string `json:"driverId"`
	StartSeq  int    `json:"startSeq"`
	EndSeq    int    `json:"endSeq"`
}

// DailyScanRow is one pre-parsed row of a daily scan upload.
type DailyScanRow struct {
	Route          string `json:"route"`
	Sequence       int    `json:"sequence"`
	Address        string `json:"address"`
	AddressUnit    string `json:"unit,omitempty"`
	Zipcode        string `json:"zipcode,omitempty"`
	TrackingNo     string `json:"trackingNo,omitempty"`
	RecipientName  string `json:"recipientName,omitempty"`
	RecipientPhone string `json:"recipientPhone,omitempty"`
	Status         string `json:"status,omitempty"`
	CompleteTime   string `json:"completeTime,omitempty"`
}

// WeeklyRow is one pre-aggregated row of a weekly settlement upload.
type WeeklyRow struct {
	CourierName string `json:"courierName,omitempty"`
	DriverCode  string `json:"driverId"`
	Route       string `json:"route"`
	Date        string `json:"date"`
	Deliveries  int    `json:"deliveries"`
	FirstStop   int    `json:"firstStop"`
	DoubleStop  int    `json:"doubleStop"`
}

// WeeklyTotal is the additive accumulation row keyed by
// (driver code, date, route).
type WeeklyTotal struct {
	DriverCode      string `json:"driverId"`
	DelDate         string `json:"delDate"`
	DelRoute        string `json:"delRoute"`
	TotalDeliveries int    `json:"totalDeliveries"`
	FS              int    `json:"fs"`
	DS              int    `json:"ds"`
}

// IngestSummary reports one daily ingestion cycle.
type IngestSummary struct {
	Processed      int    `json:"processed"`
	Skipped        int    `json:"skipped"`
	Merged         int    `json:"merged"`
	NoScanned      int    `json:"noScanned"`
	FailedAttempt  int    `json:"failedAttempt"`
	FirstStop      int    `json:"firstStop"`
	DoubleStop     int    `json:"doubleStop"`
	JourneysUpdate int    `json:"journeysUpdated"`
	WindowStart    string `json:"windowStart,omitempty"`
	WindowEnd      string `json:"windowEnd,omitempty"`
}

// WeeklySummary reports one weekly ingestion cycle.
type WeeklySummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// PayRates are the configured per-stop payment rates.
type PayRates struct {
	FirstStop  float64 `json:"firstStop"`
	DoubleStop float64 `json:"doubleStop"`
}

// PaymentLine is one derived per-driver/date payment record.
type PaymentLine struct {
	DriverID      string  `json:"driverId"`
	DriverName    string  `json:"driverName,omitempty"`
	Date          string  `json:"date"`
	Delivered     int     `json:"delivered"`
	FirstStop     int     `json:"firstStop"`
	DS            int     `json:"ds"`
	NoScanned     int     `json:"noScanned"`
	FailedAttempt int     `json:"failedAttempt"`
	Amount        float64 `json:"amount"`
}
