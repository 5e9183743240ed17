package api

import (
	"fmt"
	"sort"
	"strings"

	"routepay/internal/model"
)

// ValidationError collects per-field messages for a 400 response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func validateRange(f fieldErrors, start, end int) {
	if start < 1 {
		f["startSeq"] = "must be >= 1"
	}
	if end < start {
		f["endSeq"] = "must be >= startSeq"
	}
}

func validateJourneyIn(in model.JourneyIn) error {
	f := fieldErrors{}
	if strings.TrimSpace(in.DriverID) == "" {
		f["driverId"] = "required"
	}
	if strings.TrimSpace(in.RouteID) == "" {
		f["routeId"] = "required"
	}
	if !model.ValidDate(in.JourneyDate) {
		f["journeyDate"] = "must be YYYY-MM-DD"
	}
	validateRange(f, in.StartSeq, in.EndSeq)
	return f.err()
}

func validateJourneyUpdate(upd model.JourneyUpdate) error {
	f := fieldErrors{}
	validateRange(f, upd.StartSeq, upd.EndSeq)
	return f.err()
}

func validateRoute(r model.Route) error {
	f := fieldErrors{}
	if strings.TrimSpace(r.Code) == "" {
		f["code"] = "required"
	}
	return f.err()
}

func validateDriver(d model.Driver) error {
	f := fieldErrors{}
	if strings.TrimSpace(d.Code) == "" {
		f["code"] = "required"
	}
	return f.err()
}

// validateDateFilters checks optional from/to query params.
func validateDateFilters(from, to string) error {
	f := fieldErrors{}
	if from != "" && !model.ValidDate(from) {
		f["from"] = "must be YYYY-MM-DD"
	}
	if to != "" && !model.ValidDate(to) {
		f["to"] = "must be YYYY-MM-DD"
	}
	if from != "" && to != "" && from > to {
		f["to"] = "must not precede from"
	}
	return f.err()
}
