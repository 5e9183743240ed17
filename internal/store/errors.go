package store

import (
	"errors"
	"fmt"
	"strings"

	"routepay/internal/model"
)

var ErrNotFound = errors.New("not found")

// ConflictError reports the journeys whose sequence ranges overlap a
// candidate. Callers surface the literal ranges so an operator can pick a
// free one; the store never auto-adjusts.
type ConflictError struct {
	RouteID     string
	JourneyDate string
	Conflicts   []model.ConflictInfo
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("[%d,%d] (journey %s, driver %s)", c.StartSeq, c.EndSeq, c.JourneyID, c.DriverID))
	}
	return fmt.Sprintf("sequence range conflict on route %s for %s: %s", e.RouteID, e.JourneyDate, strings.Join(parts, ", "))
}

// IntegrityError marks a multi-step transactional unit that failed partway.
// The enclosing transaction has already been rolled back when it surfaces;
// Step names the step that failed for operator diagnosis.
type IntegrityError struct {
	Op   string
	Step string
	Err  error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: step %s failed: %v", e.Op, e.Step, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

func integrity(op, step string, err error) error {
	return &IntegrityError{Op: op, Step: step, Err: err}
}
