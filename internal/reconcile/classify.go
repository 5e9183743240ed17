package reconcile

import (
	"sort"
	"strings"

	"routepay/internal/model"
)

// IsFailureStatus reports whether a merged scan status is an explicit
// failure marker ("Failed", "Delivery failed", "FAIL - no access", ...).
func IsFailureStatus(status string) bool {
	return strings.Contains(strings.ToLower(status), "fail")
}

// Untouched reports whether a delivery row still carries the placeholder
// address/recipient values, i.e. no scan row from this batch merged into it.
func Untouched(d *model.Delivery) bool {
	return d.Address == "" && d.RecipientName == ""
}

// Classify assigns a final result to every delivery in rows, mutating them
// in place. Rows are expected to be freshly reset to not_assigned; running
// Classify twice over the same merged state yields identical assignments.
func Classify(rows []*model.Delivery) {
	var remaining []*model.Delivery
	for _, d := range rows {
		switch {
		case Untouched(d):
			d.FinalResult = model.ResultNoScanned
		case IsFailureStatus(d.Status):
			d.FinalResult = model.ResultFailedAttempt
		default:
			d.FinalResult = model.ResultNotAssigned
			remaining = append(remaining, d)
		}
	}
	classifyDuplicates(remaining)
}

// classifyDuplicates groups the still-unassigned rows by
// (driver, address, recipient, unit) and marks the first occurrence of each
// group first_stop and the rest double_stop. Order within a group is
// (address, sequence number): deterministic without relying on scan
// timestamps, which are absent on exactly the rows that need reclassifying.
func classifyDuplicates(rows []*model.Delivery) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Address != rows[j].Address {
			return rows[i].Address < rows[j].Address
		}
		return rows[i].SequenceNumber < rows[j].SequenceNumber
	})
	seen := map[string]bool{}
	for _, d := range rows {
		key := d.DriverID + "\x00" + d.Address + "\x00" + d.RecipientName + "\x00" + d.AddressUnit
		if seen[key] {
			d.FinalResult = model.ResultDoubleStop
		} else {
			seen[key] = true
			d.FinalResult = model.ResultFirstStop
		}
	}
}

// Counts is the per-journey roll-up of classified deliveries.
type Counts struct {
	NoScanned     int
	FailedAttempt int
	DS            int
	FirstStop     int
	Delivered     int
}

// Count tallies final results for one journey's rows.
// Delivered is first_stop + double_stop.
func Count(rows []*model.Delivery) Counts {
	var c Counts
	for _, d := range rows {
		switch d.FinalResult {
		case model.ResultNoScanned:
			c.NoScanned++
		case model.ResultFailedAttempt:
			c.FailedAttempt++
		case model.ResultFirstStop:
			c.FirstStop++
		case model.ResultDoubleStop:
			c.DS++
		}
	}
	c.Delivered = c.FirstStop + c.DS
	return c
}
