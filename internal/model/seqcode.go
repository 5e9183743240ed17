package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the canonical date format for journey_date, driver_set_date
// and batch windows.
const DateLayout = "2006-01-02"

// SeqRouteCode builds the join key shared by the materializer, the
// synchronizer and the scan classifier. Every producer of the key must go
// through this function.
func SeqRouteCode(seq int, routeCode string) string {
	return fmt.Sprintf("%d-%s", seq, routeCode)
}

var routeDateFragment = regexp.MustCompile(`^(.*)-(\d{2})(\d{2})$`)

// ParseScanRoute splits an uploaded route value into the bare route code and
// the upload date. Scanners append a -MMDD fragment to the route
// (e.g. "W12-0115"); the year comes from the signing time. Without a
// fragment the signing time's own date is the upload date.
func ParseScanRoute(route string, completeTime time.Time) (code string, uploadDate string) {
	route = strings.TrimSpace(route)
	if m := routeDateFragment.FindStringSubmatch(route); m != nil {
		mm, dd := atoi2(m[2]), atoi2(m[3])
		if mm >= 1 && mm <= 12 && dd >= 1 && dd <= 31 {
			t := time.Date(completeTime.Year(), time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
			return m[1], t.Format(DateLayout)
		}
	}
	return route, completeTime.Format(DateLayout)
}

func atoi2(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

var completeTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	DateLayout,
}

// ParseCompleteTime accepts the signing-time formats seen in scan exports.
func ParseCompleteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty complete time")
	}
	for _, layout := range completeTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable complete time %q", s)
}

// ValidDate reports whether s is a canonical YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
