// Package scanfile reads the xlsx exports produced by the scanning devices
// and the weekly settlement sheets, turning them into batch rows.
package scanfile

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"routepay/internal/model"
)

// header aliases seen across scanner firmware versions; keys are normalized
// (lowercase, spaces and underscores stripped).
var dailyColumns = map[string]string{
	"route":          "route",
	"sequence":       "sequence",
	"sequenceno":     "sequence",
	"seq":            "sequence",
	"address":        "address",
	"unit":           "unit",
	"addressunit":    "unit",
	"zipcode":        "zipcode",
	"zip":            "zipcode",
	"trackingno":     "tracking",
	"trackingnumber": "tracking",
	"recipientname":  "recipient",
	"recipient":      "recipient",
	"recipientphone": "phone",
	"phone":          "phone",
	"status":         "status",
	"completetime":   "completetime",
	"signtime":       "completetime",
}

var weeklyColumns = map[string]string{
	"couriername":     "courier",
	"courier":         "courier",
	"driverid":        "driver",
	"drivercode":      "driver",
	"route":           "route",
	"date":            "date",
	"deldate":         "date",
	"deliveries":      "deliveries",
	"totaldeliveries": "deliveries",
	"firststop":       "firststop",
	"fs":              "firststop",
	"doublestop":      "doublestop",
	"ds":              "doublestop",
}

func normalize(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, "_", "")
	h = strings.ReplaceAll(h, "-", "")
	return h
}

// sheetRows opens the workbook and returns the first sheet's rows.
func sheetRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// headerIndex maps column positions to canonical names using aliases.
func headerIndex(header []string, aliases map[string]string) map[string]int {
	idx := map[string]int{}
	for i, h := range header {
		if canon, ok := aliases[normalize(h)]; ok {
			if _, dup := idx[canon]; !dup {
				idx[canon] = i
			}
		}
	}
	return idx
}

func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellInt(row []string, idx map[string]int, name string) int {
	s := cell(row, idx, name)
	if s == "" {
		return 0
	}
	// Excel often renders integers as floats ("17.0").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// ReadDaily parses a daily scan workbook. Rows the store would skip anyway
// (blank route and tracking) are dropped here; everything else passes
// through so skip accounting happens in one place.
func ReadDaily(r io.Reader) ([]model.DailyScanRow, error) {
	rows, err := sheetRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workbook is empty")
	}
	idx := headerIndex(rows[0], dailyColumns)
	if _, ok := idx["route"]; !ok {
		return nil, fmt.Errorf("missing route column")
	}
	out := make([]model.DailyScanRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		d := model.DailyScanRow{
			Route:          cell(row, idx, "route"),
			Sequence:       cellInt(row, idx, "sequence"),
			Address:        cell(row, idx, "address"),
			AddressUnit:    cell(row, idx, "unit"),
			Zipcode:        cell(row, idx, "zipcode"),
			TrackingNo:     cell(row, idx, "tracking"),
			RecipientName:  cell(row, idx, "recipient"),
			RecipientPhone: cell(row, idx, "phone"),
			Status:         cell(row, idx, "status"),
			CompleteTime:   cell(row, idx, "completetime"),
		}
		if d.Route == "" && d.TrackingNo == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// ReadWeekly parses a weekly settlement workbook.
func ReadWeekly(r io.Reader) ([]model.WeeklyRow, error) {
	rows, err := sheetRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workbook is empty")
	}
	idx := headerIndex(rows[0], weeklyColumns)
	if _, ok := idx["driver"]; !ok {
		return nil, fmt.Errorf("missing driver column")
	}
	out := make([]model.WeeklyRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		wr := model.WeeklyRow{
			CourierName: cell(row, idx, "courier"),
			DriverCode:  cell(row, idx, "driver"),
			Route:       cell(row, idx, "route"),
			Date:        cell(row, idx, "date"),
			Deliveries:  cellInt(row, idx, "deliveries"),
			FirstStop:   cellInt(row, idx, "firststop"),
			DoubleStop:  cellInt(row, idx, "doublestop"),
		}
		if wr.DriverCode == "" && wr.Route == "" {
			continue
		}
		out = append(out, wr)
	}
	return out, nil
}
