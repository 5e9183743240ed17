package store

import (
    "context"
    "errors"
    "fmt"
    "testing"

    "github.com/stretchr/testify/require"

    "routepay/internal/model"
)

func seedRouteDriver(t *testing.T, m *Memory) (model.Route, model.Driver) {
    t.Helper()
    ctx := context.Background()
    r, err := m.CreateRoute(ctx, model.Route{Code: "M17", City: "Worcester"})
    require.NoError(t, err)
    d, err := m.CreateDriver(ctx, model.Driver{Code: "D-100", Name: "Avery Holt", City: "Worcester"})
    require.NoError(t, err)
    return r, d
}

func mustJourney(t *testing.T, m *Memory, d model.Driver, r model.Route, date string, start, end int) model.Journey {
    t.Helper()
    j, err := m.CreateJourney(context.Background(), model.JourneyIn{
        DriverID: d.ID, RouteID: r.ID, JourneyDate: date, StartSeq: start, EndSeq: end,
    })
    require.NoError(t, err)
    return j
}

func TestCreateJourneyMaterializes(t *testing.T) {
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    j := mustJourney(t, m, d, r, "2025-03-01", 1, 10)

    require.Equal(t, 10, j.Packages)
    rows, err := m.ListDeliveries(context.Background(), j.ID)
    require.NoError(t, err)
    require.Len(t, rows, 10)
    for i, row := range rows {
        require.Equal(t, i+1, row.SequenceNumber)
        require.Equal(t, fmt.Sprintf("%d-M17", i+1), row.SeqRouteCode)
        require.Equal(t, "2025-03-01", row.DriverSetDate)
        require.Equal(t, model.ResultNotAssigned, row.FinalResult)
    }
}

func TestCreateJourneyConflicts(t *testing.T) {
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    d2, err := m.CreateDriver(context.Background(), model.Driver{Code: "D-200"})
    require.NoError(t, err)
    existing := mustJourney(t, m, d, r, "2025-03-01", 1, 50)

    cases := []struct {
        name       string
        start, end int
        conflict   bool
    }{
        {"contained", 10, 20, true},
        {"straddles end", 40, 60, true},
        {"shared boundary", 50, 80, true},
        {"single shared seq", 50, 50, true},
        {"abuts after", 51, 80, false},
        {"disjoint", 100, 120, false},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            _, err := m.CreateJourney(context.Background(), model.JourneyIn{
                DriverID: d2.ID, RouteID: r.ID, JourneyDate: "2025-03-01", StartSeq: tc.start, EndSeq: tc.end,
            })
            if !tc.conflict {
                require.NoError(t, err)
                require.NoError(t, m.DeleteJourney(context.Background(), mustLast(t, m, d2.ID)))
                return
            }
            var ce *ConflictError
            require.ErrorAs(t, err, &ce)
            require.Len(t, ce.Conflicts, 1)
            require.Equal(t, existing.ID, ce.Conflicts[0].JourneyID)
            require.Equal(t, 1, ce.Conflicts[0].StartSeq)
            require.Equal(t, 50, ce.Conflicts[0].EndSeq)
        })
    }
}

// mustLast returns the id of the driver's single journey.
func mustLast(t *testing.T, m *Memory, driverID string) string {
    t.Helper()
    js, err := m.ListJourneys(context.Background(), JourneyFilter{DriverID: driverID})
    require.NoError(t, err)
    require.Len(t, js, 1)
    return js[0].ID
}

func TestCreateJourneyOtherDateAndRouteDoNotConflict(t *testing.T) {
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    r2, err := m.CreateRoute(context.Background(), model.Route{Code: "M18"})
    require.NoError(t, err)
    mustJourney(t, m, d, r, "2025-03-01", 1, 50)

    // Same range, different date.
    mustJourney(t, m, d, r, "2025-03-02", 1, 50)
    // Same range, same date, different route.
    _, err = m.CreateJourney(context.Background(), model.JourneyIn{
        DriverID: d.ID, RouteID: r2.ID, JourneyDate: "2025-03-01", StartSeq: 1, EndSeq: 50,
    })
    require.NoError(t, err)
}

func TestUpdateJourneySyncPreservesScanData(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    j := mustJourney(t, m, d, r, "2025-03-01", 1, 10)

    // Merge scan data onto sequence 7 so we can prove the edit keeps it.
    _, err := m.IngestDaily(ctx, []model.DailyScanRow{{
        Route: "M17-0301", Sequence: 7, Address: "12 Elm St", RecipientName: "Ng",
        TrackingNo: "TBA1", Status: "Delivered", CompleteTime: "2025-03-01 14:02:00",
    }})
    require.NoError(t, err)

    upd, err := m.UpdateJourney(ctx, j.ID, model.JourneyUpdate{StartSeq: 5, EndSeq: 15})
    require.NoError(t, err)
    require.Equal(t, 11, upd.Packages)

    rows, err := m.ListDeliveries(ctx, j.ID)
    require.NoError(t, err)
    require.Len(t, rows, 11)
    for i, row := range rows {
        require.Equal(t, i+5, row.SequenceNumber)
    }
    require.Equal(t, "12 Elm St", rows[2].Address) // seq 7 survived the edit
    require.Equal(t, "Ng", rows[2].RecipientName)
    for _, row := range rows[6:] { // seqs 11..15 are fresh fill rows
        require.Empty(t, row.Address)
        require.Equal(t, model.ResultNotAssigned, row.FinalResult)
    }
}

func TestUpdateJourneyRouteChangeRewritesCodes(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    r2, err := m.CreateRoute(ctx, model.Route{Code: "M18"})
    require.NoError(t, err)
    j := mustJourney(t, m, d, r, "2025-03-01", 1, 3)

    _, err = m.UpdateJourney(ctx, j.ID, model.JourneyUpdate{RouteID: r2.ID, StartSeq: 1, EndSeq: 3})
    require.NoError(t, err)

    rows, err := m.ListDeliveries(ctx, j.ID)
    require.NoError(t, err)
    for _, row := range rows {
        require.Equal(t, r2.ID, row.RouteID)
        require.Equal(t, fmt.Sprintf("%d-M18", row.SequenceNumber), row.SeqRouteCode)
    }
}

func TestUpdateJourneyConflictExcludesSelf(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    j := mustJourney(t, m, d, r, "2025-03-01", 1, 10)
    other := mustJourney(t, m, d, r, "2025-03-01", 20, 30)

    // Shrinking inside its own old range never self-conflicts.
    _, err := m.UpdateJourney(ctx, j.ID, model.JourneyUpdate{StartSeq: 2, EndSeq: 8})
    require.NoError(t, err)

    // But growing into the other journey does.
    _, err = m.UpdateJourney(ctx, j.ID, model.JourneyUpdate{StartSeq: 2, EndSeq: 25})
    var ce *ConflictError
    require.ErrorAs(t, err, &ce)
    require.Equal(t, other.ID, ce.Conflicts[0].JourneyID)
}

func TestDeleteJourneyCascades(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    j := mustJourney(t, m, d, r, "2025-03-01", 1, 5)

    require.NoError(t, m.DeleteJourney(ctx, j.ID))
    _, err := m.GetJourney(ctx, j.ID)
    require.ErrorIs(t, err, ErrNotFound)
    _, err = m.ListDeliveries(ctx, j.ID)
    require.ErrorIs(t, err, ErrNotFound)
    require.ErrorIs(t, m.DeleteJourney(ctx, j.ID), ErrNotFound)

    // The vacated range is immediately bookable again.
    mustJourney(t, m, d, r, "2025-03-01", 1, 5)
}

func dailyRow(route string, seq int, addr, name, status string) model.DailyScanRow {
    return model.DailyScanRow{
        Route: route, Sequence: seq, Address: addr, RecipientName: name,
        TrackingNo: fmt.Sprintf("TBA-%s-%d", route, seq), Status: status,
        CompleteTime: "2025-03-01 16:30:00",
    }
}

func TestIngestDailyClassifies(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    j := mustJourney(t, m, d, r, "2025-03-01", 1, 6)

    rows := []model.DailyScanRow{
        dailyRow("M17-0301", 1, "5 Oak St", "Cho", "Delivered"),
        dailyRow("M17-0301", 2, "5 Oak St", "Cho", "Delivered"),  // duplicate of 1
        dailyRow("M17-0301", 3, "9 Pine Rd", "Lee", "Delivery failed"),
        dailyRow("M17-0301", 4, "22 Main St", "Diaz", "Delivered"),
        // seqs 5 and 6 never scanned
        {Route: "M17-0301", Sequence: 99, TrackingNo: ""}, // skipped: no tracking
    }
    sum, err := m.IngestDaily(ctx, rows)
    require.NoError(t, err)
    require.Equal(t, 4, sum.Processed)
    require.Equal(t, 1, sum.Skipped)
    require.Equal(t, 4, sum.Merged)
    require.Equal(t, 2, sum.NoScanned)
    require.Equal(t, 1, sum.FailedAttempt)
    require.Equal(t, 2, sum.FirstStop)
    require.Equal(t, 1, sum.DoubleStop)
    require.Equal(t, 1, sum.JourneysUpdate)
    require.Equal(t, "2025-03-01", sum.WindowStart)
    require.Equal(t, "2025-03-01", sum.WindowEnd)

    got, err := m.GetJourney(ctx, j.ID)
    require.NoError(t, err)
    require.Equal(t, 2, got.NoScanned)
    require.Equal(t, 1, got.FailedAttempt)
    require.Equal(t, 1, got.DS)
    require.Equal(t, 2, got.FirstStop)
    require.Equal(t, 3, got.Delivered)
    require.True(t, got.CountsAggregated)
}

func TestIngestDailyIsIdempotent(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    j := mustJourney(t, m, d, r, "2025-03-01", 1, 4)

    rows := []model.DailyScanRow{
        dailyRow("M17-0301", 1, "5 Oak St", "Cho", "Delivered"),
        dailyRow("M17-0301", 2, "9 Pine Rd", "Lee", "Delivered"),
    }
    first, err := m.IngestDaily(ctx, rows)
    require.NoError(t, err)
    second, err := m.IngestDaily(ctx, rows)
    require.NoError(t, err)
    require.Equal(t, first, second)

    got, err := m.GetJourney(ctx, j.ID)
    require.NoError(t, err)
    require.Equal(t, 2, got.FirstStop)
    require.Equal(t, 2, got.Delivered)
    require.Equal(t, 2, got.NoScanned)
}

func TestAggregateCountsGuard(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    mustJourney(t, m, d, r, "2025-03-01", 1, 4)

    n, err := m.AggregateCounts(ctx)
    require.NoError(t, err)
    require.Equal(t, 1, n)
    n, err = m.AggregateCounts(ctx)
    require.NoError(t, err)
    require.Equal(t, 0, n) // guard flag blocks the second pass
}

func TestIngestDailyMergesToOtherJourneysOnSameRoute(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    d2, err := m.CreateDriver(ctx, model.Driver{Code: "D-200"})
    require.NoError(t, err)
    j1 := mustJourney(t, m, d, r, "2025-03-01", 1, 3)
    j2 := mustJourney(t, m, d2, r, "2025-03-01", 4, 6)

    sum, err := m.IngestDaily(ctx, []model.DailyScanRow{
        dailyRow("M17-0301", 2, "5 Oak St", "Cho", "Delivered"),
        dailyRow("M17-0301", 5, "9 Pine Rd", "Lee", "Delivered"),
    })
    require.NoError(t, err)
    require.Equal(t, 2, sum.Merged)
    require.Equal(t, 2, sum.JourneysUpdate)

    for _, id := range []string{j1.ID, j2.ID} {
        got, err := m.GetJourney(ctx, id)
        require.NoError(t, err)
        require.Equal(t, 1, got.FirstStop)
        require.Equal(t, 2, got.NoScanned)
    }
}

func TestIngestWeeklyAdds(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    sum, err := m.IngestWeekly(ctx, []model.WeeklyRow{
        {DriverCode: "D-100", Route: "M17", Date: "2025-03-01", Deliveries: 40, FirstStop: 30, DoubleStop: 10},
        {DriverCode: "D-100", Route: "M17", Date: "2025-03-01", Deliveries: 5, FirstStop: 5},
        {DriverCode: "", Route: "M17", Date: "2025-03-01", Deliveries: 9}, // skipped
        {DriverCode: "D-100", Route: "M17", Date: "03/01", Deliveries: 9}, // bad date, skipped
    })
    require.NoError(t, err)
    require.Equal(t, 2, sum.Processed)
    require.Equal(t, 2, sum.Skipped)

    totals, err := m.ListWeeklyTotals(ctx, "D-100", "", "")
    require.NoError(t, err)
    require.Len(t, totals, 1)
    require.Equal(t, 45, totals[0].TotalDeliveries)
    require.Equal(t, 35, totals[0].FS)
    require.Equal(t, 10, totals[0].DS)
}

func TestPaymentSummary(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    mustJourney(t, m, d, r, "2025-03-01", 1, 4)

    _, err := m.IngestDaily(ctx, []model.DailyScanRow{
        dailyRow("M17-0301", 1, "5 Oak St", "Cho", "Delivered"),
        dailyRow("M17-0301", 2, "5 Oak St", "Cho", "Delivered"),
        dailyRow("M17-0301", 3, "9 Pine Rd", "Lee", "Delivered"),
    })
    require.NoError(t, err)

    lines, err := m.PaymentSummary(ctx, "", "", "", model.PayRates{FirstStop: 1.75, DoubleStop: 0.95})
    require.NoError(t, err)
    require.Len(t, lines, 1)
    l := lines[0]
    require.Equal(t, d.ID, l.DriverID)
    require.Equal(t, "Avery Holt", l.DriverName)
    require.Equal(t, 2, l.FirstStop)
    require.Equal(t, 1, l.DS)
    require.Equal(t, 3, l.Delivered)
    require.InDelta(t, 2*1.75+1*0.95, l.Amount, 1e-9)

    none, err := m.PaymentSummary(ctx, "", "2025-04-01", "2025-04-30", model.PayRates{})
    require.NoError(t, err)
    require.Empty(t, none)
}

func TestNotFoundPaths(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    _, d := seedRouteDriver(t, m)

    _, err := m.GetJourney(ctx, "nope")
    require.ErrorIs(t, err, ErrNotFound)
    _, err = m.CreateJourney(ctx, model.JourneyIn{DriverID: d.ID, RouteID: "nope", JourneyDate: "2025-03-01", StartSeq: 1, EndSeq: 2})
    require.ErrorIs(t, err, ErrNotFound)
    _, err = m.UpdateJourney(ctx, "nope", model.JourneyUpdate{StartSeq: 1, EndSeq: 2})
    require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateJourneyUnknownDriver(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    r, d := seedRouteDriver(t, m)
    j := mustJourney(t, m, d, r, "2025-03-01", 1, 5)

    _, err := m.UpdateJourney(ctx, j.ID, model.JourneyUpdate{DriverID: "ghost", StartSeq: 1, EndSeq: 5})
    require.ErrorIs(t, err, ErrNotFound)

    // Journey and its rows are untouched by the rejected edit.
    got, err := m.GetJourney(ctx, j.ID)
    require.NoError(t, err)
    require.Equal(t, d.ID, got.DriverID)
    rows, err := m.ListDeliveries(ctx, j.ID)
    require.NoError(t, err)
    for _, row := range rows {
        require.Equal(t, d.ID, row.DriverID)
    }
}

func TestIntegrityErrorUnwraps(t *testing.T) {
    base := errors.New("boom")
    err := integrity("create journey", "materialize", base)
    var ie *IntegrityError
    require.ErrorAs(t, err, &ie)
    require.Equal(t, "materialize", ie.Step)
    require.ErrorIs(t, err, base)
}
