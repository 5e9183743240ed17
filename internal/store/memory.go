package store

import (
    "context"
    "sort"
    "strings"
    "sync"

    "github.com/google/uuid"

    "routepay/internal/model"
    "routepay/internal/reconcile"
)

// Memory is the in-memory store used when no DATABASE_URL is set and by the
// test suite. One mutex serializes all operations, which trivially gives the
// conflict-check-plus-insert unit the atomicity the Postgres store gets from
// advisory locks.
type Memory struct {
    mu         sync.Mutex
    routes     map[string]model.Route
    drivers    map[string]model.Driver
    journeys   map[string]*model.Journey
    deliveries map[string][]*model.Delivery // journeyID -> rows ordered by sequence
    weekly     map[string]*model.WeeklyTotal
}

func NewMemory() *Memory {
    return &Memory{
        routes:     map[string]model.Route{},
        drivers:    map[string]model.Driver{},
        journeys:   map[string]*model.Journey{},
        deliveries: map[string][]*model.Delivery{},
        weekly:     map[string]*model.WeeklyTotal{},
    }
}

func (m *Memory) CreateRoute(ctx context.Context, r model.Route) (model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if r.ID == "" { r.ID = uuid.New().String() }
    m.routes[r.ID] = r
    return r, nil
}

func (m *Memory) ListRoutes(ctx context.Context) ([]model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Route{}
    for _, r := range m.routes { out = append(out, r) }
    sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
    return out, nil
}

func (m *Memory) CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if d.ID == "" { d.ID = uuid.New().String() }
    m.drivers[d.ID] = d
    return d, nil
}

func (m *Memory) ListDrivers(ctx context.Context) ([]model.Driver, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Driver{}
    for _, d := range m.drivers { out = append(out, d) }
    sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
    return out, nil
}

// findConflicts mirrors the Postgres conflict query: closed-interval overlap
// scoped to (route, date), optionally excluding the journey being edited.
func (m *Memory) findConflicts(routeID, journeyDate string, startSeq, endSeq int, excludeID string) []model.ConflictInfo {
    var out []model.ConflictInfo
    for _, j := range m.journeys {
        if j.RouteID != routeID || j.JourneyDate != journeyDate || j.ID == excludeID {
            continue
        }
        if reconcile.Overlaps(j.StartSeq, j.EndSeq, startSeq, endSeq) {
            out = append(out, model.ConflictInfo{JourneyID: j.ID, DriverID: j.DriverID, StartSeq: j.StartSeq, EndSeq: j.EndSeq})
        }
    }
    sort.Slice(out, func(i, k int) bool { return out[i].StartSeq < out[k].StartSeq })
    return out
}

func (m *Memory) CreateJourney(ctx context.Context, in model.JourneyIn) (model.Journey, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    route, ok := m.routes[in.RouteID]
    if !ok { return model.Journey{}, ErrNotFound }
    if _, ok := m.drivers[in.DriverID]; !ok { return model.Journey{}, ErrNotFound }
    if conflicts := m.findConflicts(in.RouteID, in.JourneyDate, in.StartSeq, in.EndSeq, ""); len(conflicts) > 0 {
        return model.Journey{}, &ConflictError{RouteID: in.RouteID, JourneyDate: in.JourneyDate, Conflicts: conflicts}
    }
    j := &model.Journey{
        ID: uuid.New().String(), DriverID: in.DriverID, RouteID: in.RouteID, JourneyDate: in.JourneyDate,
        StartSeq: in.StartSeq, EndSeq: in.EndSeq, Packages: reconcile.Packages(in.StartSeq, in.EndSeq),
    }
    m.journeys[j.ID] = j
    rows := make([]*model.Delivery, 0, j.Packages)
    for seq := in.StartSeq; seq <= in.EndSeq; seq++ {
        rows = append(rows, &model.Delivery{
            ID: uuid.New().String(), JourneyID: j.ID, DriverID: j.DriverID, RouteID: j.RouteID,
            SequenceNumber: seq, SeqRouteCode: model.SeqRouteCode(seq, route.Code),
            DriverSetDate: j.JourneyDate, FinalResult: model.ResultNotAssigned,
        })
    }
    m.deliveries[j.ID] = rows
    return *j, nil
}

func (m *Memory) GetJourney(ctx context.Context, id string) (model.Journey, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    j, ok := m.journeys[id]
    if !ok { return model.Journey{}, ErrNotFound }
    return *j, nil
}

func (m *Memory) ListJourneys(ctx context.Context, f JourneyFilter) ([]model.Journey, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Journey{}
    for _, j := range m.journeys {
        if f.DriverID != "" && j.DriverID != f.DriverID { continue }
        if f.RouteID != "" && j.RouteID != f.RouteID { continue }
        if f.City != "" && m.routes[j.RouteID].City != f.City { continue }
        if f.DateFrom != "" && j.JourneyDate < f.DateFrom { continue }
        if f.DateTo != "" && j.JourneyDate > f.DateTo { continue }
        out = append(out, *j)
    }
    sort.Slice(out, func(i, k int) bool {
        if out[i].JourneyDate != out[k].JourneyDate { return out[i].JourneyDate > out[k].JourneyDate }
        return out[i].StartSeq < out[k].StartSeq
    })
    limit := f.Limit
    if limit <= 0 || limit > 500 { limit = 200 }
    if len(out) > limit { out = out[:limit] }
    return out, nil
}

func (m *Memory) UpdateJourney(ctx context.Context, id string, upd model.JourneyUpdate) (model.Journey, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    j, ok := m.journeys[id]
    if !ok { return model.Journey{}, ErrNotFound }
    routeID, driverID := j.RouteID, j.DriverID
    if upd.RouteID != "" { routeID = upd.RouteID }
    if upd.DriverID != "" { driverID = upd.DriverID }
    route, ok := m.routes[routeID]
    if !ok { return model.Journey{}, ErrNotFound }
    if _, ok := m.drivers[driverID]; !ok { return model.Journey{}, ErrNotFound }
    if conflicts := m.findConflicts(routeID, j.JourneyDate, upd.StartSeq, upd.EndSeq, id); len(conflicts) > 0 {
        return model.Journey{}, &ConflictError{RouteID: routeID, JourneyDate: j.JourneyDate, Conflicts: conflicts}
    }

    // Prune, re-point, fill — same three steps as the SQL store, so scan
    // data merged onto surviving sequences is preserved across the edit.
    kept := make([]*model.Delivery, 0, len(m.deliveries[id]))
    have := map[int]bool{}
    for _, d := range m.deliveries[id] {
        if !reconcile.InRange(d.SequenceNumber, upd.StartSeq, upd.EndSeq) { continue }
        d.DriverID = driverID
        d.RouteID = routeID
        d.SeqRouteCode = model.SeqRouteCode(d.SequenceNumber, route.Code)
        kept = append(kept, d)
        have[d.SequenceNumber] = true
    }
    for _, seq := range reconcile.MissingSeqs(have, upd.StartSeq, upd.EndSeq) {
        kept = append(kept, &model.Delivery{
            ID: uuid.New().String(), JourneyID: id, DriverID: driverID, RouteID: routeID,
            SequenceNumber: seq, SeqRouteCode: model.SeqRouteCode(seq, route.Code),
            DriverSetDate: j.JourneyDate, FinalResult: model.ResultNotAssigned,
        })
    }
    sort.Slice(kept, func(i, k int) bool { return kept[i].SequenceNumber < kept[k].SequenceNumber })
    m.deliveries[id] = kept

    j.DriverID = driverID
    j.RouteID = routeID
    j.StartSeq = upd.StartSeq
    j.EndSeq = upd.EndSeq
    j.Packages = reconcile.Packages(upd.StartSeq, upd.EndSeq)
    return *j, nil
}

func (m *Memory) DeleteJourney(ctx context.Context, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.journeys[id]; !ok { return ErrNotFound }
    delete(m.journeys, id)
    delete(m.deliveries, id)
    return nil
}

func (m *Memory) ListDeliveries(ctx context.Context, journeyID string) ([]model.Delivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    rows, ok := m.deliveries[journeyID]
    if !ok {
        if _, exists := m.journeys[journeyID]; !exists { return nil, ErrNotFound }
    }
    out := make([]model.Delivery, 0, len(rows))
    for _, d := range rows { out = append(out, *d) }
    return out, nil
}

func (m *Memory) IngestDaily(ctx context.Context, rows []model.DailyScanRow) (model.IngestSummary, error) {
    staged, skipped, winStart, winEnd := stageScanRows(rows)
    sum := model.IngestSummary{Processed: len(staged), Skipped: skipped, WindowStart: winStart, WindowEnd: winEnd}
    if len(staged) == 0 {
        return sum, nil
    }
    m.mu.Lock(); defer m.mu.Unlock()

    // Merge by (seq_route_code, upload date); later duplicates in the batch
    // win, matching the staging table upsert.
    byKey := map[string]stagedScan{}
    for _, s := range staged {
        byKey[s.seqRouteCode+"|"+s.uploadDate] = s
    }
    inWindow := func(date string) bool { return date >= winStart && date <= winEnd }

    var windowRows []*model.Delivery
    for _, ds := range m.deliveries {
        for _, d := range ds {
            if s, ok := byKey[d.SeqRouteCode+"|"+d.DriverSetDate]; ok {
                d.Address = s.address
                d.AddressUnit = s.addressUnit
                d.RecipientName = s.recipient
                d.Status = s.status
                sum.Merged++
            }
            if inWindow(d.DriverSetDate) {
                d.FinalResult = model.ResultNotAssigned
                windowRows = append(windowRows, d)
            }
        }
    }
    for _, j := range m.journeys {
        if inWindow(j.JourneyDate) { m.resetAggregates(j) }
    }

    reconcile.Classify(windowRows)
    for _, d := range windowRows {
        switch d.FinalResult {
        case model.ResultNoScanned:
            sum.NoScanned++
        case model.ResultFailedAttempt:
            sum.FailedAttempt++
        case model.ResultFirstStop:
            sum.FirstStop++
        case model.ResultDoubleStop:
            sum.DoubleStop++
        }
    }
    sum.JourneysUpdate = m.aggregateLocked()
    return sum, nil
}

func (m *Memory) resetAggregates(j *model.Journey) {
    j.NoScanned, j.FailedAttempt, j.DS, j.FirstStop, j.Delivered = 0, 0, 0, 0, 0
    j.CountsAggregated = false
}

// aggregateLocked rolls delivery outcomes up onto every journey whose guard
// flag is unset, then sets the flag. Callers hold m.mu.
func (m *Memory) aggregateLocked() int {
    updated := 0
    for id, j := range m.journeys {
        if j.CountsAggregated { continue }
        c := reconcile.Count(m.deliveries[id])
        j.NoScanned = c.NoScanned
        j.FailedAttempt = c.FailedAttempt
        j.DS = c.DS
        j.FirstStop = c.FirstStop
        j.Delivered = c.Delivered
        j.CountsAggregated = true
        updated++
    }
    return updated
}

func (m *Memory) AggregateCounts(ctx context.Context) (int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.aggregateLocked(), nil
}

func (m *Memory) IngestWeekly(ctx context.Context, rows []model.WeeklyRow) (model.WeeklySummary, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var sum model.WeeklySummary
    for _, r := range rows {
        if strings.TrimSpace(r.DriverCode) == "" || strings.TrimSpace(r.Route) == "" || !model.ValidDate(r.Date) {
            sum.Skipped++
            continue
        }
        key := r.DriverCode + "|" + r.Date + "|" + r.Route
        t := m.weekly[key]
        if t == nil {
            t = &model.WeeklyTotal{DriverCode: r.DriverCode, DelDate: r.Date, DelRoute: r.Route}
            m.weekly[key] = t
        }
        t.TotalDeliveries += r.Deliveries
        t.FS += r.FirstStop
        t.DS += r.DoubleStop
        sum.Processed++
    }
    return sum, nil
}

func (m *Memory) ListWeeklyTotals(ctx context.Context, driverCode, from, to string) ([]model.WeeklyTotal, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.WeeklyTotal{}
    for _, t := range m.weekly {
        if driverCode != "" && t.DriverCode != driverCode { continue }
        if from != "" && t.DelDate < from { continue }
        if to != "" && t.DelDate > to { continue }
        out = append(out, *t)
    }
    sort.Slice(out, func(i, k int) bool {
        if out[i].DelDate != out[k].DelDate { return out[i].DelDate < out[k].DelDate }
        if out[i].DriverCode != out[k].DriverCode { return out[i].DriverCode < out[k].DriverCode }
        return out[i].DelRoute < out[k].DelRoute
    })
    return out, nil
}

func (m *Memory) PaymentSummary(ctx context.Context, driverID, from, to string, rates model.PayRates) ([]model.PaymentLine, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    byKey := map[string]*model.PaymentLine{}
    for _, j := range m.journeys {
        if driverID != "" && j.DriverID != driverID { continue }
        if from != "" && j.JourneyDate < from { continue }
        if to != "" && j.JourneyDate > to { continue }
        key := j.DriverID + "|" + j.JourneyDate
        l := byKey[key]
        if l == nil {
            l = &model.PaymentLine{DriverID: j.DriverID, DriverName: m.drivers[j.DriverID].Name, Date: j.JourneyDate}
            byKey[key] = l
        }
        l.Delivered += j.Delivered
        l.FirstStop += j.FirstStop
        l.DS += j.DS
        l.NoScanned += j.NoScanned
        l.FailedAttempt += j.FailedAttempt
    }
    out := []model.PaymentLine{}
    for _, l := range byKey {
        l.Amount = float64(l.FirstStop)*rates.FirstStop + float64(l.DS)*rates.DoubleStop
        out = append(out, *l)
    }
    sort.Slice(out, func(i, k int) bool {
        if out[i].Date != out[k].Date { return out[i].Date < out[k].Date }
        return out[i].DriverID < out[k].DriverID
    })
    return out, nil
}
