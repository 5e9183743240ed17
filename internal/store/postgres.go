package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "routepay/internal/model"
    "routepay/internal/reconcile"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// MigrateDir applies every .sql file in dir in lexical order (dev helper).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, n := range names {
        b, err := os.ReadFile(filepath.Join(dir, n))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil {
            return fmt.Errorf("migration %s: %w", n, err)
        }
    }
    return nil
}

// Routes & drivers

func (p *Postgres) CreateRoute(ctx context.Context, r model.Route) (model.Route, error) {
    if r.ID == "" { r.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO routes (id, city, code, name) VALUES ($1,$2,$3,$4)`, r.ID, r.City, r.Code, r.Name)
    if err != nil { return model.Route{}, err }
    return r, nil
}

func (p *Postgres) ListRoutes(ctx context.Context) ([]model.Route, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, city, code, name FROM routes ORDER BY code`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Route{}
    for rows.Next() {
        var r model.Route
        if err := rows.Scan(&r.ID, &r.City, &r.Code, &r.Name); err != nil { return nil, err }
        out = append(out, r)
    }
    return out, rows.Err()
}

func (p *Postgres) CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
    if d.ID == "" { d.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO drivers (id, code, name, city, route_id) VALUES ($1,$2,$3,$4,$5)`,
        d.ID, d.Code, d.Name, d.City, nullIfEmpty(d.RouteID))
    if err != nil { return model.Driver{}, err }
    return d, nil
}

func (p *Postgres) ListDrivers(ctx context.Context) ([]model.Driver, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, code, name, city, COALESCE(route_id::text,'') FROM drivers ORDER BY code`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Driver{}
    for rows.Next() {
        var d model.Driver
        if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.City, &d.RouteID); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

// Journeys

// lockRouteDate serializes all bookings for one (route, date) pair inside
// the current transaction. Without it two concurrent creations with
// overlapping ranges could both pass the conflict check and both commit.
func lockRouteDate(ctx context.Context, tx *sql.Tx, routeID, journeyDate string) error {
    _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, routeID+"|"+journeyDate)
    return err
}

// checkConflict finds journeys on (route, date) whose closed ranges
// intersect [startSeq, endSeq]. excludeID skips the journey being edited.
func checkConflict(ctx context.Context, tx *sql.Tx, routeID, journeyDate string, startSeq, endSeq int, excludeID string) ([]model.ConflictInfo, error) {
    q := `SELECT id::text, driver_id::text, start_seq, end_seq FROM journeys
        WHERE route_id=$1 AND journey_date=$2::date AND start_seq <= $3 AND end_seq >= $4`
    args := []any{routeID, journeyDate, endSeq, startSeq}
    if excludeID != "" {
        q += ` AND id <> $5`
        args = append(args, excludeID)
    }
    rows, err := tx.QueryContext(ctx, q+` ORDER BY start_seq`, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []model.ConflictInfo
    for rows.Next() {
        var c model.ConflictInfo
        if err := rows.Scan(&c.JourneyID, &c.DriverID, &c.StartSeq, &c.EndSeq); err != nil { return nil, err }
        out = append(out, c)
    }
    return out, rows.Err()
}

func routeCodeTx(ctx context.Context, tx *sql.Tx, routeID string) (string, error) {
    var code string
    err := tx.QueryRowContext(ctx, `SELECT code FROM routes WHERE id=$1`, routeID).Scan(&code)
    if errors.Is(err, sql.ErrNoRows) { return "", ErrNotFound }
    return code, err
}

func (p *Postgres) CreateJourney(ctx context.Context, in model.JourneyIn) (model.Journey, error) {
    id := uuid.New().String()
    j := model.Journey{
        ID: id, DriverID: in.DriverID, RouteID: in.RouteID, JourneyDate: in.JourneyDate,
        StartSeq: in.StartSeq, EndSeq: in.EndSeq, Packages: reconcile.Packages(in.StartSeq, in.EndSeq),
    }
    err := withTx(ctx, p.db, func(tx *sql.Tx) error {
        if err := lockRouteDate(ctx, tx, in.RouteID, in.JourneyDate); err != nil {
            return integrity("create journey", "lock", err)
        }
        code, err := routeCodeTx(ctx, tx, in.RouteID)
        if err != nil { return err }
        var one int
        if err := tx.QueryRowContext(ctx, `SELECT 1 FROM drivers WHERE id=$1`, in.DriverID).Scan(&one); err != nil {
            if errors.Is(err, sql.ErrNoRows) { return ErrNotFound }
            return err
        }
        conflicts, err := checkConflict(ctx, tx, in.RouteID, in.JourneyDate, in.StartSeq, in.EndSeq, "")
        if err != nil { return integrity("create journey", "conflict check", err) }
        if len(conflicts) > 0 {
            return &ConflictError{RouteID: in.RouteID, JourneyDate: in.JourneyDate, Conflicts: conflicts}
        }
        _, err = tx.ExecContext(ctx, `INSERT INTO journeys (id, driver_id, route_id, journey_date, start_seq, end_seq, packages)
            VALUES ($1,$2,$3,$4::date,$5,$6,$7)`, id, in.DriverID, in.RouteID, in.JourneyDate, in.StartSeq, in.EndSeq, j.Packages)
        if err != nil { return integrity("create journey", "insert", err) }
        if err := materialize(ctx, tx, j, code); err != nil {
            return integrity("create journey", "materialize", err)
        }
        return nil
    })
    if err != nil { return model.Journey{}, err }
    return j, nil
}

// materialize inserts one delivery row per sequence in the journey's range.
// Only called for a brand-new journey id, so the range is known to be empty.
func materialize(ctx context.Context, tx *sql.Tx, j model.Journey, routeCode string) error {
    for seq := j.StartSeq; seq <= j.EndSeq; seq++ {
        _, err := tx.ExecContext(ctx, `INSERT INTO deliveries
            (id, journey_id, driver_id, route_id, sequence_number, seq_route_code, driver_set_date)
            VALUES ($1,$2,$3,$4,$5,$6,$7::date)`,
            uuid.New().String(), j.ID, j.DriverID, j.RouteID, seq, model.SeqRouteCode(seq, routeCode), j.JourneyDate)
        if err != nil { return fmt.Errorf("sequence %d: %w", seq, err) }
    }
    return nil
}

func (p *Postgres) GetJourney(ctx context.Context, id string) (model.Journey, error) {
    row := p.db.QueryRowContext(ctx, journeySelect+` WHERE j.id=$1`, id)
    j, err := scanJourney(row)
    if errors.Is(err, sql.ErrNoRows) { return model.Journey{}, ErrNotFound }
    return j, err
}

const journeySelect = `SELECT j.id::text, j.driver_id::text, j.route_id::text, j.journey_date::text,
    j.start_seq, j.end_seq, j.packages,
    j.no_scanned, j.failed_attempt, j.ds, j.first_stop, j.delivered, j.is_deliveries_count_added
    FROM journeys j`

type rowScanner interface{ Scan(dest ...any) error }

func scanJourney(r rowScanner) (model.Journey, error) {
    var j model.Journey
    err := r.Scan(&j.ID, &j.DriverID, &j.RouteID, &j.JourneyDate,
        &j.StartSeq, &j.EndSeq, &j.Packages,
        &j.NoScanned, &j.FailedAttempt, &j.DS, &j.FirstStop, &j.Delivered, &j.CountsAggregated)
    return j, err
}

func (p *Postgres) ListJourneys(ctx context.Context, f JourneyFilter) ([]model.Journey, error) {
    w := &where{}
    w.addIf("j.driver_id", "=", f.DriverID)
    w.addIf("j.route_id", "=", f.RouteID)
    w.addIf("r.city", "=", f.City)
    w.addIf("j.journey_date::text", ">=", f.DateFrom)
    w.addIf("j.journey_date::text", "<=", f.DateTo)
    clause, args := w.SQL()
    limit := f.Limit
    if limit <= 0 || limit > 500 { limit = 200 }
    q := journeySelect + ` JOIN routes r ON r.id = j.route_id` + clause +
        fmt.Sprintf(` ORDER BY j.journey_date DESC, j.start_seq LIMIT %d`, limit)
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Journey{}
    for rows.Next() {
        j, err := scanJourney(rows)
        if err != nil { return nil, err }
        out = append(out, j)
    }
    return out, rows.Err()
}

func (p *Postgres) UpdateJourney(ctx context.Context, id string, upd model.JourneyUpdate) (model.Journey, error) {
    var out model.Journey
    err := withTx(ctx, p.db, func(tx *sql.Tx) error {
        cur, err := scanJourney(tx.QueryRowContext(ctx, journeySelect+` WHERE j.id=$1 FOR UPDATE`, id))
        if errors.Is(err, sql.ErrNoRows) { return ErrNotFound }
        if err != nil { return err }

        routeID, driverID := cur.RouteID, cur.DriverID
        if upd.RouteID != "" { routeID = upd.RouteID }
        if upd.DriverID != "" {
            driverID = upd.DriverID
            var one int
            if err := tx.QueryRowContext(ctx, `SELECT 1 FROM drivers WHERE id=$1`, driverID).Scan(&one); err != nil {
                if errors.Is(err, sql.ErrNoRows) { return ErrNotFound }
                return err
            }
        }

        // Lock new and (when the route changed) old scope in sorted order so
        // two concurrent edits cannot deadlock on each other's locks.
        keys := []string{routeID}
        if routeID != cur.RouteID { keys = append(keys, cur.RouteID) }
        sort.Strings(keys)
        for _, k := range keys {
            if err := lockRouteDate(ctx, tx, k, cur.JourneyDate); err != nil {
                return integrity("update journey", "lock", err)
            }
        }

        code, err := routeCodeTx(ctx, tx, routeID)
        if err != nil { return err }
        conflicts, err := checkConflict(ctx, tx, routeID, cur.JourneyDate, upd.StartSeq, upd.EndSeq, id)
        if err != nil { return integrity("update journey", "conflict check", err) }
        if len(conflicts) > 0 {
            return &ConflictError{RouteID: routeID, JourneyDate: cur.JourneyDate, Conflicts: conflicts}
        }

        packages := reconcile.Packages(upd.StartSeq, upd.EndSeq)
        _, err = tx.ExecContext(ctx, `UPDATE journeys SET driver_id=$1, route_id=$2, start_seq=$3, end_seq=$4, packages=$5, updated_at=now() WHERE id=$6`,
            driverID, routeID, upd.StartSeq, upd.EndSeq, packages, id)
        if err != nil { return integrity("update journey", "update", err) }

        if err := syncDeliveries(ctx, tx, id, driverID, routeID, code, cur.JourneyDate, upd.StartSeq, upd.EndSeq); err != nil {
            return err
        }
        out = model.Journey{ID: id, DriverID: driverID, RouteID: routeID, JourneyDate: cur.JourneyDate,
            StartSeq: upd.StartSeq, EndSeq: upd.EndSeq, Packages: packages}
        return nil
    })
    if err != nil { return model.Journey{}, err }
    return out, nil
}

// syncDeliveries reconciles a journey's delivery rows to a new range in
// three ordered steps: prune rows now out of range, re-point the survivors
// (keeping their merged scan data), and fill the sequences that are new.
func syncDeliveries(ctx context.Context, tx *sql.Tx, journeyID, driverID, routeID, routeCode, journeyDate string, newStart, newEnd int) error {
    _, err := tx.ExecContext(ctx, `DELETE FROM deliveries WHERE journey_id=$1 AND (sequence_number < $2 OR sequence_number > $3)`,
        journeyID, newStart, newEnd)
    if err != nil { return integrity("sync deliveries", "prune", err) }

    // seq_route_code expression mirrors model.SeqRouteCode.
    _, err = tx.ExecContext(ctx, `UPDATE deliveries SET driver_id=$1, route_id=$2,
        seq_route_code = sequence_number::text || '-' || $3 WHERE journey_id=$4`,
        driverID, routeID, routeCode, journeyID)
    if err != nil { return integrity("sync deliveries", "re-point", err) }

    rows, err := tx.QueryContext(ctx, `SELECT sequence_number FROM deliveries WHERE journey_id=$1`, journeyID)
    if err != nil { return integrity("sync deliveries", "fill", err) }
    have := map[int]bool{}
    for rows.Next() {
        var s int
        if err := rows.Scan(&s); err != nil { rows.Close(); return integrity("sync deliveries", "fill", err) }
        have[s] = true
    }
    rows.Close()
    if err := rows.Err(); err != nil { return integrity("sync deliveries", "fill", err) }
    for _, seq := range reconcile.MissingSeqs(have, newStart, newEnd) {
        _, err := tx.ExecContext(ctx, `INSERT INTO deliveries
            (id, journey_id, driver_id, route_id, sequence_number, seq_route_code, driver_set_date)
            VALUES ($1,$2,$3,$4,$5,$6,$7::date)`,
            uuid.New().String(), journeyID, driverID, routeID, seq, model.SeqRouteCode(seq, routeCode), journeyDate)
        if err != nil { return integrity("sync deliveries", "fill", err) }
    }
    return nil
}

func (p *Postgres) DeleteJourney(ctx context.Context, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM journeys WHERE id=$1`, id)
    if err != nil { return err }
    n, _ := res.RowsAffected()
    if n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) ListDeliveries(ctx context.Context, journeyID string) ([]model.Delivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, journey_id::text, driver_id::text, route_id::text,
        sequence_number, seq_route_code, driver_set_date::text, address, address_unit, recipient_name, status, final_result
        FROM deliveries WHERE journey_id=$1 ORDER BY sequence_number`, journeyID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Delivery{}
    for rows.Next() {
        var d model.Delivery
        if err := rows.Scan(&d.ID, &d.JourneyID, &d.DriverID, &d.RouteID, &d.SequenceNumber, &d.SeqRouteCode,
            &d.DriverSetDate, &d.Address, &d.AddressUnit, &d.RecipientName, &d.Status, &d.FinalResult); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// Daily scan ingestion

type stagedScan struct {
    seqRouteCode string
    uploadDate   string
    address      string
    addressUnit  string
    recipient    string
    status       string
}

// stageScanRows validates raw rows in Go before any store access: rows
// missing the tracking number or an unparseable signing time are skipped and
// counted, never fatal to the batch.
func stageScanRows(rows []model.DailyScanRow) (staged []stagedScan, skipped int, windowStart, windowEnd string) {
    for _, r := range rows {
        if strings.TrimSpace(r.TrackingNo) == "" || r.Sequence <= 0 || strings.TrimSpace(r.Route) == "" {
            skipped++
            continue
        }
        ct, err := model.ParseCompleteTime(r.CompleteTime)
        if err != nil {
            skipped++
            continue
        }
        code, uploadDate := model.ParseScanRoute(r.Route, ct)
        staged = append(staged, stagedScan{
            seqRouteCode: model.SeqRouteCode(r.Sequence, code),
            uploadDate:   uploadDate,
            address:      strings.TrimSpace(r.Address),
            addressUnit:  strings.TrimSpace(r.AddressUnit),
            recipient:    strings.TrimSpace(r.RecipientName),
            status:       strings.TrimSpace(r.Status),
        })
        if windowStart == "" || uploadDate < windowStart { windowStart = uploadDate }
        if windowEnd == "" || uploadDate > windowEnd { windowEnd = uploadDate }
    }
    return staged, skipped, windowStart, windowEnd
}

func (p *Postgres) IngestDaily(ctx context.Context, rows []model.DailyScanRow) (model.IngestSummary, error) {
    staged, skipped, winStart, winEnd := stageScanRows(rows)
    sum := model.IngestSummary{Processed: len(staged), Skipped: skipped, WindowStart: winStart, WindowEnd: winEnd}
    if len(staged) == 0 {
        return sum, nil
    }
    err := withTx(ctx, p.db, func(tx *sql.Tx) error {
        _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE scan_staging (
            seq_route_code text NOT NULL,
            upload_date    date NOT NULL,
            address        text NOT NULL,
            address_unit   text NOT NULL,
            recipient_name text NOT NULL,
            status         text NOT NULL,
            PRIMARY KEY (seq_route_code, upload_date)
        ) ON COMMIT DROP`)
        if err != nil { return integrity("ingest daily", "stage", err) }
        for _, s := range staged {
            _, err := tx.ExecContext(ctx, `INSERT INTO scan_staging (seq_route_code, upload_date, address, address_unit, recipient_name, status)
                VALUES ($1,$2::date,$3,$4,$5,$6)
                ON CONFLICT (seq_route_code, upload_date) DO UPDATE SET
                  address=EXCLUDED.address, address_unit=EXCLUDED.address_unit,
                  recipient_name=EXCLUDED.recipient_name, status=EXCLUDED.status`,
                s.seqRouteCode, s.uploadDate, s.address, s.addressUnit, s.recipient, s.status)
            if err != nil { return integrity("ingest daily", "stage", err) }
        }

        res, err := tx.ExecContext(ctx, `UPDATE deliveries d SET
            address=s.address, address_unit=s.address_unit, recipient_name=s.recipient_name, status=s.status
            FROM scan_staging s
            WHERE d.seq_route_code = s.seq_route_code AND d.driver_set_date = s.upload_date`)
        if err != nil { return integrity("ingest daily", "merge", err) }
        merged, _ := res.RowsAffected()
        sum.Merged = int(merged)

        // Reset makes re-uploading the same batch idempotent: outcomes and
        // aggregates inside the window are recomputed from scratch.
        _, err = tx.ExecContext(ctx, `UPDATE deliveries SET final_result=$1 WHERE driver_set_date BETWEEN $2::date AND $3::date`,
            model.ResultNotAssigned, winStart, winEnd)
        if err != nil { return integrity("ingest daily", "reset", err) }
        _, err = tx.ExecContext(ctx, `UPDATE journeys SET no_scanned=0, failed_attempt=0, ds=0, first_stop=0, delivered=0,
            is_deliveries_count_added=false, updated_at=now() WHERE journey_date BETWEEN $1::date AND $2::date`, winStart, winEnd)
        if err != nil { return integrity("ingest daily", "reset", err) }

        res, err = tx.ExecContext(ctx, `UPDATE deliveries SET final_result=$1
            WHERE driver_set_date BETWEEN $2::date AND $3::date AND final_result=$4 AND address='' AND recipient_name=''`,
            model.ResultNoScanned, winStart, winEnd, model.ResultNotAssigned)
        if err != nil { return integrity("ingest daily", "classify", err) }
        n, _ := res.RowsAffected()
        sum.NoScanned = int(n)

        res, err = tx.ExecContext(ctx, `UPDATE deliveries SET final_result=$1
            WHERE driver_set_date BETWEEN $2::date AND $3::date AND final_result=$4 AND status ILIKE '%fail%'`,
            model.ResultFailedAttempt, winStart, winEnd, model.ResultNotAssigned)
        if err != nil { return integrity("ingest daily", "classify", err) }
        n, _ = res.RowsAffected()
        sum.FailedAttempt = int(n)

        // Duplicate grouping: first (address, sequence_number) occurrence per
        // (driver, address, recipient, unit) group is the first stop, the
        // rest are double stops. Ordering mirrors reconcile.Classify.
        _, err = tx.ExecContext(ctx, `WITH ranked AS (
                SELECT id, row_number() OVER (
                    PARTITION BY driver_id, address, recipient_name, address_unit
                    ORDER BY address, sequence_number
                ) AS rn
                FROM deliveries
                WHERE final_result=$1 AND driver_set_date BETWEEN $2::date AND $3::date
            )
            UPDATE deliveries d SET final_result = CASE WHEN r.rn = 1 THEN $4 ELSE $5 END
            FROM ranked r WHERE d.id = r.id`,
            model.ResultNotAssigned, winStart, winEnd, model.ResultFirstStop, model.ResultDoubleStop)
        if err != nil { return integrity("ingest daily", "classify", err) }

        row := tx.QueryRowContext(ctx, `SELECT
            COUNT(*) FILTER (WHERE final_result=$1), COUNT(*) FILTER (WHERE final_result=$2)
            FROM deliveries WHERE driver_set_date BETWEEN $3::date AND $4::date`,
            model.ResultFirstStop, model.ResultDoubleStop, winStart, winEnd)
        if err := row.Scan(&sum.FirstStop, &sum.DoubleStop); err != nil {
            return integrity("ingest daily", "classify", err)
        }

        updated, err := aggregateTx(ctx, tx)
        if err != nil { return integrity("ingest daily", "aggregate", err) }
        sum.JourneysUpdate = updated
        return nil
    })
    if err != nil { return model.IngestSummary{}, err }
    return sum, nil
}

// aggregateTx rolls classified deliveries up onto journeys whose guard flag
// is unset, then sets the flag. Journeys already aggregated this cycle are
// untouched, so repeated invocations cannot double count.
func aggregateTx(ctx context.Context, tx *sql.Tx) (int, error) {
    res, err := tx.ExecContext(ctx, `WITH counts AS (
            SELECT j.id,
                COUNT(d.id) FILTER (WHERE d.final_result='no_scanned')     AS no_scanned,
                COUNT(d.id) FILTER (WHERE d.final_result='failed_attempt') AS failed_attempt,
                COUNT(d.id) FILTER (WHERE d.final_result='double_stop')    AS ds,
                COUNT(d.id) FILTER (WHERE d.final_result='first_stop')     AS first_stop
            FROM journeys j
            LEFT JOIN deliveries d ON d.journey_id = j.id
            WHERE j.is_deliveries_count_added = false
            GROUP BY j.id
        )
        UPDATE journeys j SET
            no_scanned=c.no_scanned, failed_attempt=c.failed_attempt, ds=c.ds, first_stop=c.first_stop,
            delivered=c.first_stop + c.ds, is_deliveries_count_added=true, updated_at=now()
        FROM counts c WHERE j.id = c.id`)
    if err != nil { return 0, err }
    n, _ := res.RowsAffected()
    return int(n), nil
}

func (p *Postgres) AggregateCounts(ctx context.Context) (int, error) {
    var updated int
    err := withTx(ctx, p.db, func(tx *sql.Tx) error {
        n, err := aggregateTx(ctx, tx)
        if err != nil { return integrity("aggregate", "aggregate", err) }
        updated = n
        return nil
    })
    return updated, err
}

// Weekly settlement

func (p *Postgres) IngestWeekly(ctx context.Context, rows []model.WeeklyRow) (model.WeeklySummary, error) {
    var sum model.WeeklySummary
    err := withTx(ctx, p.db, func(tx *sql.Tx) error {
        for _, r := range rows {
            if strings.TrimSpace(r.DriverCode) == "" || strings.TrimSpace(r.Route) == "" || !model.ValidDate(r.Date) {
                sum.Skipped++
                continue
            }
            _, err := tx.ExecContext(ctx, `INSERT INTO weekly_totals (driver_code, del_date, del_route, total_deliveries, fs, ds)
                VALUES ($1,$2::date,$3,$4,$5,$6)
                ON CONFLICT (driver_code, del_date, del_route) DO UPDATE SET
                    total_deliveries = weekly_totals.total_deliveries + EXCLUDED.total_deliveries,
                    fs = weekly_totals.fs + EXCLUDED.fs,
                    ds = weekly_totals.ds + EXCLUDED.ds`,
                r.DriverCode, r.Date, r.Route, r.Deliveries, r.FirstStop, r.DoubleStop)
            if err != nil { return integrity("ingest weekly", "upsert", err) }
            sum.Processed++
        }
        return nil
    })
    if err != nil { return model.WeeklySummary{}, err }
    return sum, nil
}

func (p *Postgres) ListWeeklyTotals(ctx context.Context, driverCode, from, to string) ([]model.WeeklyTotal, error) {
    w := &where{}
    w.addIf("driver_code", "=", driverCode)
    w.addIf("del_date::text", ">=", from)
    w.addIf("del_date::text", "<=", to)
    clause, args := w.SQL()
    rows, err := p.db.QueryContext(ctx, `SELECT driver_code, del_date::text, del_route, total_deliveries, fs, ds FROM weekly_totals`+
        clause+` ORDER BY del_date, driver_code, del_route`, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.WeeklyTotal{}
    for rows.Next() {
        var t model.WeeklyTotal
        if err := rows.Scan(&t.DriverCode, &t.DelDate, &t.DelRoute, &t.TotalDeliveries, &t.FS, &t.DS); err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

// Payments

func (p *Postgres) PaymentSummary(ctx context.Context, driverID, from, to string, rates model.PayRates) ([]model.PaymentLine, error) {
    w := &where{}
    w.addIf("j.driver_id", "=", driverID)
    w.addIf("j.journey_date::text", ">=", from)
    w.addIf("j.journey_date::text", "<=", to)
    clause, args := w.SQL()
    rows, err := p.db.QueryContext(ctx, `SELECT j.driver_id::text, COALESCE(d.name,''), j.journey_date::text,
        SUM(j.delivered), SUM(j.first_stop), SUM(j.ds), SUM(j.no_scanned), SUM(j.failed_attempt)
        FROM journeys j LEFT JOIN drivers d ON d.id = j.driver_id`+clause+
        ` GROUP BY j.driver_id, d.name, j.journey_date ORDER BY j.journey_date, d.name`, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.PaymentLine{}
    for rows.Next() {
        var l model.PaymentLine
        if err := rows.Scan(&l.DriverID, &l.DriverName, &l.Date, &l.Delivered, &l.FirstStop, &l.DS, &l.NoScanned, &l.FailedAttempt); err != nil {
            return nil, err
        }
        l.Amount = float64(l.FirstStop)*rates.FirstStop + float64(l.DS)*rates.DoubleStop
        out = append(out, l)
    }
    return out, rows.Err()
}

func nullIfEmpty(s string) any {
    if s == "" { return nil }
    return s
}
