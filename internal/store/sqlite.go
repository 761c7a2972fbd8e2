package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hospmon/internal/monitor"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'running',
	started_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at  DATETIME,
	feed_etag     TEXT,
	artifact_path TEXT,
	row_count     INTEGER NOT NULL DEFAULT 0,
	new_confirm   INTEGER NOT NULL DEFAULT 0,
	new_death     INTEGER NOT NULL DEFAULT 0,
	new_recover   INTEGER NOT NULL DEFAULT 0,
	error         TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_status_started ON runs(status, started_at);

CREATE TABLE IF NOT EXISTS hospital_daily (
	report_date       TEXT NOT NULL,
	total_area        TEXT NOT NULL,
	hospital_id       TEXT NOT NULL,
	registration_area TEXT NOT NULL DEFAULT '',
	legal_name        TEXT NOT NULL DEFAULT '',
	lat               REAL NOT NULL DEFAULT 0,
	lng               REAL NOT NULL DEFAULT 0,
	location          BLOB,
	person_gender     TEXT NOT NULL DEFAULT '',
	person_age_group  TEXT NOT NULL DEFAULT '',
	add_conditions    TEXT NOT NULL DEFAULT '',
	is_medical_worker TEXT NOT NULL DEFAULT '',
	new_susp          INTEGER NOT NULL DEFAULT 0,
	new_confirm       INTEGER NOT NULL DEFAULT 0,
	active_confirm    INTEGER NOT NULL DEFAULT 0,
	new_death         INTEGER NOT NULL DEFAULT 0,
	new_recover       INTEGER NOT NULL DEFAULT 0,
	pending_susp      INTEGER NOT NULL DEFAULT 0,
	run_id            TEXT REFERENCES runs(id),
	PRIMARY KEY (report_date, total_area, hospital_id)
);

CREATE INDEX IF NOT EXISTS idx_hospital_daily_hospital ON hospital_daily(hospital_id);

CREATE TABLE IF NOT EXISTS region_totals (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	total_area  TEXT NOT NULL,
	hospitals   INTEGER NOT NULL DEFAULT 0,
	new_confirm INTEGER NOT NULL DEFAULT 0,
	new_death   INTEGER NOT NULL DEFAULT 0,
	new_recover INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, total_area)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{ID: id, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result RunResult) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs
		 SET status = ?, completed_at = ?, feed_etag = ?, artifact_path = ?,
		     row_count = ?, new_confirm = ?, new_death = ?, new_recover = ?
		 WHERE id = ?`,
		string(RunStatusComplete), time.Now().UTC(), result.FeedETag, result.ArtifactPath,
		result.Summary.Rows, result.Summary.NewConfirm, result.Summary.NewDeath, result.Summary.NewRecover,
		runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(RunStatusFailed), time.Now().UTC(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// LastSuccess returns the most recent complete run, or nil if there is none.
func (s *SQLiteStore) LastSuccess(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		selectRun+` WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		string(RunStatusComplete),
	)
	r, err := scanSQLiteRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last success")
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := selectRun + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveSnapshot upserts rows into hospital_daily and records the run's
// region totals in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, runID string, rows []monitor.FinalRow) (int64, error) {
	log := zap.L().With(zap.String("component", "store.sqlite"), zap.String("run_id", runID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin snapshot")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertSQL())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare snapshot upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, r := range rows {
		v, err := snapshotValues(runID, r.Date.Format(monitor.DateLayout), r)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: save snapshot")
		}
		if _, err := stmt.ExecContext(ctx, v...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert hospital %q", r.HospitalID)
		}
		n++
	}

	totals := regionTotals(runID, rows)
	for _, t := range totals {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO region_totals (run_id, total_area, hospitals, new_confirm, new_death, new_recover)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.RunID, t.TotalArea, t.Hospitals, t.NewConfirm, t.NewDeath, t.NewRecover,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert region total %q", t.TotalArea)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit snapshot")
	}

	log.Info("snapshot saved", zap.Int64("rows", n), zap.Int("regions", len(totals)))
	return n, nil
}

func sqliteUpsertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(snapshotColumns)), ", ")

	keys := make(map[string]bool, len(snapshotKeys))
	for _, k := range snapshotKeys {
		keys[k] = true
	}
	var sets []string
	for _, c := range snapshotColumns {
		if !keys[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}

	return `INSERT INTO hospital_daily (` + strings.Join(snapshotColumns, ", ") + `)
		VALUES (` + placeholders + `)
		ON CONFLICT (` + strings.Join(snapshotKeys, ", ") + `) DO UPDATE SET ` + strings.Join(sets, ", ")
}

func (s *SQLiteStore) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT report_date FROM hospital_daily ORDER BY report_date`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dates")
	}
	defer rows.Close() //nolint:errcheck

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan date")
		}
		d, err := monitor.ParseReportDate(raw)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: parse date")
		}
		dates = append(dates, d)
	}
	return dates, eris.Wrap(rows.Err(), "sqlite: list dates iterate")
}

func (s *SQLiteStore) Hospitals(ctx context.Context, date time.Time) ([]monitor.FinalRow, error) {
	day := date.Format(monitor.DateLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectSnapshot+` FROM hospital_daily
		 WHERE report_date = ? ORDER BY total_area, hospital_id`,
		day,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: hospitals on %s", day)
	}
	defer rows.Close() //nolint:errcheck

	var out []monitor.FinalRow
	for rows.Next() {
		var r monitor.FinalRow
		var raw string
		if err := rows.Scan(&raw, &r.TotalArea, &r.HospitalID, &r.RegistrationArea, &r.LegalName,
			&r.Lat, &r.Lng, &r.Gender, &r.AgeGroup, &r.Conditions, &r.MedicalWorker,
			&r.NewSusp, &r.NewConfirm, &r.ActiveConfirm, &r.NewDeath, &r.NewRecover, &r.PendingSusp,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hospital row")
		}
		if r.Date, err = monitor.ParseReportDate(raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse date")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: hospitals iterate")
}

func (s *SQLiteStore) RegionTotals(ctx context.Context, runID string) ([]RegionTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, total_area, hospitals, new_confirm, new_death, new_recover
		 FROM region_totals WHERE run_id = ? ORDER BY total_area`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: region totals %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []RegionTotal
	for rows.Next() {
		var t RegionTotal
		if err := rows.Scan(&t.RunID, &t.TotalArea, &t.Hospitals, &t.NewConfirm, &t.NewDeath, &t.NewRecover); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region total")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: region totals iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*Run, error) {
	var r Run
	var status string
	var completedAt sql.NullTime
	var etag, artifact, errStr sql.NullString

	if err := row.Scan(&r.ID, &status, &r.StartedAt, &completedAt, &etag, &artifact,
		&r.RowCount, &r.NewConfirm, &r.NewDeath, &r.NewRecover, &errStr); err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	r.FeedETag = etag.String
	r.ArtifactPath = artifact.String
	r.Error = errStr.String
	return &r, nil
}
