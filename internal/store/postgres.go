package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hospmon/internal/db"
	"github.com/sells-group/hospmon/internal/monitor"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Migrate applies pending schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
		id, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{ID: id, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result RunResult) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, completed_at = $2, feed_etag = $3, artifact_path = $4,
		     row_count = $5, new_confirm = $6, new_death = $7, new_recover = $8
		 WHERE id = $9`,
		string(RunStatusComplete), time.Now().UTC(), result.FeedETag, result.ArtifactPath,
		result.Summary.Rows, result.Summary.NewConfirm, result.Summary.NewDeath, result.Summary.NewRecover,
		runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`,
		string(RunStatusFailed), time.Now().UTC(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

const selectRun = `SELECT id, status, started_at, completed_at, feed_etag, artifact_path,
	row_count, new_confirm, new_death, new_recover, error FROM runs`

// LastSuccess returns the most recent complete run, or nil if there is none.
func (s *PostgresStore) LastSuccess(ctx context.Context) (*Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx,
		selectRun+` WHERE status = $1 ORDER BY started_at DESC LIMIT 1`,
		string(RunStatusComplete),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last success")
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := selectRun + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresRun(row pgx.Row) (*Run, error) {
	var r Run
	var status string
	var completedAt *time.Time
	var etag, artifact, errStr *string

	if err := row.Scan(&r.ID, &status, &r.StartedAt, &completedAt, &etag, &artifact,
		&r.RowCount, &r.NewConfirm, &r.NewDeath, &r.NewRecover, &errStr); err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	r.CompletedAt = completedAt
	if etag != nil {
		r.FeedETag = *etag
	}
	if artifact != nil {
		r.ArtifactPath = *artifact
	}
	if errStr != nil {
		r.Error = *errStr
	}
	return &r, nil
}

// SaveSnapshot upserts rows into hospital_daily and records the run's
// region totals.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, runID string, rows []monitor.FinalRow) (int64, error) {
	log := zap.L().With(zap.String("component", "store.postgres"), zap.String("run_id", runID))

	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		v, err := snapshotValues(runID, r.Date, r)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: save snapshot")
		}
		values = append(values, v)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "hospital_daily",
		Columns:      snapshotColumns,
		ConflictKeys: snapshotKeys,
	}, values)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save snapshot")
	}

	totals := regionTotals(runID, rows)
	totalRows := make([][]any, len(totals))
	for i, t := range totals {
		totalRows[i] = []any{t.RunID, t.TotalArea, t.Hospitals, t.NewConfirm, t.NewDeath, t.NewRecover}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "region_totals",
		[]string{"run_id", "total_area", "hospitals", "new_confirm", "new_death", "new_recover"},
		totalRows,
	); err != nil {
		return n, eris.Wrap(err, "postgres: save region totals")
	}

	log.Info("snapshot saved", zap.Int64("rows", n), zap.Int("regions", len(totals)))
	return n, nil
}

func (s *PostgresStore) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT report_date FROM hospital_daily ORDER BY report_date`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dates")
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "postgres: scan date")
		}
		dates = append(dates, d)
	}
	return dates, eris.Wrap(rows.Err(), "postgres: list dates iterate")
}

func (s *PostgresStore) Hospitals(ctx context.Context, date time.Time) ([]monitor.FinalRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectSnapshot+` FROM hospital_daily
		 WHERE report_date = $1 ORDER BY total_area, hospital_id`,
		date,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: hospitals on %s", date.Format(monitor.DateLayout))
	}
	defer rows.Close()

	var out []monitor.FinalRow
	for rows.Next() {
		var r monitor.FinalRow
		if err := rows.Scan(&r.Date, &r.TotalArea, &r.HospitalID, &r.RegistrationArea, &r.LegalName,
			&r.Lat, &r.Lng, &r.Gender, &r.AgeGroup, &r.Conditions, &r.MedicalWorker,
			&r.NewSusp, &r.NewConfirm, &r.ActiveConfirm, &r.NewDeath, &r.NewRecover, &r.PendingSusp,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hospital row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: hospitals iterate")
}

func (s *PostgresStore) RegionTotals(ctx context.Context, runID string) ([]RegionTotal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, total_area, hospitals, new_confirm, new_death, new_recover
		 FROM region_totals WHERE run_id = $1 ORDER BY total_area`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: region totals %s", runID)
	}
	defer rows.Close()

	var out []RegionTotal
	for rows.Next() {
		var t RegionTotal
		if err := rows.Scan(&t.RunID, &t.TotalArea, &t.Hospitals, &t.NewConfirm, &t.NewDeath, &t.NewRecover); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region total")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: region totals iterate")
}
