package repo

import (
    "context"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/larkinmaxim/JiraIssueLogger/internal/domain"
    "github.com/rs/zerolog/log"
)

type DB struct {
    Pool *pgxpool.Pool
}

func MustOpen(ctx context.Context, cfg config.Config) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil {
        log.Fatal().Err(err).Msg("db: cannot create pool")
    }
    if err := pool.Ping(ctx); err != nil {
        log.Fatal().Err(err).Msg("db: cannot ping")
    }
    return &DB{Pool: pool}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db *DB
}

func NewRepository(db *DB) *Repository { return &Repository{db: db} }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS issue_facts (
    issue_key          TEXT PRIMARY KEY,
    summary            TEXT,
    status             TEXT,
    project_ticket     TEXT,
    planned_dev_start  TIMESTAMPTZ,
    planned_dev_finish TIMESTAMPTZ,
    planned_duration   DOUBLE PRECISION,
    actual_start       TIMESTAMPTZ,
    actual_finish      TIMESTAMPTZ,
    actual_duration    DOUBLE PRECISION,
    details_updated_at TIMESTAMPTZ,
    last_updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_issue_facts_status ON issue_facts (status);

CREATE TABLE IF NOT EXISTS sync_runs (
    id          BIGSERIAL PRIMARY KEY,
    job         TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at TIMESTAMPTZ,
    ok          BOOLEAN,
    detail      TEXT
);
CREATE INDEX IF NOT EXISTS idx_sync_runs_job_started ON sync_runs (job, started_at DESC);
`

func (r *Repository) EnsureSchema(ctx context.Context) error {
    _, err := r.db.Pool.Exec(ctx, schemaSQL)
    return err
}

// UpsertStatuses writes the status-sync view of each issue. Detail columns
// (actual_*) are never touched here; they belong to the detail collectors.
// Returns (inserted, updated) counts.
func (r *Repository) UpsertStatuses(ctx context.Context, facts []domain.IssueFact) (int, int, error) {
    if len(facts) == 0 { return 0, 0, nil }
    batch := &pgx.Batch{}
    for _, f := range facts {
        batch.Queue(`
            INSERT INTO issue_facts
                (issue_key, summary, status, project_ticket,
                 planned_dev_start, planned_dev_finish, planned_duration, last_updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,now())
            ON CONFLICT (issue_key) DO UPDATE SET
                summary            = EXCLUDED.summary,
                status             = EXCLUDED.status,
                project_ticket     = EXCLUDED.project_ticket,
                planned_dev_start  = EXCLUDED.planned_dev_start,
                planned_dev_finish = EXCLUDED.planned_dev_finish,
                planned_duration   = EXCLUDED.planned_duration,
                last_updated_at    = now()
            RETURNING (xmax = 0)`,
            f.IssueKey, f.Summary, f.Status, f.ProjectTicket,
            f.PlannedDevStart, f.PlannedDevFinish, f.PlannedDuration)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    inserted, updated := 0, 0
    for range facts {
        var isInsert bool
        if err := br.QueryRow().Scan(&isInsert); err != nil { return inserted, updated, err }
        if isInsert { inserted++ } else { updated++ }
    }
    return inserted, updated, nil
}

// UpdateDetails writes the inferred actuals for already-known issues.
func (r *Repository) UpdateDetails(ctx context.Context, facts []domain.IssueFact) error {
    if len(facts) == 0 { return nil }
    batch := &pgx.Batch{}
    for _, f := range facts {
        batch.Queue(`
            UPDATE issue_facts SET
                actual_start       = $2,
                actual_finish      = $3,
                actual_duration    = $4,
                details_updated_at = COALESCE($5, details_updated_at),
                last_updated_at    = now()
            WHERE issue_key = $1`,
            f.IssueKey, f.ActualStart, f.ActualFinish, f.ActualDuration, f.DetailsUpdatedAt)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range facts {
        if _, err := br.Exec(); err != nil { return err }
    }
    return nil
}

// IssuesNeedingDetails returns keys in any of the given statuses whose
// actuals are still incomplete.
func (r *Repository) IssuesNeedingDetails(ctx context.Context, statuses []string) ([]string, error) {
    rows, err := r.db.Pool.Query(ctx, `
        SELECT issue_key FROM issue_facts
        WHERE status = ANY($1)
          AND (actual_start IS NULL OR actual_finish IS NULL OR actual_duration IS NULL)
        ORDER BY issue_key`, statuses)
    if err != nil { return nil, err }
    defer rows.Close()
    var keys []string
    for rows.Next() {
        var k string
        if err := rows.Scan(&k); err != nil { return nil, err }
        keys = append(keys, k)
    }
    return keys, rows.Err()
}

// IssuesByStatus returns all keys currently in any of the given statuses,
// regardless of detail completeness.
func (r *Repository) IssuesByStatus(ctx context.Context, statuses []string) ([]string, error) {
    rows, err := r.db.Pool.Query(ctx, `
        SELECT issue_key FROM issue_facts
        WHERE status = ANY($1)
        ORDER BY issue_key`, statuses)
    if err != nil { return nil, err }
    defer rows.Close()
    var keys []string
    for rows.Next() {
        var k string
        if err := rows.Scan(&k); err != nil { return nil, err }
        keys = append(keys, k)
    }
    return keys, rows.Err()
}

// Advisory lock serializes the scheduled jobs across replicas sharing the
// database. HTTP-triggered runs are operator-driven and do not take it.
func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var got bool
    err := r.db.Pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&got)
    return got, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    _, err := r.db.Pool.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key)
    return err
}

type LastRun struct {
    ID         int64      `json:"id"`
    Job        string     `json:"job"`
    StartedAt  time.Time  `json:"started_at"`
    FinishedAt *time.Time `json:"finished_at"`
    OK         *bool      `json:"ok"`
    Detail     *string    `json:"detail"`
}

func (r *Repository) StartSyncRun(ctx context.Context, job string) (int64, error) {
    var id int64
    err := r.db.Pool.QueryRow(ctx,
        `INSERT INTO sync_runs (job) VALUES ($1) RETURNING id`, job).Scan(&id)
    return id, err
}

func (r *Repository) FinishSyncRun(ctx context.Context, id int64, ok bool, detail string) error {
    _, err := r.db.Pool.Exec(ctx,
        `UPDATE sync_runs SET finished_at = now(), ok = $2, detail = $3 WHERE id = $1`,
        id, ok, detail)
    return err
}

func (r *Repository) GetLastRun(ctx context.Context, job string) (*LastRun, error) {
    var lr LastRun
    err := r.db.Pool.QueryRow(ctx, `
        SELECT id, job, started_at, finished_at, ok, detail
        FROM sync_runs WHERE job = $1
        ORDER BY started_at DESC LIMIT 1`, job).
        Scan(&lr.ID, &lr.Job, &lr.StartedAt, &lr.FinishedAt, &lr.OK, &lr.Detail)
    if err == pgx.ErrNoRows { return nil, nil }
    if err != nil { return nil, err }
    return &lr, nil
}
