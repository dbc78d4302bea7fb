package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/quotawatch/quotawatch/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, total, failed)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, len(run.Records), run.FailedCount(),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	for i, rec := range run.Records {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO usage_records (id, run_id, position, account, label, service_type,
			   balance, remaining_gb, used_gb, main_quota_gb,
			   addon_names, addons_price, renewal_cost, total_cost, renewal_date, success)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), run.ID, i,
			rec.Account.Number, rec.Account.Label, rec.Account.ServiceType,
			rec.Balance, rec.Remaining, rec.Used, rec.MainQuota,
			rec.AddonNames, rec.AddonsPrice, rec.RenewalCost, rec.TotalCost,
			rec.RenewalDate, rec.Success,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT account, label, service_type, balance, remaining_gb, used_gb, main_quota_gb,
		   addon_names, addons_price, renewal_cost, total_cost, renewal_date, success
		 FROM usage_records WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.Usage
		var renewal sql.NullTime
		if err := rows.Scan(&rec.Account.Number, &rec.Account.Label, &rec.Account.ServiceType,
			&rec.Balance, &rec.Remaining, &rec.Used, &rec.MainQuota,
			&rec.AddonNames, &rec.AddonsPrice, &rec.RenewalCost, &rec.TotalCost,
			&renewal, &rec.Success); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		if renewal.Valid {
			t := renewal.Time
			rec.RenewalDate = &t
		}
		run.Records = append(run.Records, rec)
	}
	return &run, rows.Err()
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
