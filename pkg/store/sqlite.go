// Package store persists run artifacts (snapshot rows and finished-job
// summaries) to SQLite for later analysis.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/huyongqii/green-energy/pkg/models"
)

// SQLiteStore is a SQLite-backed store for simulation output
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL with a busy timeout keeps the writer responsive while the
	// analyze command reads a live database.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time REAL NOT NULL,
		datetime DATETIME NOT NULL,
		running_jobs INTEGER NOT NULL,
		waiting_jobs INTEGER NOT NULL,
		nb_computing INTEGER NOT NULL,
		nb_idle INTEGER NOT NULL,
		nb_sleeping INTEGER NOT NULL,
		nb_powered_off INTEGER NOT NULL,
		nb_switching_to_sleep INTEGER NOT NULL,
		nb_waking_from_sleep INTEGER NOT NULL,
		nb_powering_on INTEGER NOT NULL,
		nb_powering_off INTEGER NOT NULL,
		utilization_rate REAL NOT NULL,
		current_power REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS job_results (
		job_id TEXT PRIMARY KEY,
		requested_resources INTEGER NOT NULL,
		allocation TEXT NOT NULL,
		status TEXT NOT NULL,
		submit_time REAL NOT NULL,
		start_time REAL NOT NULL,
		finish_time REAL NOT NULL,
		wait_time REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_time ON records(time);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one snapshot row; implements record.Recorder
func (s *SQLiteStore) Record(rec models.SystemRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO records (
			time, datetime, running_jobs, waiting_jobs,
			nb_computing, nb_idle, nb_sleeping, nb_powered_off,
			nb_switching_to_sleep, nb_waking_from_sleep,
			nb_powering_on, nb_powering_off,
			utilization_rate, current_power
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Time, rec.Datetime, rec.RunningJobs, rec.WaitingJobs,
		rec.NbComputing, rec.NbIdle, rec.NbSleeping, rec.NbPoweredOff,
		rec.NbSwitchingToSleep, rec.NbWakingFromSleep,
		rec.NbPoweringOn, rec.NbPoweringOff,
		rec.UtilizationRate, rec.CurrentPower,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// SaveJobResult inserts one finished-job summary; implements
// sched.ResultSink.
func (s *SQLiteStore) SaveJobResult(result models.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allocation, err := json.Marshal(result.Allocation)
	if err != nil {
		return fmt.Errorf("marshal allocation: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO job_results (
			job_id, requested_resources, allocation, status,
			submit_time, start_time, finish_time, wait_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.JobID, result.RequestedResources, string(allocation),
		string(result.Status), result.SubmitTime, result.StartTime,
		result.FinishTime, result.WaitTime,
	)
	if err != nil {
		return fmt.Errorf("insert job result: %w", err)
	}
	return nil
}

// ListRecords returns all snapshot rows in time order
func (s *SQLiteStore) ListRecords() ([]models.SystemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT time, datetime, running_jobs, waiting_jobs,
		       nb_computing, nb_idle, nb_sleeping, nb_powered_off,
		       nb_switching_to_sleep, nb_waking_from_sleep,
		       nb_powering_on, nb_powering_off,
		       utilization_rate, current_power
		FROM records ORDER BY time`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.SystemRecord
	for rows.Next() {
		var rec models.SystemRecord
		err := rows.Scan(
			&rec.Time, &rec.Datetime, &rec.RunningJobs, &rec.WaitingJobs,
			&rec.NbComputing, &rec.NbIdle, &rec.NbSleeping, &rec.NbPoweredOff,
			&rec.NbSwitchingToSleep, &rec.NbWakingFromSleep,
			&rec.NbPoweringOn, &rec.NbPoweringOff,
			&rec.UtilizationRate, &rec.CurrentPower,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListJobResults returns all finished jobs ordered by finish time
func (s *SQLiteStore) ListJobResults() ([]models.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT job_id, requested_resources, allocation, status,
		       submit_time, start_time, finish_time, wait_time
		FROM job_results ORDER BY finish_time`)
	if err != nil {
		return nil, fmt.Errorf("query job results: %w", err)
	}
	defer rows.Close()

	var results []models.JobResult
	for rows.Next() {
		var result models.JobResult
		var allocation string
		var status string
		err := rows.Scan(
			&result.JobID, &result.RequestedResources, &allocation, &status,
			&result.SubmitTime, &result.StartTime, &result.FinishTime, &result.WaitTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job result: %w", err)
		}
		if err := json.Unmarshal([]byte(allocation), &result.Allocation); err != nil {
			return nil, fmt.Errorf("unmarshal allocation: %w", err)
		}
		result.Status = models.JobStatus(status)
		results = append(results, result)
	}
	return results, rows.Err()
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
