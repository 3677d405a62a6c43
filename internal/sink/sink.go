// Package sink persists passing BranchResults to a SQLite-backed store,
// grounded on the pure-Go sqlite driver and profile-based PRAGMA tuning
// the teacher uses for its own databases.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	_ "modernc.org/sqlite"

	"github.com/aristath/sentinel/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS branch_results (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	signal_ticker TEXT NOT NULL,
	invest_ticker TEXT NOT NULL,
	family TEXT NOT NULL,
	window INTEGER NOT NULL,
	comparator TEXT NOT NULL,
	threshold REAL NOT NULL,
	extra BLOB,
	is_metrics BLOB NOT NULL,
	oos_metrics BLOB NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_branch_results_job_id ON branch_results(job_id);
`

// DB wraps a results database connection with the journal-mode and
// cache-size PRAGMAs appropriate for a write-heavy, single-writer sink.
type DB struct {
	conn *sql.DB
}

// Open creates (if needed) and opens the results database at path.
func Open(path string) (*DB, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("sink: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("sink: create directory: %w", err)
	}

	connStr := absPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=cache_size(-64000)"

	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("sink: open: %w", err)
	}
	conn.SetMaxOpenConns(1) // single writer; WAL still allows concurrent readers
	conn.SetConnMaxLifetime(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sink: ping: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("sink: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// l2Payload is the msgpack-encoded form of a Branch's optional L2 clause.
type l2Payload struct {
	Family     domain.Family     `msgpack:"family"`
	Window     int               `msgpack:"window"`
	Comparator domain.Comparator `msgpack:"comparator"`
	Threshold  float64           `msgpack:"threshold"`
}

// WriteBatch inserts results in a single transaction, satisfying
// internal/job.Sink (spec §4.9 batched writes).
func (db *DB) WriteBatch(jobID string, results []domain.BranchResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("sink: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO branch_results
			(id, job_id, signal_ticker, invest_ticker, family, window, comparator, threshold, extra, is_metrics, oos_metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sink: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		var extra []byte
		if r.Branch.L2 != nil {
			extra, err = msgpack.Marshal(l2Payload{
				Family:     r.Branch.L2.Family,
				Window:     r.Branch.L2.Window,
				Comparator: r.Branch.L2.Comparator,
				Threshold:  r.Branch.L2.Threshold,
			})
			if err != nil {
				return fmt.Errorf("sink: encode l2: %w", err)
			}
		}

		isBlob, err := msgpack.Marshal(r.IS)
		if err != nil {
			return fmt.Errorf("sink: encode is metrics: %w", err)
		}
		oosBlob, err := msgpack.Marshal(r.OOS)
		if err != nil {
			return fmt.Errorf("sink: encode oos metrics: %w", err)
		}

		_, err = stmt.Exec(
			r.ID, jobID, r.Branch.SignalTicker, r.Branch.InvestTicker, string(r.Branch.Family),
			r.Branch.Window, string(r.Branch.Comparator), r.Branch.Threshold, extra, isBlob, oosBlob, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sink: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sink: commit: %w", err)
	}
	return nil
}

// ListByJob returns all persisted results for jobID, newest first.
func (db *DB) ListByJob(jobID string) ([]domain.BranchResult, error) {
	rows, err := db.conn.Query(`
		SELECT id, signal_ticker, invest_ticker, family, window, comparator, threshold, extra, is_metrics, oos_metrics, created_at
		FROM branch_results WHERE job_id = ? ORDER BY created_at DESC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("sink: query: %w", err)
	}
	defer rows.Close()

	var out []domain.BranchResult
	for rows.Next() {
		var r domain.BranchResult
		var family, comparator string
		var extra, isBlob, oosBlob []byte
		r.JobID = jobID
		if err := rows.Scan(&r.ID, &r.Branch.SignalTicker, &r.Branch.InvestTicker, &family, &r.Branch.Window,
			&comparator, &r.Branch.Threshold, &extra, &isBlob, &oosBlob, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sink: scan: %w", err)
		}
		r.Branch.Family = domain.Family(family)
		r.Branch.Comparator = domain.Comparator(comparator)

		if extra != nil {
			var payload l2Payload
			if err := msgpack.Unmarshal(extra, &payload); err != nil {
				return nil, fmt.Errorf("sink: decode l2: %w", err)
			}
			r.Branch.L2 = &domain.L2Condition{
				Family: payload.Family, Window: payload.Window,
				Comparator: payload.Comparator, Threshold: payload.Threshold,
			}
		}
		if err := msgpack.Unmarshal(isBlob, &r.IS); err != nil {
			return nil, fmt.Errorf("sink: decode is metrics: %w", err)
		}
		if err := msgpack.Unmarshal(oosBlob, &r.OOS); err != nil {
			return nil, fmt.Errorf("sink: decode oos metrics: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
