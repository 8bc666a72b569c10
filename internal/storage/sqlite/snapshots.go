// Package sqlite keeps the history of generated top-issues reports.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("snapshot not found")

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Snapshot is one stored report run. Report is only populated by GetSnapshot.
type Snapshot struct {
	ID           int64           `json:"id"`
	GeneratedAt  time.Time       `json:"generatedAt"`
	Trigger      string          `json:"trigger"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	ProductLine  string          `json:"productLine"`
	MinCount     int             `json:"minCount"`
	TotalInScope int             `json:"totalTicketsInScope"`
	IssueCount   int             `json:"issueCount"`
	Narrative    string          `json:"narrative,omitempty"`
	Report       json.RawMessage `json:"report,omitempty"`
}

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS report_snapshots (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		generated_at   DATETIME NOT NULL,
		triggered_by   TEXT NOT NULL DEFAULT 'schedule',
		start_date     TEXT DEFAULT '',
		end_date       TEXT DEFAULT '',
		product_line   TEXT DEFAULT '',
		min_count      INTEGER NOT NULL DEFAULT 1,
		total_in_scope INTEGER NOT NULL DEFAULT 0,
		issue_count    INTEGER NOT NULL DEFAULT 0,
		report_json    TEXT NOT NULL,
		narrative      TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_generated_at ON report_snapshots(generated_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func InsertSnapshot(db *sql.DB, s Snapshot) (int64, error) {
	report := string(s.Report)
	if report == "" {
		report = "{}"
	}
	res, err := db.Exec(
		`INSERT INTO report_snapshots (generated_at, triggered_by, start_date, end_date, product_line, min_count, total_in_scope, issue_count, report_json, narrative)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.GeneratedAt.UTC(), s.Trigger, s.StartDate, s.EndDate, s.ProductLine,
		s.MinCount, s.TotalInScope, s.IssueCount, report, s.Narrative,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSnapshots returns the newest snapshots first, without report bodies.
func ListSnapshots(db *sql.DB, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT id, generated_at, triggered_by, start_date, end_date, product_line, min_count, total_in_scope, issue_count, narrative
		 FROM report_snapshots ORDER BY generated_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		err := rows.Scan(
			&s.ID, &s.GeneratedAt, &s.Trigger, &s.StartDate, &s.EndDate, &s.ProductLine,
			&s.MinCount, &s.TotalInScope, &s.IssueCount, &s.Narrative,
		)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func GetSnapshot(db *sql.DB, id int64) (Snapshot, error) {
	var s Snapshot
	var report string
	err := db.QueryRow(
		`SELECT id, generated_at, triggered_by, start_date, end_date, product_line, min_count, total_in_scope, issue_count, narrative, report_json
		 FROM report_snapshots WHERE id = ?`,
		id,
	).Scan(
		&s.ID, &s.GeneratedAt, &s.Trigger, &s.StartDate, &s.EndDate, &s.ProductLine,
		&s.MinCount, &s.TotalInScope, &s.IssueCount, &s.Narrative, &report,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	s.Report = json.RawMessage(report)
	return s, nil
}
