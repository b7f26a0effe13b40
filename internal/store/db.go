package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/antlu/statusbot/internal/meeting"
)

const schema = `
	CREATE TABLE IF NOT EXISTS minutes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		opened_at TEXT NOT NULL,
		closed_at TEXT NOT NULL,
		missing TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS minute_reports (
		minute_id INTEGER NOT NULL,
		nick TEXT NOT NULL,
		report TEXT NOT NULL,
		reported_at TEXT NOT NULL,
		PRIMARY KEY (minute_id, nick),
		FOREIGN KEY (minute_id) REFERENCES minutes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS digest_state (
		board_id TEXT PRIMARY KEY,
		watermark TEXT NOT NULL
	);
`

// DB archives meeting minutes and remembers the activity digest watermark.
type DB struct {
	*sql.DB
}

// ArchivedMinutes is a row of the minutes archive.
type ArchivedMinutes struct {
	ID int64
	meeting.Minutes
}

var _ meeting.Archive = (*DB)(nil)

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	return &DB{DB: db}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func bulkInsert(ctx context.Context, ex execer, tableName string, columns []string, valGroups [][]any) error {
	if len(valGroups) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []any
	)

	for _, valGroup := range valGroups {
		if len(valGroup) != len(columns) {
			return errors.New("values count doesn't match columns count")
		}

		placeholders = append(placeholders, "("+strings.TrimRight(strings.Repeat("?,", len(columns)), ",")+")")
		args = append(args, valGroup...)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		tableName,
		strings.Join(columns, ","),
		strings.Join(placeholders, ","),
	)

	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func (db *DB) SaveMinutes(ctx context.Context, m meeting.Minutes) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO minutes (channel, opened_at, closed_at, missing) VALUES (?, ?, ?, ?)",
		m.Channel, formatTime(m.OpenedAt), formatTime(m.ClosedAt), strings.Join(m.Missing, ","),
	)
	if err != nil {
		return 0, fmt.Errorf("error inserting minutes: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	rows := make([][]any, len(m.Reports))
	for i, r := range m.Reports {
		rows[i] = []any{id, r.Nick, r.Text, formatTime(r.At)}
	}
	if err := bulkInsert(ctx, tx, "minute_reports", []string{"minute_id", "nick", "report", "reported_at"}, rows); err != nil {
		return 0, fmt.Errorf("error inserting reports: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListMinutes returns the newest archived minutes first.
func (db *DB) ListMinutes(ctx context.Context, limit int) ([]ArchivedMinutes, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, channel, opened_at, closed_at, missing FROM minutes ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying minutes: %w", err)
	}

	var out []ArchivedMinutes
	for rows.Next() {
		var (
			am                      ArchivedMinutes
			opened, closed, missing string
		)
		if err := rows.Scan(&am.ID, &am.Channel, &opened, &closed, &missing); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning minutes: %w", err)
		}
		if am.OpenedAt, err = parseTime(opened); err != nil {
			rows.Close()
			return nil, err
		}
		if am.ClosedAt, err = parseTime(closed); err != nil {
			rows.Close()
			return nil, err
		}
		if missing != "" {
			am.Missing = strings.Split(missing, ",")
		}
		out = append(out, am)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for i := range out {
		if out[i].Reports, err = db.minuteReports(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) minuteReports(ctx context.Context, minuteID int64) ([]meeting.Report, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT nick, report, reported_at FROM minute_reports WHERE minute_id = ? ORDER BY nick", minuteID,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying reports: %w", err)
	}
	defer rows.Close()

	var reports []meeting.Report
	for rows.Next() {
		var (
			r  meeting.Report
			at string
		)
		if err := rows.Scan(&r.Nick, &r.Text, &at); err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		if r.At, err = parseTime(at); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Watermark returns the last reported board activity time, if any.
func (db *DB) Watermark(ctx context.Context, boardID string) (time.Time, bool, error) {
	var raw string
	err := db.QueryRowContext(ctx, "SELECT watermark FROM digest_state WHERE board_id = ?", boardID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (db *DB) SetWatermark(ctx context.Context, boardID string, t time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO digest_state (board_id, watermark) VALUES (?, ?)
		ON CONFLICT (board_id) DO UPDATE SET watermark = excluded.watermark
	`, boardID, formatTime(t))
	return err
}
