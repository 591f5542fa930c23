package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dayview/internal/model"

	_ "modernc.org/sqlite"
)

// SQLite is a Store persisted in a SQLite database in WAL mode.
type SQLite struct {
	notifier
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL DEFAULT '',
		start_at      TEXT NOT NULL,
		end_at        TEXT NOT NULL,
		start_unix    INTEGER NOT NULL,
		end_unix      INTEGER NOT NULL,
		tz            TEXT NOT NULL DEFAULT '',
		all_day       INTEGER NOT NULL DEFAULT 0,
		color         TEXT NOT NULL DEFAULT '',
		rrule         TEXT NOT NULL DEFAULT '',
		exdates       TEXT NOT NULL DEFAULT '',
		series_id     TEXT NOT NULL DEFAULT '',
		recurrence_id TEXT,
		source        TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_events_range ON events(start_unix, end_unix);
	CREATE INDEX IF NOT EXISTS idx_events_series ON events(series_id);
	CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);
	`
	_, err := s.db.Exec(schema)
	return err
}

const selectColumns = `id, title, start_at, end_at, tz, all_day, color, rrule, exdates, series_id, recurrence_id, source`

func (s *SQLite) EventsOn(ctx context.Context, day time.Time) ([]model.CalendarEvent, error) {
	dayStart, dayEnd := dayBounds(day)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM events
		 WHERE rrule != '' OR series_id != ''
		    OR (start_unix < ? AND end_unix >= ?)`,
		dayEnd.UnixNano(), dayStart.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query day: %w", err)
	}
	defer rows.Close()

	stored, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return expandDay(stored, day), nil
}

func (s *SQLite) Get(ctx context.Context, id string) (model.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CalendarEvent{}, ErrNotFound
	}
	return ev, err
}

func (s *SQLite) All(ctx context.Context) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM events ORDER BY start_unix, id`)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLite) Replace(ctx context.Context, ev model.CalendarEvent) error {
	if ev.ID == "" {
		return ErrInvalidID
	}
	var existed bool
	err := retryOnContention(func() error {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE id = ?`, ev.ID).Scan(&n); err != nil {
			return err
		}
		existed = n > 0
		return upsert(ctx, s.db, ev)
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", ev.ID, err)
	}

	kind := Updated
	if !existed {
		kind = Created
	}
	s.notify(ctx, Change{Kind: kind, EventID: ev.ID})
	return nil
}

func (s *SQLite) ModifyOccurrence(ctx context.Context, seriesID string, occurrenceStart time.Time, ev model.CalendarEvent) (model.CalendarEvent, error) {
	if _, err := s.Get(ctx, seriesID); err != nil {
		return model.CalendarEvent{}, err
	}

	stored := detach(ev, seriesID, occurrenceStart)
	kind := Created
	err := retryOnContention(func() error {
		var id string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM events WHERE series_id = ? AND recurrence_id = ?`,
			seriesID, formatTime(occurrenceStart.UTC()),
		).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if stored.ID == "" {
				stored.ID = uuid.NewString()
			}
		case err != nil:
			return err
		default:
			stored.ID = id
			kind = Updated
		}
		return upsert(ctx, s.db, stored)
	})
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("modify occurrence of %s: %w", seriesID, err)
	}

	s.notify(ctx, Change{Kind: kind, EventID: stored.ID})
	return stored, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	var affected int64
	err := retryOnContention(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.notify(ctx, Change{Kind: Deleted, EventID: id})
	return nil
}

func (s *SQLite) ReplaceSource(ctx context.Context, source string, events []model.CalendarEvent) error {
	err := retryOnContention(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE source = ?`, source); err != nil {
			return err
		}
		for _, ev := range events {
			ev.Source = source
			if ev.ID == "" {
				ev.ID = uuid.NewString()
			}
			if err := upsert(ctx, tx, ev); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("replace source %s: %w", source, err)
	}
	s.notify(ctx, Change{Kind: Reloaded, Source: source})
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, ev model.CalendarEvent) error {
	var rid any
	if ev.RecurrenceID != nil {
		rid = formatTime(ev.RecurrenceID.UTC())
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO events (id, title, start_at, end_at, start_unix, end_unix, tz, all_day, color, rrule, exdates, series_id, recurrence_id, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   start_at = excluded.start_at,
		   end_at = excluded.end_at,
		   start_unix = excluded.start_unix,
		   end_unix = excluded.end_unix,
		   tz = excluded.tz,
		   all_day = excluded.all_day,
		   color = excluded.color,
		   rrule = excluded.rrule,
		   exdates = excluded.exdates,
		   series_id = excluded.series_id,
		   recurrence_id = excluded.recurrence_id,
		   source = excluded.source`,
		ev.ID, ev.Title,
		formatTime(ev.Start), formatTime(ev.End),
		ev.Start.UnixNano(), ev.End.UnixNano(),
		ev.Start.Location().String(),
		boolInt(ev.AllDay), ev.Color, ev.RecurrenceRule,
		formatTimes(ev.ExDates), ev.SeriesID, rid, ev.Source,
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.CalendarEvent, error) {
	var (
		ev                 model.CalendarEvent
		startAt, endAt, tz string
		allDay             int
		exdates            string
		rid                sql.NullString
	)
	if err := row.Scan(&ev.ID, &ev.Title, &startAt, &endAt, &tz, &allDay, &ev.Color,
		&ev.RecurrenceRule, &exdates, &ev.SeriesID, &rid, &ev.Source); err != nil {
		return model.CalendarEvent{}, err
	}

	loc := loadLocation(tz)
	var err error
	if ev.Start, err = parseTime(startAt, loc); err != nil {
		return model.CalendarEvent{}, fmt.Errorf("event %s start: %w", ev.ID, err)
	}
	if ev.End, err = parseTime(endAt, loc); err != nil {
		return model.CalendarEvent{}, fmt.Errorf("event %s end: %w", ev.ID, err)
	}
	ev.AllDay = allDay != 0
	if exdates != "" {
		for _, part := range strings.Split(exdates, ",") {
			t, err := parseTime(part, loc)
			if err != nil {
				return model.CalendarEvent{}, fmt.Errorf("event %s exdate: %w", ev.ID, err)
			}
			ev.ExDates = append(ev.ExDates, t)
		}
	}
	if rid.Valid {
		t, err := parseTime(rid.String, loc)
		if err != nil {
			return model.CalendarEvent{}, fmt.Errorf("event %s recurrence id: %w", ev.ID, err)
		}
		ev.RecurrenceID = &t
	}
	return ev, nil
}

func scanEvents(rows *sql.Rows) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatTimes(ts []time.Time) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = formatTime(t)
	}
	return strings.Join(parts, ",")
}

// parseTime restores the stored instant in its original zone, so wall-clock
// arithmetic keeps following that zone's DST rules.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t, nil
}

func loadLocation(name string) *time.Location {
	switch name {
	case "":
		return nil
	case "UTC":
		return time.UTC
	case "Local":
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fixed zones ("KST", "+0900") keep the parsed offset.
		return nil
	}
	return loc
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
