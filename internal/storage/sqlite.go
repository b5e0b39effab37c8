package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tempora/internal/model"
	"tempora/internal/timeutil"
	"tempora/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db       *sql.DB
	log      logx.Logger
	defaults func() model.Preferences
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	defaults := cfg.Defaults
	if defaults == nil {
		defaults = model.DefaultPreferences
	}
	st := &sqliteStore{db: db, log: log, defaults: defaults}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error { return s.db.Close() }

const eventCols = `id, title, category, priority, start_at, end_at, kind,
	COALESCE(parent_id, ''), locked, notes, pref_enabled, pref_start, pref_end`

func (s *sqliteStore) CreateEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}
	if err := s.checkOverlap(ctx, ev); err != nil {
		return model.Event{}, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(id, title, category, priority, start_at, end_at, kind, parent_id, locked, notes, pref_enabled, pref_start, pref_end)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		eventArgs(ev)...,
	)
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

func (s *sqliteStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

func (s *sqliteStore) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	// Stored instants are "2006-01-02T15:04:05" strings, which order
	// lexicographically the same as chronologically.
	q := `SELECT ` + eventCols + ` FROM events WHERE 1=1`
	var args []any
	if !f.From.IsZero() {
		q += ` AND end_at >= ?`
		args = append(args, timeutil.FormatInstant(f.From))
	}
	if !f.To.IsZero() {
		q += ` AND start_at <= ?`
		args = append(args, timeutil.FormatInstant(f.To))
	}
	if f.Category != "" {
		q += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	q += ` ORDER BY start_at`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateEvent(ctx context.Context, id string, p EventPatch) (model.Event, error) {
	ev, err := s.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	ev = applyPatch(ev, p)
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}
	if err := s.checkOverlap(ctx, ev); err != nil {
		return model.Event{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE events SET title=?, category=?, priority=?, start_at=?, end_at=?, kind=?, parent_id=?, locked=?, notes=?, pref_enabled=?, pref_start=?, pref_end=?
		 WHERE id=?`,
		append(eventArgs(ev)[1:], ev.ID)...,
	)
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

func (s *sqliteStore) DeleteEvent(ctx context.Context, id string, mode CascadeMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid cascade mode %q", mode)
	}
	target, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return err
	}
	if target.Kind == model.KindRecurring && target.ParentID != "" {
		switch mode {
		case CascadeAllFuture:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM events WHERE parent_id = ? AND start_at >= ?`,
				target.ParentID, timeutil.FormatInstant(target.Start),
			); err != nil {
				return err
			}
		case CascadeSeries:
			if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE parent_id = ?`, target.ParentID); err != nil {
				return err
			}
		}
		if mode == CascadeAllFuture || mode == CascadeSeries {
			if _, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, target.ParentID); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) SetEventLocked(ctx context.Context, id string, locked bool) (model.Event, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET locked = ? WHERE id = ?`, boolInt(locked), id)
	if err != nil {
		return model.Event{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Event{}, ErrNotFound
	}
	return s.GetEvent(ctx, id)
}

func (s *sqliteStore) ReplaceEvents(ctx context.Context, updates []model.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ev := range updates {
		if err := ev.Validate(); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE events SET title=?, category=?, priority=?, start_at=?, end_at=?, kind=?, parent_id=?, locked=?, notes=?, pref_enabled=?, pref_start=?, pref_end=?
			 WHERE id=?`,
			append(eventArgs(ev)[1:], ev.ID)...,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: event %s", ErrNotFound, ev.ID)
		}
	}

	// Reject the whole batch if any pair of rows now overlaps.
	row := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events a JOIN events b
		 ON a.id < b.id AND a.start_at < b.end_at AND a.end_at > b.start_at`)
	var overlaps int
	if err := row.Scan(&overlaps); err != nil {
		return err
	}
	if overlaps > 0 {
		return fmt.Errorf("%w: batch update creates %d overlap(s)", ErrConflict, overlaps)
	}
	return tx.Commit()
}

func (s *sqliteStore) CreateTemplate(ctx context.Context, tpl model.RecurringTemplate) (model.RecurringTemplate, error) {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if err := tpl.Validate(); err != nil {
		return model.RecurringTemplate{}, err
	}
	prefEnabled, prefStart, prefEnd := windowArgs(tpl.Preferred)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates(id, title, category, priority, duration_minutes, frequency, series_start, pref_enabled, pref_start, pref_end, notes)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		tpl.ID, tpl.Title, string(tpl.Category), string(tpl.Priority), tpl.DurationMinutes,
		string(tpl.Frequency), timeutil.FormatInstant(tpl.SeriesStart), prefEnabled, prefStart, prefEnd, tpl.Notes,
	)
	if err != nil {
		return model.RecurringTemplate{}, err
	}
	return tpl, nil
}

func (s *sqliteStore) GetTemplate(ctx context.Context, id string) (model.RecurringTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, category, priority, duration_minutes, frequency, series_start, pref_enabled, pref_start, pref_end, notes
		 FROM templates WHERE id = ?`, id)
	return scanTemplate(row)
}

func (s *sqliteStore) ListTemplates(ctx context.Context) ([]model.RecurringTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, category, priority, duration_minutes, frequency, series_start, pref_enabled, pref_start, pref_end, notes
		 FROM templates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RecurringTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteTemplate(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE parent_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Preferences(ctx context.Context) (model.Preferences, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sleep_start, sleep_end, work_start, work_end, round_to FROM preferences WHERE id = 1`)
	var sleepStart, sleepEnd, workStart, workEnd string
	var roundTo int
	if err := row.Scan(&sleepStart, &sleepEnd, &workStart, &workEnd, &roundTo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults(), nil
		}
		return model.Preferences{}, err
	}
	p := model.Preferences{RoundToMinutes: roundTo}
	var err error
	if p.SleepStart, err = timeutil.ParseClock(sleepStart); err != nil {
		return model.Preferences{}, err
	}
	if p.SleepEnd, err = timeutil.ParseClock(sleepEnd); err != nil {
		return model.Preferences{}, err
	}
	if p.WorkStart, err = timeutil.ParseClock(workStart); err != nil {
		return model.Preferences{}, err
	}
	if p.WorkEnd, err = timeutil.ParseClock(workEnd); err != nil {
		return model.Preferences{}, err
	}
	return p, nil
}

func (s *sqliteStore) SavePreferences(ctx context.Context, p model.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(id, sleep_start, sleep_end, work_start, work_end, round_to)
		 VALUES(1,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   sleep_start=excluded.sleep_start, sleep_end=excluded.sleep_end,
		   work_start=excluded.work_start, work_end=excluded.work_end,
		   round_to=excluded.round_to`,
		p.SleepStart.String(), p.SleepEnd.String(), p.WorkStart.String(), p.WorkEnd.String(), p.RoundToMinutes,
	)
	return err
}

func (s *sqliteStore) checkOverlap(ctx context.Context, ev model.Event) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT title FROM events WHERE id != ? AND start_at < ? AND end_at > ? LIMIT 1`,
		ev.ID, timeutil.FormatInstant(ev.End), timeutil.FormatInstant(ev.Start))
	var title string
	switch err := row.Scan(&title); {
	case err == nil:
		return fmt.Errorf("%w with %q", ErrConflict, title)
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return err
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var ev model.Event
	var startAt, endAt, category, priority, kind string
	var locked, prefEnabled int
	var prefStart, prefEnd sql.NullString

	err := row.Scan(&ev.ID, &ev.Title, &category, &priority, &startAt, &endAt, &kind,
		&ev.ParentID, &locked, &ev.Notes, &prefEnabled, &prefStart, &prefEnd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, err
	}
	ev.Category = model.Category(category)
	ev.Priority = model.Priority(priority)
	ev.Kind = model.Kind(kind)
	ev.Locked = locked != 0
	if ev.Start, err = timeutil.ParseInstant(startAt); err != nil {
		return model.Event{}, err
	}
	if ev.End, err = timeutil.ParseInstant(endAt); err != nil {
		return model.Event{}, err
	}
	if ev.Preferred, err = scanWindow(prefEnabled, prefStart, prefEnd); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

func scanTemplate(row rowScanner) (model.RecurringTemplate, error) {
	var tpl model.RecurringTemplate
	var category, priority, frequency, seriesStart string
	var prefEnabled int
	var prefStart, prefEnd sql.NullString

	err := row.Scan(&tpl.ID, &tpl.Title, &category, &priority, &tpl.DurationMinutes,
		&frequency, &seriesStart, &prefEnabled, &prefStart, &prefEnd, &tpl.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RecurringTemplate{}, ErrNotFound
		}
		return model.RecurringTemplate{}, err
	}
	tpl.Category = model.Category(category)
	tpl.Priority = model.Priority(priority)
	tpl.Frequency = model.Frequency(frequency)
	if tpl.SeriesStart, err = timeutil.ParseInstant(seriesStart); err != nil {
		return model.RecurringTemplate{}, err
	}
	if tpl.Preferred, err = scanWindow(prefEnabled, prefStart, prefEnd); err != nil {
		return model.RecurringTemplate{}, err
	}
	return tpl, nil
}

func scanWindow(enabled int, start, end sql.NullString) (model.Window, error) {
	if enabled == 0 || !start.Valid || !end.Valid {
		return model.Window{}, nil
	}
	s, err := timeutil.ParseClock(start.String)
	if err != nil {
		return model.Window{}, err
	}
	e, err := timeutil.ParseClock(end.String)
	if err != nil {
		return model.Window{}, err
	}
	return model.Window{Enabled: true, Start: &s, End: &e}, nil
}

func eventArgs(ev model.Event) []any {
	prefEnabled, prefStart, prefEnd := windowArgs(ev.Preferred)
	return []any{
		ev.ID, ev.Title, string(ev.Category), string(ev.Priority),
		timeutil.FormatInstant(ev.Start), timeutil.FormatInstant(ev.End),
		string(ev.Kind), nullStr(ev.ParentID), boolInt(ev.Locked), ev.Notes,
		prefEnabled, prefStart, prefEnd,
	}
}

func windowArgs(w model.Window) (enabled int, start, end any) {
	if span, ok := w.Span(); ok {
		return 1, span.Start.String(), span.End.String()
	}
	return 0, nil, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
