// Package sqlite is the single-file store, for deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database file and migrates it.
func New(ctx context.Context, path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// One writer at a time; the ring update relies on serialized transactions.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS websites (
	id                     TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	url                    TEXT NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL DEFAULT 'active',
	timeout_seconds        INTEGER NOT NULL DEFAULT 30,
	expected_status_code   INTEGER NOT NULL DEFAULT 200,
	check_interval_seconds INTEGER NOT NULL DEFAULT 300,
	alert_email            TEXT NOT NULL DEFAULT '',
	recovery_email         TEXT NOT NULL DEFAULT '',
	send_recovery_email    INTEGER NOT NULL DEFAULT 1,
	created_at             TEXT NOT NULL,
	updated_at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS internal_apps (
	id                   TEXT PRIMARY KEY,
	website_id           TEXT NOT NULL,
	name                 TEXT NOT NULL,
	app_type             TEXT NOT NULL DEFAULT 'other',
	url                  TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	is_active            INTEGER NOT NULL DEFAULT 1,
	timeout_seconds      INTEGER NOT NULL DEFAULT 30,
	expected_status_code INTEGER NOT NULL DEFAULT 200,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL,
	UNIQUE (website_id, name),
	FOREIGN KEY(website_id) REFERENCES websites(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS check_heads (
	target_kind TEXT    NOT NULL,
	target_id   TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	PRIMARY KEY (target_kind, target_id)
);

CREATE TABLE IF NOT EXISTS check_slots (
	target_kind   TEXT    NOT NULL,
	target_id     TEXT    NOT NULL,
	slot          INTEGER NOT NULL,
	seq           INTEGER NOT NULL,
	website_id    TEXT    NOT NULL,
	checked_at    TEXT    NOT NULL,
	online        INTEGER NOT NULL,
	latency       REAL,
	status_code   INTEGER,
	error_message TEXT NOT NULL DEFAULT '',
	response_body TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (target_kind, target_id, slot)
);

CREATE TABLE IF NOT EXISTS alerts (
	id         TEXT PRIMARY KEY,
	website_id TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	sent_at    TEXT NOT NULL,
	recipient  TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	sent       INTEGER NOT NULL DEFAULT 0,
	cleared    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_alerts_website_type_sent ON alerts (website_id, alert_type, sent_at DESC);

CREATE TABLE IF NOT EXISTS settings (
	id                            INTEGER PRIMARY KEY CHECK (id = 1),
	monitoring_active             INTEGER NOT NULL,
	global_check_interval_seconds INTEGER NOT NULL,
	max_concurrent_checks         INTEGER NOT NULL,
	alert_cooldown_seconds        INTEGER NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(v string) time.Time {
	t, _ := time.Parse(tsLayout, v)
	return t
}

// ---- TargetStore ----

const websiteCols = `id, name, url, description, status, timeout_seconds, expected_status_code,
	check_interval_seconds, alert_email, recovery_email, send_recovery_email, created_at, updated_at`

func (s *Store) SaveWebsite(ctx context.Context, w *domain.Website) error {
	if w.ID == "" {
		w.ID = domain.TargetID(uuid.NewString())
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	var created string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO websites (`+websiteCols+`)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, url=excluded.url, description=excluded.description,
		   status=excluded.status, timeout_seconds=excluded.timeout_seconds,
		   expected_status_code=excluded.expected_status_code,
		   check_interval_seconds=excluded.check_interval_seconds,
		   alert_email=excluded.alert_email, recovery_email=excluded.recovery_email,
		   send_recovery_email=excluded.send_recovery_email, updated_at=excluded.updated_at
		 RETURNING created_at`,
		string(w.ID), w.Name, w.URL, w.Description, string(w.Status), w.TimeoutSeconds,
		w.ExpectedStatusCode, w.CheckIntervalSeconds, w.AlertEmail, w.RecoveryEmail,
		w.SendRecoveryEmail, ts(w.CreatedAt), ts(w.UpdatedAt),
	).Scan(&created)
	if err != nil {
		return fmt.Errorf("failed to upsert website: %w", err)
	}
	w.CreatedAt = parseTS(created)
	return nil
}

func (s *Store) SaveApp(ctx context.Context, a *domain.InternalApp) error {
	parent, err := s.Website(ctx, a.WebsiteID)
	if err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = domain.TargetID(uuid.NewString())
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	var created string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO internal_apps (id, website_id, name, app_type, url, description, is_active,
		   timeout_seconds, expected_status_code, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   website_id=excluded.website_id, name=excluded.name, app_type=excluded.app_type,
		   url=excluded.url, description=excluded.description, is_active=excluded.is_active,
		   timeout_seconds=excluded.timeout_seconds,
		   expected_status_code=excluded.expected_status_code, updated_at=excluded.updated_at
		 RETURNING created_at`,
		string(a.ID), string(a.WebsiteID), a.Name, string(a.AppType), a.URL, a.Description,
		a.IsActive, a.TimeoutSeconds, a.ExpectedStatusCode, ts(a.CreatedAt), ts(a.UpdatedAt),
	).Scan(&created)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("app %q: %w", a.Name, repo.ErrConflict)
		}
		return fmt.Errorf("failed to upsert app: %w", err)
	}
	a.CreatedAt = parseTS(created)
	a.Parent = parent
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWebsiteInto(row scanner, w *domain.Website, extra ...any) error {
	var created, updated string
	dest := []any{&w.ID, &w.Name, &w.URL, &w.Description, &w.Status, &w.TimeoutSeconds,
		&w.ExpectedStatusCode, &w.CheckIntervalSeconds, &w.AlertEmail, &w.RecoveryEmail,
		&w.SendRecoveryEmail, &created, &updated}
	if err := row.Scan(append(extra, dest...)...); err != nil {
		return err
	}
	w.CreatedAt, w.UpdatedAt = parseTS(created), parseTS(updated)
	return nil
}

const appSelect = `SELECT a.id, a.website_id, a.name, a.app_type, a.url, a.description, a.is_active,
	a.timeout_seconds, a.expected_status_code, a.created_at, a.updated_at,
	w.id, w.name, w.url, w.description, w.status, w.timeout_seconds, w.expected_status_code,
	w.check_interval_seconds, w.alert_email, w.recovery_email, w.send_recovery_email,
	w.created_at, w.updated_at
	FROM internal_apps a JOIN websites w ON w.id = a.website_id`

func scanApp(row scanner) (*domain.InternalApp, error) {
	var a domain.InternalApp
	var p domain.Website
	var created, updated string
	err := scanWebsiteInto(row, &p, &a.ID, &a.WebsiteID, &a.Name, &a.AppType, &a.URL,
		&a.Description, &a.IsActive, &a.TimeoutSeconds, &a.ExpectedStatusCode, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.CreatedAt, a.UpdatedAt = parseTS(created), parseTS(updated)
	a.Parent = &p
	return &a, nil
}

func (s *Store) Website(ctx context.Context, id domain.TargetID) (*domain.Website, error) {
	var w domain.Website
	err := scanWebsiteInto(s.db.QueryRowContext(ctx,
		`SELECT `+websiteCols+` FROM websites WHERE id = ?`, string(id)), &w)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get website: %w", err)
	}
	return &w, nil
}

func (s *Store) App(ctx context.Context, id domain.TargetID) (*domain.InternalApp, error) {
	a, err := scanApp(s.db.QueryRowContext(ctx, appSelect+` WHERE a.id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	return a, nil
}

func (s *Store) Websites(ctx context.Context) ([]*domain.Website, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+websiteCols+` FROM websites ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	defer rows.Close()
	var out []*domain.Website
	for rows.Next() {
		var w domain.Website
		if err := scanWebsiteInto(rows, &w); err != nil {
			return nil, fmt.Errorf("failed to scan website: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (s *Store) Apps(ctx context.Context) ([]*domain.InternalApp, error) {
	rows, err := s.db.QueryContext(ctx, appSelect+` ORDER BY a.name, a.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()
	var out []*domain.InternalApp
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteWebsite(ctx context.Context, id domain.TargetID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"check_slots", "check_heads"} {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+`
				  WHERE (target_kind = 'website' AND target_id = ?1)
				     OR (target_kind = 'app' AND target_id IN
				         (SELECT id FROM internal_apps WHERE website_id = ?1))`, string(id))
			if err != nil {
				return fmt.Errorf("failed to delete %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE website_id = ?`, string(id)); err != nil {
			return fmt.Errorf("failed to delete alerts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM websites WHERE id = ?`, string(id))
		if err != nil {
			return fmt.Errorf("failed to delete website: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

func (s *Store) DeleteApp(ctx context.Context, id domain.TargetID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"check_slots", "check_heads"} {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE target_kind = 'app' AND target_id = ?`, string(id)); err != nil {
				return fmt.Errorf("failed to delete %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM internal_apps WHERE id = ?`, string(id))
		if err != nil {
			return fmt.Errorf("failed to delete app: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

// ---- HistoryStore ----

// Record advances the per-target sequence and overwrites slot seq % 20.
func (s *Store) Record(ctx context.Context, r *domain.CheckResult) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	kind, id := string(r.Target.Kind), string(r.Target.ID)
	owner, err := ownerTable(r.Target.Kind)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+owner+` WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return repo.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up target: %w", err)
		}
		var seq int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO check_heads (target_kind, target_id, seq) VALUES (?, ?, 0)
			 ON CONFLICT(target_kind, target_id) DO UPDATE SET seq = seq + 1
			 RETURNING seq`, kind, id).Scan(&seq)
		if err != nil {
			return fmt.Errorf("failed to advance head: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO check_slots (target_kind, target_id, slot, seq, website_id, checked_at,
			   online, latency, status_code, error_message, response_body)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?)
			 ON CONFLICT(target_kind, target_id, slot) DO UPDATE SET
			   seq=excluded.seq, website_id=excluded.website_id, checked_at=excluded.checked_at,
			   online=excluded.online, latency=excluded.latency, status_code=excluded.status_code,
			   error_message=excluded.error_message, response_body=excluded.response_body`,
			kind, id, seq%repo.HistoryCapacity, seq, string(r.WebsiteID), ts(r.CheckedAt),
			r.Online, r.Latency, r.StatusCode, r.ErrorMessage, r.ResponseBody)
		if err != nil {
			return fmt.Errorf("failed to write slot: %w", err)
		}
		r.ID = seq + 1
		return nil
	})
}

func ownerTable(k domain.TargetKind) (string, error) {
	switch k {
	case domain.KindWebsite:
		return "websites", nil
	case domain.KindApp:
		return "internal_apps", nil
	}
	return "", fmt.Errorf("unknown target kind %q", k)
}

func (s *Store) Recent(ctx context.Context, ref domain.TargetRef, n int) ([]domain.CheckResult, error) {
	if n <= 0 || n > repo.HistoryCapacity {
		n = repo.HistoryCapacity
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, website_id, checked_at, online, latency, status_code, error_message, response_body
		   FROM check_slots
		  WHERE target_kind = ? AND target_id = ?
		  ORDER BY seq DESC
		  LIMIT ?`, string(ref.Kind), string(ref.ID), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query checks: %w", err)
	}
	defer rows.Close()
	out := make([]domain.CheckResult, 0, n)
	for rows.Next() {
		var r domain.CheckResult
		var checked string
		if err := rows.Scan(&r.ID, &r.WebsiteID, &checked, &r.Online, &r.Latency, &r.StatusCode,
			&r.ErrorMessage, &r.ResponseBody); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		r.ID++
		r.Target = ref
		r.CheckedAt = parseTS(checked)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- AlertStore ----

const alertCols = `id, website_id, alert_type, sent_at, recipient, subject, body, sent, cleared`

func scanAlert(row scanner) (domain.AlertRecord, error) {
	var a domain.AlertRecord
	var sent string
	err := row.Scan(&a.ID, &a.WebsiteID, &a.Type, &sent, &a.Recipient, &a.Subject, &a.Body, &a.Sent, &a.Cleared)
	a.SentAt = parseTS(sent)
	return a, err
}

func (s *Store) LatestAlert(ctx context.Context, websiteID domain.TargetID, t domain.AlertType) (*domain.AlertRecord, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx,
		`SELECT `+alertCols+` FROM alerts
		  WHERE website_id = ? AND alert_type = ?
		  ORDER BY sent_at DESC LIMIT 1`, string(websiteID), string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest alert: %w", err)
	}
	return &a, nil
}

func (s *Store) InsertAlert(ctx context.Context, a *domain.AlertRecord) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (`+alertCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, string(a.WebsiteID), string(a.Type), ts(a.SentAt), a.Recipient, a.Subject, a.Body,
		a.Sent, a.Cleared)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (s *Store) Alerts(ctx context.Context, q repo.AlertQuery) ([]domain.AlertRecord, error) {
	since := ""
	if !q.Since.IsZero() {
		since = ts(q.Since)
	}
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertCols+` FROM alerts
		  WHERE (?1 = '' OR website_id = ?1)
		    AND (?2 = '' OR alert_type = ?2)
		    AND (?3 = '' OR sent_at >= ?3)
		    AND (?4 OR cleared = 0)
		  ORDER BY sent_at DESC
		  LIMIT ?5`,
		string(q.WebsiteID), string(q.Type), since, q.IncludeCleared, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()
	out := make([]domain.AlertRecord, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ClearAlert(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET cleared = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to clear alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) ClearAlerts(ctx context.Context, websiteID domain.TargetID) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET cleared = 1 WHERE cleared = 0 AND (?1 = '' OR website_id = ?1)`,
		string(websiteID))
	if err != nil {
		return 0, fmt.Errorf("failed to clear alerts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ---- SettingsStore ----

func (s *Store) Settings(ctx context.Context) (domain.Settings, error) {
	d := domain.DefaultSettings()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, monitoring_active, global_check_interval_seconds,
		   max_concurrent_checks, alert_cooldown_seconds)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		d.MonitoringActive, int64(d.GlobalCheckInterval/time.Second), d.MaxConcurrentChecks,
		int64(d.AlertCooldown/time.Second))
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to seed settings: %w", err)
	}
	var out domain.Settings
	var interval, cooldown int64
	err = s.db.QueryRowContext(ctx,
		`SELECT monitoring_active, global_check_interval_seconds, max_concurrent_checks,
		        alert_cooldown_seconds
		   FROM settings WHERE id = 1`).Scan(&out.MonitoringActive, &interval,
		&out.MaxConcurrentChecks, &cooldown)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	out.GlobalCheckInterval = time.Duration(interval) * time.Second
	out.AlertCooldown = time.Duration(cooldown) * time.Second
	return out, nil
}

func (s *Store) SaveSettings(ctx context.Context, st domain.Settings) error {
	st = st.Normalize()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, monitoring_active, global_check_interval_seconds,
		   max_concurrent_checks, alert_cooldown_seconds)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   monitoring_active=excluded.monitoring_active,
		   global_check_interval_seconds=excluded.global_check_interval_seconds,
		   max_concurrent_checks=excluded.max_concurrent_checks,
		   alert_cooldown_seconds=excluded.alert_cooldown_seconds`,
		st.MonitoringActive, int64(st.GlobalCheckInterval/time.Second), st.MaxConcurrentChecks,
		int64(st.AlertCooldown/time.Second))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
