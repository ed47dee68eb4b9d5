package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("postgres_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- TargetStore ----

const websiteCols = `id, name, url, description, status, timeout_seconds, expected_status_code,
	check_interval_seconds, alert_email, recovery_email, send_recovery_email, created_at, updated_at`

const appCols = `a.id, a.website_id, a.name, a.app_type, a.url, a.description, a.is_active,
	a.timeout_seconds, a.expected_status_code, a.created_at, a.updated_at`

func (s *Store) SaveWebsite(ctx context.Context, w *domain.Website) error {
	if w.ID == "" {
		w.ID = domain.TargetID(uuid.NewString())
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	err := s.pool.QueryRow(ctx,
		`INSERT INTO websites (`+websiteCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 ON CONFLICT (id) DO UPDATE SET
		   name=EXCLUDED.name, url=EXCLUDED.url, description=EXCLUDED.description,
		   status=EXCLUDED.status, timeout_seconds=EXCLUDED.timeout_seconds,
		   expected_status_code=EXCLUDED.expected_status_code,
		   check_interval_seconds=EXCLUDED.check_interval_seconds,
		   alert_email=EXCLUDED.alert_email, recovery_email=EXCLUDED.recovery_email,
		   send_recovery_email=EXCLUDED.send_recovery_email, updated_at=EXCLUDED.updated_at
		 RETURNING created_at`,
		string(w.ID), w.Name, w.URL, w.Description, string(w.Status), w.TimeoutSeconds,
		w.ExpectedStatusCode, w.CheckIntervalSeconds, w.AlertEmail, w.RecoveryEmail,
		w.SendRecoveryEmail, w.CreatedAt, w.UpdatedAt,
	).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert website: %w", err)
	}
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
	err = s.pool.QueryRow(ctx,
		`INSERT INTO internal_apps (id, website_id, name, app_type, url, description, is_active,
		   timeout_seconds, expected_status_code, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT (id) DO UPDATE SET
		   website_id=EXCLUDED.website_id, name=EXCLUDED.name, app_type=EXCLUDED.app_type,
		   url=EXCLUDED.url, description=EXCLUDED.description, is_active=EXCLUDED.is_active,
		   timeout_seconds=EXCLUDED.timeout_seconds,
		   expected_status_code=EXCLUDED.expected_status_code, updated_at=EXCLUDED.updated_at
		 RETURNING created_at`,
		string(a.ID), string(a.WebsiteID), a.Name, string(a.AppType), a.URL, a.Description,
		a.IsActive, a.TimeoutSeconds, a.ExpectedStatusCode, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("app %q: %w", a.Name, repo.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("upsert app: %w", err)
	}
	a.Parent = parent
	return nil
}

func scanWebsite(row pgx.Row) (*domain.Website, error) {
	var w domain.Website
	var id, status string
	err := row.Scan(&id, &w.Name, &w.URL, &w.Description, &status, &w.TimeoutSeconds,
		&w.ExpectedStatusCode, &w.CheckIntervalSeconds, &w.AlertEmail, &w.RecoveryEmail,
		&w.SendRecoveryEmail, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.ID = domain.TargetID(id)
	w.Status = domain.WebsiteStatus(status)
	return &w, nil
}

// scanApp reads appCols followed by websiteCols of the parent.
func scanApp(row pgx.Row) (*domain.InternalApp, error) {
	var a domain.InternalApp
	var p domain.Website
	var id, wid, appType, pid, pstatus string
	err := row.Scan(&id, &wid, &a.Name, &appType, &a.URL, &a.Description, &a.IsActive,
		&a.TimeoutSeconds, &a.ExpectedStatusCode, &a.CreatedAt, &a.UpdatedAt,
		&pid, &p.Name, &p.URL, &p.Description, &pstatus, &p.TimeoutSeconds,
		&p.ExpectedStatusCode, &p.CheckIntervalSeconds, &p.AlertEmail, &p.RecoveryEmail,
		&p.SendRecoveryEmail, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ID = domain.TargetID(id)
	a.WebsiteID = domain.TargetID(wid)
	a.AppType = domain.AppType(appType)
	p.ID = domain.TargetID(pid)
	p.Status = domain.WebsiteStatus(pstatus)
	a.Parent = &p
	return &a, nil
}

const appSelect = `SELECT ` + appCols + `,
	w.id, w.name, w.url, w.description, w.status, w.timeout_seconds, w.expected_status_code,
	w.check_interval_seconds, w.alert_email, w.recovery_email, w.send_recovery_email,
	w.created_at, w.updated_at
	FROM internal_apps a JOIN websites w ON w.id = a.website_id`

func (s *Store) Website(ctx context.Context, id domain.TargetID) (*domain.Website, error) {
	w, err := scanWebsite(s.pool.QueryRow(ctx,
		`SELECT `+websiteCols+` FROM websites WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get website: %w", err)
	}
	return w, nil
}

func (s *Store) App(ctx context.Context, id domain.TargetID) (*domain.InternalApp, error) {
	a, err := scanApp(s.pool.QueryRow(ctx, appSelect+` WHERE a.id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	return a, nil
}

func (s *Store) Websites(ctx context.Context) ([]*domain.Website, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+websiteCols+` FROM websites ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	defer rows.Close()
	var out []*domain.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) Apps(ctx context.Context) ([]*domain.InternalApp, error) {
	rows, err := s.pool.Query(ctx, appSelect+` ORDER BY a.name, a.id`)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()
	var out []*domain.InternalApp
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteWebsite(ctx context.Context, id domain.TargetID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT 1 FROM websites WHERE id = $1 FOR UPDATE`, string(id)); err != nil {
			return fmt.Errorf("lock website: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`SELECT 1 FROM internal_apps WHERE website_id = $1 FOR UPDATE`, string(id)); err != nil {
			return fmt.Errorf("lock apps: %w", err)
		}
		for _, table := range []string{"check_slots", "check_heads"} {
			_, err := tx.Exec(ctx,
				`DELETE FROM `+table+`
				  WHERE (target_kind = 'website' AND target_id = $1)
				     OR (target_kind = 'app' AND target_id IN
				         (SELECT id FROM internal_apps WHERE website_id = $1))`, string(id))
			if err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM alerts WHERE website_id = $1`, string(id)); err != nil {
			return fmt.Errorf("delete alerts: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM websites WHERE id = $1`, string(id))
		if err != nil {
			return fmt.Errorf("delete website: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

func (s *Store) DeleteApp(ctx context.Context, id domain.TargetID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT 1 FROM internal_apps WHERE id = $1 FOR UPDATE`, string(id)); err != nil {
			return fmt.Errorf("lock app: %w", err)
		}
		for _, table := range []string{"check_slots", "check_heads"} {
			if _, err := tx.Exec(ctx,
				`DELETE FROM `+table+` WHERE target_kind = 'app' AND target_id = $1`, string(id)); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM internal_apps WHERE id = $1`, string(id))
		if err != nil {
			return fmt.Errorf("delete app: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

// ---- HistoryStore ----

// Record advances the target's sequence and overwrites slot seq % 20 in one
// transaction, so a target never holds more than 20 rows.
func (s *Store) Record(ctx context.Context, r *domain.CheckResult) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	kind, id := string(r.Target.Kind), string(r.Target.ID)
	owner, err := ownerTable(r.Target.Kind)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// FOR SHARE holds off a concurrent delete until this write commits;
		// the delete locks the same rows before cascading.
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM `+owner+` WHERE id = $1 FOR SHARE`, id).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock target: %w", err)
		}
		var seq int64
		err = tx.QueryRow(ctx,
			`INSERT INTO check_heads (target_kind, target_id, seq) VALUES ($1, $2, 0)
			 ON CONFLICT (target_kind, target_id) DO UPDATE SET seq = check_heads.seq + 1
			 RETURNING seq`, kind, id).Scan(&seq)
		if err != nil {
			return fmt.Errorf("advance head: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO check_slots (target_kind, target_id, slot, seq, website_id, checked_at,
			   online, latency, status_code, error_message, response_body)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			 ON CONFLICT (target_kind, target_id, slot) DO UPDATE SET
			   seq=EXCLUDED.seq, website_id=EXCLUDED.website_id, checked_at=EXCLUDED.checked_at,
			   online=EXCLUDED.online, latency=EXCLUDED.latency, status_code=EXCLUDED.status_code,
			   error_message=EXCLUDED.error_message, response_body=EXCLUDED.response_body`,
			kind, id, seq%repo.HistoryCapacity, seq, string(r.WebsiteID), r.CheckedAt,
			r.Online, r.Latency, r.StatusCode, r.ErrorMessage, r.ResponseBody)
		if err != nil {
			return fmt.Errorf("write slot: %w", err)
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
	rows, err := s.pool.Query(ctx,
		`SELECT seq, website_id, checked_at, online, latency, status_code, error_message, response_body
		   FROM check_slots
		  WHERE target_kind = $1 AND target_id = $2
		  ORDER BY seq DESC
		  LIMIT $3`, string(ref.Kind), string(ref.ID), n)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()
	out := make([]domain.CheckResult, 0, n)
	for rows.Next() {
		var r domain.CheckResult
		var wid string
		if err := rows.Scan(&r.ID, &wid, &r.CheckedAt, &r.Online, &r.Latency, &r.StatusCode,
			&r.ErrorMessage, &r.ResponseBody); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		r.ID++
		r.Target = ref
		r.WebsiteID = domain.TargetID(wid)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- AlertStore ----

const alertCols = `id, website_id, alert_type, sent_at, recipient, subject, body, sent, cleared`

func scanAlert(row pgx.Row) (domain.AlertRecord, error) {
	var a domain.AlertRecord
	var wid, typ string
	err := row.Scan(&a.ID, &wid, &typ, &a.SentAt, &a.Recipient, &a.Subject, &a.Body, &a.Sent, &a.Cleared)
	a.WebsiteID = domain.TargetID(wid)
	a.Type = domain.AlertType(typ)
	return a, err
}

func (s *Store) LatestAlert(ctx context.Context, websiteID domain.TargetID, t domain.AlertType) (*domain.AlertRecord, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx,
		`SELECT `+alertCols+` FROM alerts
		  WHERE website_id = $1 AND alert_type = $2
		  ORDER BY sent_at DESC LIMIT 1`, string(websiteID), string(t)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest alert: %w", err)
	}
	return &a, nil
}

func (s *Store) InsertAlert(ctx context.Context, a *domain.AlertRecord) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (`+alertCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, string(a.WebsiteID), string(a.Type), a.SentAt, a.Recipient, a.Subject, a.Body,
		a.Sent, a.Cleared)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) Alerts(ctx context.Context, q repo.AlertQuery) ([]domain.AlertRecord, error) {
	var since *time.Time
	if !q.Since.IsZero() {
		since = &q.Since
	}
	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertCols+` FROM alerts
		  WHERE ($1::text = '' OR website_id = $1)
		    AND ($2::text = '' OR alert_type = $2)
		    AND ($3::timestamptz IS NULL OR sent_at >= $3)
		    AND ($4 OR NOT cleared)
		  ORDER BY sent_at DESC
		  LIMIT $5`,
		string(q.WebsiteID), string(q.Type), since, q.IncludeCleared, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	out := make([]domain.AlertRecord, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ClearAlert(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET cleared = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) ClearAlerts(ctx context.Context, websiteID domain.TargetID) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET cleared = TRUE
		  WHERE NOT cleared AND ($1::text = '' OR website_id = $1)`, string(websiteID))
	if err != nil {
		return 0, fmt.Errorf("clear alerts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ---- SettingsStore ----

func (s *Store) Settings(ctx context.Context) (domain.Settings, error) {
	d := domain.DefaultSettings()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (id, monitoring_active, global_check_interval_seconds,
		   max_concurrent_checks, alert_cooldown_seconds)
		 VALUES (1, $1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		d.MonitoringActive, int64(d.GlobalCheckInterval/time.Second), d.MaxConcurrentChecks,
		int64(d.AlertCooldown/time.Second))
	if err != nil {
		return domain.Settings{}, fmt.Errorf("seed settings: %w", err)
	}
	var out domain.Settings
	var interval, cooldown int64
	err = s.pool.QueryRow(ctx,
		`SELECT monitoring_active, global_check_interval_seconds, max_concurrent_checks,
		        alert_cooldown_seconds
		   FROM settings WHERE id = 1`).Scan(&out.MonitoringActive, &interval,
		&out.MaxConcurrentChecks, &cooldown)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	out.GlobalCheckInterval = time.Duration(interval) * time.Second
	out.AlertCooldown = time.Duration(cooldown) * time.Second
	return out, nil
}

func (s *Store) SaveSettings(ctx context.Context, st domain.Settings) error {
	st = st.Normalize()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (id, monitoring_active, global_check_interval_seconds,
		   max_concurrent_checks, alert_cooldown_seconds)
		 VALUES (1, $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   monitoring_active=EXCLUDED.monitoring_active,
		   global_check_interval_seconds=EXCLUDED.global_check_interval_seconds,
		   max_concurrent_checks=EXCLUDED.max_concurrent_checks,
		   alert_cooldown_seconds=EXCLUDED.alert_cooldown_seconds`,
		st.MonitoringActive, int64(st.GlobalCheckInterval/time.Second), st.MaxConcurrentChecks,
		int64(st.AlertCooldown/time.Second))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
