package postgres

// Schema is applied by New. History is a fixed ring of slots per target:
// check_heads holds the per-target sequence, check_slots holds at most
// 20 rows keyed by seq % 20.
const Schema = `
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
  send_recovery_email    BOOLEAN NOT NULL DEFAULT TRUE,
  created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS internal_apps (
  id                   TEXT PRIMARY KEY,
  website_id           TEXT NOT NULL REFERENCES websites(id) ON DELETE CASCADE,
  name                 TEXT NOT NULL,
  app_type             TEXT NOT NULL DEFAULT 'other',
  url                  TEXT NOT NULL,
  description          TEXT NOT NULL DEFAULT '',
  is_active            BOOLEAN NOT NULL DEFAULT TRUE,
  timeout_seconds      INTEGER NOT NULL DEFAULT 30,
  expected_status_code INTEGER NOT NULL DEFAULT 200,
  created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (website_id, name)
);

CREATE TABLE IF NOT EXISTS check_heads (
  target_kind TEXT   NOT NULL,
  target_id   TEXT   NOT NULL,
  seq         BIGINT NOT NULL,
  PRIMARY KEY (target_kind, target_id)
);

CREATE TABLE IF NOT EXISTS check_slots (
  target_kind   TEXT    NOT NULL,
  target_id     TEXT    NOT NULL,
  slot          INTEGER NOT NULL,
  seq           BIGINT  NOT NULL,
  website_id    TEXT    NOT NULL,
  checked_at    TIMESTAMPTZ NOT NULL,
  online        BOOLEAN NOT NULL,
  latency       DOUBLE PRECISION NULL,
  status_code   INTEGER NULL,
  error_message TEXT NOT NULL DEFAULT '',
  response_body TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (target_kind, target_id, slot)
);

CREATE TABLE IF NOT EXISTS alerts (
  id         TEXT PRIMARY KEY,
  website_id TEXT NOT NULL,
  alert_type TEXT NOT NULL,
  sent_at    TIMESTAMPTZ NOT NULL,
  recipient  TEXT NOT NULL DEFAULT '',
  subject    TEXT NOT NULL DEFAULT '',
  body       TEXT NOT NULL DEFAULT '',
  sent       BOOLEAN NOT NULL DEFAULT FALSE,
  cleared    BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_alerts_website_type_sent ON alerts (website_id, alert_type, sent_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_sent_at ON alerts (sent_at DESC);

CREATE TABLE IF NOT EXISTS settings (
  id                            INTEGER PRIMARY KEY CHECK (id = 1),
  monitoring_active             BOOLEAN NOT NULL,
  global_check_interval_seconds BIGINT  NOT NULL,
  max_concurrent_checks         INTEGER NOT NULL,
  alert_cooldown_seconds        BIGINT  NOT NULL
);
`
