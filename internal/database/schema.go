package database

import "strings"

// postgresSchema creates the register tables. Every statement is idempotent.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS assets (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	asset_type  TEXT NOT NULL DEFAULT 'Component',
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS controls (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	description  TEXT NOT NULL DEFAULT '',
	category_tag TEXT NOT NULL DEFAULT '',
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_assessments (
	id                 BIGSERIAL PRIMARY KEY,
	assessment_number  INTEGER NOT NULL DEFAULT 0,
	asset_id           BIGINT NOT NULL REFERENCES assets(id),
	operation          TEXT NOT NULL DEFAULT '',
	platform           TEXT NOT NULL DEFAULT '',
	model_ref          TEXT NOT NULL DEFAULT '',
	stride_code        TEXT NOT NULL,
	stride_description TEXT NOT NULL DEFAULT '',
	finding_number     TEXT NOT NULL DEFAULT '',
	severity           TEXT NOT NULL DEFAULT '',
	pre_exploit_risk   TEXT NOT NULL DEFAULT '',
	pre_risk_rating    TEXT NOT NULL DEFAULT '',
	post_exploit_risk  TEXT NOT NULL DEFAULT '',
	post_risk_rating   TEXT NOT NULL DEFAULT '',
	review_status      TEXT NOT NULL DEFAULT 'Pending',
	notes              TEXT NOT NULL DEFAULT '',
	control_refs       TEXT NOT NULL DEFAULT '',
	reference_docs     TEXT NOT NULL DEFAULT '',
	reviewed_by        TEXT NOT NULL DEFAULT '',
	reviewed_at        TIMESTAMPTZ,
	version            INTEGER NOT NULL DEFAULT 1,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	UNIQUE (asset_id, stride_code, assessment_number, finding_number)
);

CREATE INDEX IF NOT EXISTS idx_risk_assessments_asset ON risk_assessments (asset_id);
CREATE INDEX IF NOT EXISTS idx_risk_assessments_status ON risk_assessments (review_status);

CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGSERIAL PRIMARY KEY,
	risk_id    BIGINT NOT NULL REFERENCES risk_assessments(id),
	field_name TEXT NOT NULL,
	old_value  TEXT NOT NULL DEFAULT '',
	new_value  TEXT NOT NULL DEFAULT '',
	actor      TEXT NOT NULL,
	batch_id   TEXT NOT NULL DEFAULT '',
	changed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_risk ON audit_log (risk_id, changed_at DESC);
`

// sqliteSchema mirrors postgresSchema. Timestamps are declared TIMESTAMP so
// the driver scans them back into time.Time.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS assets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	asset_type  TEXT NOT NULL DEFAULT 'Component',
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS controls (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL UNIQUE,
	description  TEXT NOT NULL DEFAULT '',
	category_tag TEXT NOT NULL DEFAULT '',
	is_active    BOOLEAN NOT NULL DEFAULT 1,
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_assessments (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	assessment_number  INTEGER NOT NULL DEFAULT 0,
	asset_id           INTEGER NOT NULL REFERENCES assets(id),
	operation          TEXT NOT NULL DEFAULT '',
	platform           TEXT NOT NULL DEFAULT '',
	model_ref          TEXT NOT NULL DEFAULT '',
	stride_code        TEXT NOT NULL,
	stride_description TEXT NOT NULL DEFAULT '',
	finding_number     TEXT NOT NULL DEFAULT '',
	severity           TEXT NOT NULL DEFAULT '',
	pre_exploit_risk   TEXT NOT NULL DEFAULT '',
	pre_risk_rating    TEXT NOT NULL DEFAULT '',
	post_exploit_risk  TEXT NOT NULL DEFAULT '',
	post_risk_rating   TEXT NOT NULL DEFAULT '',
	review_status      TEXT NOT NULL DEFAULT 'Pending',
	notes              TEXT NOT NULL DEFAULT '',
	control_refs       TEXT NOT NULL DEFAULT '',
	reference_docs     TEXT NOT NULL DEFAULT '',
	reviewed_by        TEXT NOT NULL DEFAULT '',
	reviewed_at        TIMESTAMP,
	version            INTEGER NOT NULL DEFAULT 1,
	created_at         TIMESTAMP NOT NULL,
	updated_at         TIMESTAMP NOT NULL,
	UNIQUE (asset_id, stride_code, assessment_number, finding_number)
);

CREATE INDEX IF NOT EXISTS idx_risk_assessments_asset ON risk_assessments (asset_id);
CREATE INDEX IF NOT EXISTS idx_risk_assessments_status ON risk_assessments (review_status);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	risk_id    INTEGER NOT NULL REFERENCES risk_assessments(id),
	field_name TEXT NOT NULL,
	old_value  TEXT NOT NULL DEFAULT '',
	new_value  TEXT NOT NULL DEFAULT '',
	actor      TEXT NOT NULL,
	batch_id   TEXT NOT NULL DEFAULT '',
	changed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_risk ON audit_log (risk_id, changed_at DESC);
`

// statements splits a schema script into individual statements.
func statements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
