package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaDecisionRecords = `
CREATE TABLE IF NOT EXISTS decision_records (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    application_id TEXT NOT NULL,
    report_reference TEXT,
    bureau_name TEXT,
    first_name TEXT,
    last_name TEXT,
    id_number TEXT NOT NULL,
    credit_score INTEGER NOT NULL,
    score_band TEXT,
    risk_category TEXT NOT NULL,
    recommendation TEXT NOT NULL,
    recommendation_reason TEXT,
    risk_flags TEXT NOT NULL,
    report TEXT NOT NULL,
    breakdown TEXT NOT NULL,
    exposure TEXT NOT NULL,
    raw_payload TEXT,
    mock_mode INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    metadata TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_records_user ON decision_records(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_decision_records_id_number ON decision_records(id_number, created_at);
CREATE INDEX IF NOT EXISTS idx_decision_records_created ON decision_records(created_at);
`

const schemaFlagRules = `
CREATE TABLE IF NOT EXISTS flag_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDecisionRecords,
		schemaFlagRules,
	}
}
