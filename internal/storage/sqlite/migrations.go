package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Money and split columns are TEXT holding decimal strings.
// Deal participants are embedded as a JSON array.
const schema = `
CREATE TABLE IF NOT EXISTS deals (
    id TEXT PRIMARY KEY,
    short_id TEXT NOT NULL UNIQUE,
    mid TEXT NOT NULL,
    merchant_name TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL,
    participants TEXT NOT NULL DEFAULT '[]',
    net_residual TEXT NOT NULL DEFAULT '0',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (mid, category)
);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    deal_id TEXT,
    mid TEXT NOT NULL,
    merchant_name TEXT NOT NULL DEFAULT '',
    month TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL,
    net_residual TEXT NOT NULL DEFAULT '0',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS payouts (
    id TEXT PRIMARY KEY,
    deal_short_id TEXT NOT NULL,
    event_id TEXT NOT NULL,
    mid TEXT NOT NULL,
    merchant_name TEXT NOT NULL DEFAULT '',
    month TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL,
    partner_id TEXT NOT NULL,
    partner_name TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT '',
    split TEXT NOT NULL,
    amount TEXT NOT NULL,
    base_amount TEXT NOT NULL,
    status TEXT NOT NULL,
    paid INTEGER NOT NULL DEFAULT 0,
    paid_at INTEGER NOT NULL DEFAULT 0,
    ledger_record_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS adjustments (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL DEFAULT '',
    deal_id TEXT NOT NULL,
    deal_short_id TEXT NOT NULL,
    mid TEXT NOT NULL,
    partner_id TEXT NOT NULL,
    partner_name TEXT NOT NULL DEFAULT '',
    old_split TEXT NOT NULL,
    new_split TEXT NOT NULL,
    base_amount TEXT NOT NULL,
    delta TEXT NOT NULL,
    kind TEXT NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    resolved_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    previous TEXT NOT NULL DEFAULT '',
    next TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS partners (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_deal_id ON events(deal_id);
CREATE INDEX IF NOT EXISTS idx_payouts_deal_short_id ON payouts(deal_short_id);
CREATE INDEX IF NOT EXISTS idx_payouts_event_id ON payouts(event_id);
CREATE INDEX IF NOT EXISTS idx_payouts_mid ON payouts(mid);
CREATE INDEX IF NOT EXISTS idx_adjustments_deal_id ON adjustments(deal_id);
CREATE INDEX IF NOT EXISTS idx_adjustments_group_id ON adjustments(group_id);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
