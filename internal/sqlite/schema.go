// Package sqlite is the embedded primary-store dialect: a pure-Go SQLite
// database file under the data directory.
package sqlite

// Schema DDL for all tables. Child tables cascade on party deletion. The
// one-primary-per-kind rule for channels is kept by the orchestrator, not
// by an index.
const (
	createParties = `CREATE TABLE IF NOT EXISTS parties (
    party_id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    kind TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    secondary_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    converted_at TEXT NOT NULL DEFAULT ''
);`

	createChannels = `CREATE TABLE IF NOT EXISTS contact_channels (
    channel_id TEXT PRIMARY KEY,
    party_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    value TEXT NOT NULL,
    is_primary INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    FOREIGN KEY (party_id) REFERENCES parties(party_id) ON DELETE CASCADE
);`

	createAddresses = `CREATE TABLE IF NOT EXISTS addresses (
    address_id TEXT PRIMARY KEY,
    party_id TEXT NOT NULL,
    line1 TEXT NOT NULL DEFAULT '',
    line2 TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    region TEXT NOT NULL DEFAULT '',
    postal_code TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    FOREIGN KEY (party_id) REFERENCES parties(party_id) ON DELETE CASCADE
);`

	createAttributes = `CREATE TABLE IF NOT EXISTS attributes (
    attribute_id TEXT PRIMARY KEY,
    party_id TEXT NOT NULL,
    category TEXT NOT NULL,
    value TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (party_id) REFERENCES parties(party_id) ON DELETE CASCADE
);`

	createIndexes = `
CREATE INDEX IF NOT EXISTS idx_parties_kind ON parties(kind);
CREATE INDEX IF NOT EXISTS idx_channels_party ON contact_channels(party_id, kind);
CREATE INDEX IF NOT EXISTS idx_addresses_party ON addresses(party_id);
CREATE INDEX IF NOT EXISTS idx_attributes_party ON attributes(party_id, category);
`
)

// schema lists the DDL in dependency order.
var schema = []string{createParties, createChannels, createAddresses, createAttributes, createIndexes}
