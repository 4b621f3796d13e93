package storage

const schema = `
-- The 'kv' table is the durable key/value store the editor persists into.
-- Each key holds one serialized document that is rewritten as a whole.
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`
