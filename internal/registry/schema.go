package registry

const schemaSQL = `
CREATE TABLE IF NOT EXISTS artifacts (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    version_id    TEXT NOT NULL UNIQUE,
    kind          TEXT NOT NULL,
    department    TEXT NOT NULL DEFAULT '',
    category      TEXT NOT NULL DEFAULT '',
    currency      TEXT NOT NULL DEFAULT '',
    params        TEXT NOT NULL,
    schema        TEXT NOT NULL,
    metrics       TEXT NOT NULL,
    training_size INTEGER NOT NULL,
    created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind, seq);
CREATE INDEX IF NOT EXISTS idx_artifacts_group ON artifacts(kind, department, category, currency, seq);
`
