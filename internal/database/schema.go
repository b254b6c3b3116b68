package database

// schema defines the persistent store. price_history and hype_snapshots are
// append-only: rows are inserted by the pipeline and never updated or
// deleted.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    upc         TEXT NOT NULL DEFAULT '',
    sku         TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    image_url   TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);

CREATE TABLE IF NOT EXISTS price_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id     INTEGER NOT NULL REFERENCES items(id),
    marketplace TEXT NOT NULL,
    price       REAL NOT NULL,
    condition   TEXT NOT NULL DEFAULT '',
    sold_at     TIMESTAMP,
    recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_price_history_item ON price_history(item_id);
CREATE INDEX IF NOT EXISTS idx_price_history_marketplace ON price_history(marketplace);
CREATE INDEX IF NOT EXISTS idx_price_history_recorded ON price_history(recorded_at);

CREATE TABLE IF NOT EXISTS hype_snapshots (
    id                       INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id                  INTEGER NOT NULL REFERENCES items(id),
    score                    INTEGER NOT NULL DEFAULT 0,
    trend                    TEXT NOT NULL DEFAULT 'stable',
    price_velocity_score     REAL NOT NULL DEFAULT 0,
    volume_score             REAL NOT NULL DEFAULT 0,
    marketplace_spread_score REAL NOT NULL DEFAULT 0,
    price_premium_score      REAL NOT NULL DEFAULT 0,
    momentum_score           REAL NOT NULL DEFAULT 0,
    recency_score            REAL NOT NULL DEFAULT 0,
    total_data_points        INTEGER NOT NULL DEFAULT 0,
    marketplace_count        INTEGER NOT NULL DEFAULT 0,
    price_change_pct         REAL NOT NULL DEFAULT 0,
    avg_daily_volume         REAL NOT NULL DEFAULT 0,
    recorded_at              TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_hype_snapshots_item ON hype_snapshots(item_id);
CREATE INDEX IF NOT EXISTS idx_hype_snapshots_recorded ON hype_snapshots(recorded_at);

CREATE TABLE IF NOT EXISTS alerts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id         INTEGER NOT NULL REFERENCES items(id),
    alert_type      TEXT NOT NULL,
    threshold_value REAL NOT NULL,
    is_active       INTEGER NOT NULL DEFAULT 1,
    last_triggered  TIMESTAMP,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_alerts_item ON alerts(item_id);
`
