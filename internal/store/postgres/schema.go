package postgres

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id               BIGSERIAL PRIMARY KEY,
	normalized_name  TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	url              TEXT NOT NULL,
	career_page_url  TEXT,
	company_type     TEXT NOT NULL DEFAULT 'company',
	industry         TEXT,
	location         TEXT,
	funding_stage    TEXT,
	source           TEXT,
	notes            TEXT,
	discovered_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_scraped_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS jobs (
	id              BIGSERIAL PRIMARY KEY,
	company_id      BIGINT NOT NULL REFERENCES companies(id),
	title           TEXT NOT NULL,
	description     TEXT,
	url             TEXT NOT NULL UNIQUE,
	location        TEXT,
	relevance_score INTEGER NOT NULL CHECK (relevance_score BETWEEN 0 AND 100),
	role_type       TEXT NOT NULL DEFAULT 'other',
	recommendation  TEXT,
	reasoning       TEXT,
	ai_analysis     JSONB,
	status          TEXT NOT NULL DEFAULT 'new',
	discovered_at   TIMESTAMPTZ NOT NULL,
	last_seen_at    TIMESTAMPTZ NOT NULL,
	applied_at      TIMESTAMPTZ,
	notes           TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_score ON jobs(relevance_score);

CREATE TABLE IF NOT EXISTS scrape_quota (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	period TEXT NOT NULL,
	used   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS search_history (
	id          TEXT PRIMARY KEY,
	trigger     TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	companies   INTEGER NOT NULL,
	listings    INTEGER NOT NULL,
	inserted    INTEGER NOT NULL,
	updated     INTEGER NOT NULL,
	spooled     INTEGER NOT NULL,
	failures    INTEGER NOT NULL,
	cancelled   BOOLEAN NOT NULL DEFAULT FALSE
);
`
