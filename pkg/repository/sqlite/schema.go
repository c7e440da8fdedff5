package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
	owner           TEXT    NOT NULL,
	id              INTEGER NOT NULL,
	name            TEXT    NOT NULL,
	full_name       TEXT    NOT NULL,
	description     TEXT    NOT NULL DEFAULT '',
	html_url        TEXT    NOT NULL DEFAULT '',
	url_key         TEXT    NOT NULL DEFAULT '',
	private         BOOLEAN NOT NULL DEFAULT FALSE,
	stars           INTEGER NOT NULL DEFAULT 0,
	language        TEXT    NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	last_fetched_at INTEGER NOT NULL,
	local_path      TEXT,
	PRIMARY KEY (owner, id)
);
CREATE INDEX IF NOT EXISTS idx_repositories_url_key ON repositories(url_key);
CREATE INDEX IF NOT EXISTS idx_repositories_id ON repositories(id);

CREATE TABLE IF NOT EXISTS pull_requests (
	owner                TEXT    NOT NULL,
	id                   INTEGER NOT NULL,
	number               INTEGER NOT NULL,
	title                TEXT    NOT NULL DEFAULT '',
	html_url             TEXT    NOT NULL DEFAULT '',
	state                TEXT    NOT NULL DEFAULT '',
	repository_name      TEXT    NOT NULL DEFAULT '',
	repository_full_name TEXT    NOT NULL,
	author               TEXT    NOT NULL DEFAULT '',
	draft                BOOLEAN NOT NULL DEFAULT FALSE,
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL,
	last_fetched_at      INTEGER NOT NULL,
	PRIMARY KEY (owner, id)
);

CREATE TABLE IF NOT EXISTS pipelines (
	organization      TEXT    NOT NULL,
	project           TEXT    NOT NULL,
	id                INTEGER NOT NULL,
	name              TEXT    NOT NULL,
	path              TEXT    NOT NULL DEFAULT '',
	repository_url    TEXT,
	repository_key    TEXT    NOT NULL DEFAULT '',
	queue_status      TEXT    NOT NULL DEFAULT '',
	last_build_id     INTEGER,
	last_build_number TEXT    NOT NULL DEFAULT '',
	last_build_status TEXT    NOT NULL DEFAULT '',
	last_build_result TEXT    NOT NULL DEFAULT '',
	last_fetched_at   INTEGER NOT NULL,
	PRIMARY KEY (organization, project, id)
);
CREATE INDEX IF NOT EXISTS idx_pipelines_repository_key ON pipelines(repository_key);

CREATE TABLE IF NOT EXISTS scope_fetches (
	kind       TEXT    NOT NULL,
	scope_key  TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (kind, scope_key)
);
`
