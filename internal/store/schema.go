package store

// schema is the Task Store's full DDL (spec §4.10/§6), laid out in the teacher's
// schema-as-string-constant style: one CREATE TABLE per entity plus the indexes spec §6
// calls out by name.
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	type_hint TEXT NOT NULL DEFAULT '',
	override_strategy TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	client_token TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	classification_type TEXT NOT NULL DEFAULT '',
	classification_complexity TEXT NOT NULL DEFAULT '',
	classification_confidence REAL NOT NULL DEFAULT 0,
	classification_source TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at DATETIME,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES tasks(id),
	strategy TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	started_at DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME,
	iterations_used INTEGER NOT NULL DEFAULT 0,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	failure_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS change_sets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES executions(id),
	files_changed INTEGER NOT NULL DEFAULT 0,
	lines_added INTEGER NOT NULL DEFAULT 0,
	lines_removed INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS file_changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	change_set_id INTEGER NOT NULL REFERENCES change_sets(id),
	path TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	change_type TEXT NOT NULL,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS iteration_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES executions(id),
	idx INTEGER NOT NULL,
	prompt_length INTEGER NOT NULL DEFAULT 0,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	validation_errors INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outbox_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL UNIQUE,
	task_id INTEGER NOT NULL REFERENCES tasks(id),
	kind TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	delivered_at DATETIME,
	attempts INTEGER NOT NULL DEFAULT 0,
	next_attempt_at DATETIME
);

CREATE TABLE IF NOT EXISTS publisher_lease (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	owner_id TEXT NOT NULL DEFAULT '',
	acquired_at DATETIME NOT NULL DEFAULT (datetime('now')),
	heartbeat_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tasks_status_updated ON tasks(status, updated_at);
CREATE INDEX IF NOT EXISTS idx_outbox_undelivered ON outbox_messages(delivered_at) WHERE delivered_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_executions_task_running ON executions(task_id) WHERE status = 'running';
CREATE INDEX IF NOT EXISTS idx_file_changes_change_set ON file_changes(change_set_id);
CREATE INDEX IF NOT EXISTS idx_iteration_records_execution ON iteration_records(execution_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_client_token ON tasks(client_token) WHERE client_token != '';
`
