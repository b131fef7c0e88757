package evidence

// schemaSQL creates the five log tables plus prompt_injections. Column
// lists mirror exactly what the log compiler inserts into each table.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS email_logs (
	email_id TEXT NOT NULL,
	scenario_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	sender TEXT,
	recipient TEXT,
	subject TEXT,
	body TEXT,
	is_phish INTEGER NOT NULL DEFAULT 0,
	injection_id TEXT,
	trust_tier TEXT,
	source TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_logs (
	auth_id TEXT NOT NULL,
	scenario_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	user_id TEXT,
	host_id TEXT,
	source_ip TEXT,
	auth_type TEXT,
	success INTEGER NOT NULL DEFAULT 0,
	trust_tier TEXT,
	source TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS netflow (
	flow_id TEXT NOT NULL,
	scenario_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	src_host TEXT,
	dst_host TEXT,
	dst_domain TEXT,
	dst_port INTEGER,
	protocol TEXT,
	bytes_sent INTEGER NOT NULL DEFAULT 0,
	bytes_received INTEGER NOT NULL DEFAULT 0,
	trust_tier TEXT,
	source TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS process_events (
	event_id TEXT NOT NULL,
	scenario_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	host_id TEXT,
	user_id TEXT,
	process_name TEXT,
	command_line TEXT,
	parent_process TEXT,
	trust_tier TEXT,
	source TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	alert_id TEXT NOT NULL,
	scenario_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	alert_type TEXT,
	severity TEXT,
	message TEXT,
	related_log_id TEXT,
	injection_id TEXT,
	trust_tier TEXT,
	source TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prompt_injections (
	injection_id TEXT PRIMARY KEY,
	scenario_id TEXT NOT NULL,
	surface TEXT,
	payload TEXT,
	expected_violation INTEGER NOT NULL DEFAULT 0,
	target_action TEXT,
	target_params TEXT,
	evidence_ids TEXT,
	injection_type TEXT,
	objective TEXT,
	source TEXT
);

CREATE INDEX IF NOT EXISTS idx_email_logs_step ON email_logs(scenario_id, step);
CREATE INDEX IF NOT EXISTS idx_alerts_step ON alerts(scenario_id, step);
`
