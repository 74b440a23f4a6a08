package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250815-000000",
		Description: "initial schema: report jobs, reports, stage artifacts, usage records",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS report_jobs (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				homepage_url TEXT NOT NULL,
				pricing_url TEXT,
				competitor_urls TEXT NOT NULL DEFAULT '[]',
				company TEXT,
				segment TEXT,
				monthly_traffic INTEGER NOT NULL DEFAULT 0,
				average_deal_usd INTEGER NOT NULL DEFAULT 0,
				webhook_url TEXT,
				status TEXT NOT NULL DEFAULT 'queued',
				execution_stage TEXT NOT NULL DEFAULT 'queued',
				execution_progress INTEGER NOT NULL DEFAULT 0,
				attempt_count INTEGER NOT NULL DEFAULT 0,
				idempotency_key TEXT,
				error TEXT,
				tokens_input INTEGER NOT NULL DEFAULT 0,
				tokens_output INTEGER NOT NULL DEFAULT 0,
				estimated_cost_usd REAL NOT NULL DEFAULT 0,
				lease_expires_at TEXT,
				next_attempt_at TEXT,
				started_at TEXT,
				completed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_report_jobs_user_id ON report_jobs(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_report_jobs_status_created ON report_jobs(status, created_at)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_report_jobs_idempotency
				ON report_jobs(user_id, idempotency_key)
				WHERE idempotency_key IS NOT NULL`,

			`CREATE TABLE IF NOT EXISTS reports (
				id TEXT PRIMARY KEY,
				job_id TEXT NOT NULL REFERENCES report_jobs(id),
				user_id TEXT NOT NULL,
				document TEXT NOT NULL,
				scoring_model_version TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_job_id ON reports(job_id)`,
			`CREATE INDEX IF NOT EXISTS idx_reports_user_id ON reports(user_id)`,

			`CREATE TABLE IF NOT EXISTS stage_artifacts (
				id TEXT PRIMARY KEY,
				job_id TEXT NOT NULL REFERENCES report_jobs(id),
				stage TEXT NOT NULL,
				payload TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_stage_artifacts_job_stage ON stage_artifacts(job_id, stage)`,

			`CREATE TABLE IF NOT EXISTS usage_records (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				job_id TEXT NOT NULL,
				date TEXT NOT NULL,
				status TEXT NOT NULL,
				tokens_input INTEGER NOT NULL DEFAULT 0,
				tokens_output INTEGER NOT NULL DEFAULT 0,
				estimated_cost_usd REAL NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_records_user_date ON usage_records(user_id, date)`,
		},
	})
}
