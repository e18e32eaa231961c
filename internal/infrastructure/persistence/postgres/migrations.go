package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// Schema notes:
//   - user_challenges is keyed by (user_id, challenge_id); the primary key is
//     the duplicate-join guard.
//   - reward issuance relies on the conditional UPDATE in the participation
//     repository, not on a schema constraint, but completed rows are the only
//     rows with a non-null completed_at.
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_challenges",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_user_challenges",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_submissions",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS challenge_templates (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	challenge_type TEXT NOT NULL,
	tier TEXT NOT NULL,
	reward_xp INTEGER NOT NULL DEFAULT 0,
	reward_badges JSONB NOT NULL DEFAULT '[]',
	bonus_criteria JSONB NOT NULL DEFAULT '[]',
	recurrence TEXT NOT NULL DEFAULT 'none',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_templates_recurring
	ON challenge_templates (recurrence)
	WHERE enabled AND recurrence <> 'none';

CREATE TABLE IF NOT EXISTS challenges (
	id TEXT PRIMARY KEY,
	template_id TEXT REFERENCES challenge_templates(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	challenge_type TEXT NOT NULL,
	tier TEXT NOT NULL,
	start_date TIMESTAMPTZ,
	end_date TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'draft',
	reward_xp INTEGER NOT NULL DEFAULT 0,
	reward_badges JSONB NOT NULL DEFAULT '[]',
	bonus_criteria JSONB NOT NULL DEFAULT '[]',
	series_id TEXT,
	series_order INTEGER NOT NULL DEFAULT 0,
	participant_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_challenges_status ON challenges (status);
CREATE INDEX IF NOT EXISTS idx_challenges_due_activation
	ON challenges (start_date) WHERE status = 'scheduled';
CREATE INDEX IF NOT EXISTS idx_challenges_due_completion
	ON challenges (end_date) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_challenges_template ON challenges (template_id);
CREATE INDEX IF NOT EXISTS idx_challenges_series ON challenges (series_id, series_order);
CREATE INDEX IF NOT EXISTS idx_challenges_category ON challenges (category, status);
`

const migration001Down = `
DROP TABLE IF EXISTS challenges;
DROP TABLE IF EXISTS challenge_templates;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS user_challenges (
	user_id TEXT NOT NULL,
	challenge_id TEXT NOT NULL REFERENCES challenges(id),
	tier TEXT NOT NULL,
	category TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'joined',
	progress INTEGER NOT NULL DEFAULT 0,
	max_progress INTEGER NOT NULL DEFAULT 1,
	joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	submitted_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	xp_earned INTEGER NOT NULL DEFAULT 0,
	badges_earned JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, challenge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_challenges_user ON user_challenges (user_id, joined_at DESC);
CREATE INDEX IF NOT EXISTS idx_user_challenges_user_status ON user_challenges (user_id, status);
CREATE INDEX IF NOT EXISTS idx_user_challenges_challenge_status ON user_challenges (challenge_id, status);
`

const migration002Down = `
DROP TABLE IF EXISTS user_challenges;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	challenge_id TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	evidence_links JSONB NOT NULL DEFAULT '[]',
	submission_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	FOREIGN KEY (user_id, challenge_id) REFERENCES user_challenges(user_id, challenge_id)
);

CREATE INDEX IF NOT EXISTS idx_submissions_record
	ON submissions (user_id, challenge_id, created_at);
`

const migration003Down = `
DROP TABLE IF EXISTS submissions;
`
