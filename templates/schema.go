package templates

// MainSchema creates the main database tables. The column types are understood
// by SQLite, MySQL and PostgreSQL alike.
var MainSchema = []string{
	`CREATE TABLE IF NOT EXISTS challenges (
	id BIGINT PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	question TEXT NOT NULL,
	hint TEXT NOT NULL,
	reference_query TEXT NOT NULL,
	engines VARCHAR(255) NOT NULL,
	expected TEXT,
	difficulty VARCHAR(32) NOT NULL,
	visible BOOLEAN NOT NULL,
	check_order BOOLEAN NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS challenge_tables (
	id BIGINT PRIMARY KEY,
	challenge_id BIGINT NOT NULL REFERENCES challenges (id),
	name VARCHAR(64) NOT NULL,
	schema_sql TEXT NOT NULL,
	practice_sql TEXT NOT NULL,
	grading_sql TEXT NOT NULL,
	display_order INTEGER NOT NULL,
	UNIQUE (challenge_id, name)
)`,
	`CREATE TABLE IF NOT EXISTS challenge_restrictions (
	challenge_id BIGINT NOT NULL REFERENCES challenges (id),
	keyword VARCHAR(64) NOT NULL,
	PRIMARY KEY (challenge_id, keyword)
)`,
	`CREATE TABLE IF NOT EXISTS submissions (
	id BIGINT PRIMARY KEY,
	challenge_id BIGINT NOT NULL REFERENCES challenges (id),
	user_id BIGINT NOT NULL,
	engine VARCHAR(32) NOT NULL,
	solution TEXT NOT NULL,
	status_id INTEGER NOT NULL,
	reviewer_message TEXT NOT NULL
)`,
}
