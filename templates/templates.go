// Package templates holds the SQL run against the main database. Queries use
// ? placeholders and are rebound for the driver by the caller.
package templates

const FetchChallenge = `
SELECT id, title, question, hint, reference_query, engines, expected,
       difficulty, visible, check_order
FROM challenges
WHERE id = ?`

const FetchChallengeTables = `
SELECT id, challenge_id, name, schema_sql, practice_sql, grading_sql, display_order
FROM challenge_tables
WHERE challenge_id = ?
ORDER BY display_order, id`

const FetchTaskRestrictions = `
SELECT keyword
FROM challenge_restrictions
WHERE challenge_id = ?
ORDER BY keyword`

const UpdateExpectedResult = `
UPDATE challenges
SET expected = ?
WHERE id = ?`

const FetchSelectionJobs = `
SELECT id, challenge_id, user_id, engine, solution, status_id, reviewer_message
FROM submissions
WHERE status_id = ?
ORDER BY id
LIMIT ?`

// ClaimSubmission moves a submission between statuses only if no other
// reviewer did it first.
const ClaimSubmission = `
UPDATE submissions
SET status_id = ?
WHERE id = ? AND status_id = ?`

const UpdateSubmissionReviewInfo = `
UPDATE submissions
SET status_id = ?, reviewer_message = ?
WHERE id = ?`
