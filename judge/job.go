package judge

// Submission is a learner solution waiting in the main database.
type Submission struct {
	ID              int64  `db:"id"`
	ChallengeID     int64  `db:"challenge_id"`
	UserID          int64  `db:"user_id"`
	Engine          string `db:"engine"`
	Solution        string `db:"solution"`
	StatusID        Status `db:"status_id"`
	ReviewerMessage string `db:"reviewer_message"`
}

// Attempt is one query of a learner against a challenge.
type Attempt struct {
	ChallengeID int64
	UserID      int64
	// Engine defaults to the challenge's primary engine.
	Engine string
	Query  string
}

func (s Submission) attempt() Attempt {
	return Attempt{ChallengeID: s.ChallengeID, UserID: s.UserID, Engine: s.Engine, Query: s.Solution}
}
