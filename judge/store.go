package judge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/elmanelman/sql-judge/templates"
)

// Store is the main database as seen by the judge.
type Store interface {
	// Challenge loads a challenge with its tables and restrictions.
	Challenge(ctx context.Context, id int64) (*Challenge, error)
	SaveExpected(ctx context.Context, challengeID int64, doc []byte) error
	PendingSubmissions(ctx context.Context, limit int) ([]Submission, error)
	// ClaimSubmission reports false when another reviewer claimed it first.
	ClaimSubmission(ctx context.Context, id int64) (bool, error)
	// ReleaseSubmission returns a claimed submission to the pending queue.
	ReleaseSubmission(ctx context.Context, id int64) error
	UpdateSubmission(ctx context.Context, v Verdict) error
}

type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the main database tables when they are missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range templates.MainSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Challenge(ctx context.Context, id int64) (*Challenge, error) {
	var c Challenge
	if err := s.db.GetContext(ctx, &c, s.db.Rebind(templates.FetchChallenge), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("challenge %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &c.Tables, s.db.Rebind(templates.FetchChallengeTables), id); err != nil {
		return nil, err
	}
	restrictions, err := s.FetchRestrictions(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Restrictions = restrictions
	return &c, nil
}

func (s *SQLStore) FetchRestrictions(ctx context.Context, challengeID int64) ([]string, error) {
	var restrictions []string
	err := s.db.SelectContext(ctx, &restrictions, s.db.Rebind(templates.FetchTaskRestrictions), challengeID)
	if err != nil {
		return nil, err
	}
	return restrictions, nil
}

func (s *SQLStore) SaveExpected(ctx context.Context, challengeID int64, doc []byte) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(templates.UpdateExpectedResult), string(doc), challengeID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("challenge %d: %w", challengeID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) PendingSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	var subs []Submission
	err := s.db.SelectContext(ctx, &subs, s.db.Rebind(templates.FetchSelectionJobs), PendingReview, limit)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *SQLStore) ClaimSubmission(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(templates.ClaimSubmission), OnReview, id, PendingReview)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) ReleaseSubmission(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(templates.ClaimSubmission), PendingReview, id, OnReview)
	return err
}

func (s *SQLStore) UpdateSubmission(ctx context.Context, v Verdict) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(templates.UpdateSubmissionReviewInfo), v.SubmissionStatusID, v.ReviewerMessage, v.SubmissionID)
	return err
}
