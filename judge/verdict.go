package judge

import (
	"fmt"

	"github.com/elmanelman/sql-judge/engine"
)

type Status int

const (
	Unknown Status = iota
	PendingReview
	OnReview
	Accepted
	ExecutionError
	RestrictionViolated
	IncorrectContent
	IncorrectOrder
	IsolationError
	SystemError
)

var statusNames = [...]string{
	Unknown:             "unknown",
	PendingReview:       "pending_review",
	OnReview:            "on_review",
	Accepted:            "accepted",
	ExecutionError:      "execution_error",
	RestrictionViolated: "restriction_violated",
	IncorrectContent:    "incorrect_content",
	IncorrectOrder:      "incorrect_order",
	IsolationError:      "isolation_error",
	SystemError:         "system_error",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Verdict struct {
	SubmissionID       int64  `db:"submission_id" json:"submission_id,omitempty"`
	SubmissionStatusID Status `db:"submission_status_id" json:"status"`
	ReviewerMessage    string `db:"reviewer_message" json:"message,omitempty"`

	Correct bool `db:"-" json:"correct"`

	// StatementIndex is set for execution errors.
	StatementIndex *int              `db:"-" json:"statement_index,omitempty"`
	Learner        *engine.ResultSet `db:"-" json:"learner,omitempty"`
	Expected       *Expected         `db:"-" json:"expected,omitempty"`
}

func verdict(status Status, format string, args ...interface{}) Verdict {
	return Verdict{
		SubmissionStatusID: status,
		ReviewerMessage:    fmt.Sprintf(format, args...),
		Correct:            status == Accepted,
	}
}
