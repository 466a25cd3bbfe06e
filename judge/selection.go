package judge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/config"
)

const releaseTimeout = 5 * time.Second

// SelectionJudge fetches pending submissions on a ticker and fans them out
// to reviewers.
type SelectionJudge struct {
	logger    *zap.Logger
	store     Store
	judge     *Judge
	waitGroup *sync.WaitGroup
	ctx       context.Context
	stop      chan struct{}
	verdicts  chan Verdict

	fetchTicker *time.Ticker
	batchSize   int
	jobs        chan Submission
}

func NewSelectionJudge(
	logger *zap.Logger,
	store Store,
	judge *Judge,
	waitGroup *sync.WaitGroup,
	ctx context.Context,
	stop chan struct{},
	verdicts chan Verdict,
) *SelectionJudge {
	return &SelectionJudge{
		logger:    logger,
		store:     store,
		judge:     judge,
		waitGroup: waitGroup,
		ctx:       ctx,
		stop:      stop,
		verdicts:  verdicts,
		jobs:      make(chan Submission),
	}
}

func (j *SelectionJudge) Start(cfg config.PollerConfig) error {
	j.fetchTicker = time.NewTicker(time.Duration(cfg.FetchPeriod) * time.Millisecond)
	j.batchSize = cfg.BatchSize

	j.waitGroup.Add(1 + cfg.ReviewerCount)

	go j.StartFetching()
	for id := 1; id <= cfg.ReviewerCount; id++ {
		go j.SelectionReviewer(id)
	}

	return nil
}

func (j *SelectionJudge) Stop() {
	j.fetchTicker.Stop()
}

// FetchJobs claims pending submissions and hands them to the reviewers.
func (j *SelectionJudge) FetchJobs() error {
	subs, err := j.store.PendingSubmissions(j.ctx, j.batchSize)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		claimed, err := j.store.ClaimSubmission(j.ctx, sub.ID)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}
		select {
		case <-j.stop:
			j.release(sub.ID)
			return nil
		case j.jobs <- sub:
		}
	}
	return nil
}

// release hands a claimed submission back to the queue. The judges context
// may already be cancelled when it runs.
func (j *SelectionJudge) release(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := j.store.ReleaseSubmission(ctx, id); err != nil {
		j.logger.Error(
			"failed releasing submission",
			zap.Int64("submission_id", id),
			zap.Error(err),
		)
	}
}

func (j *SelectionJudge) StartFetching() {
	defer func() {
		j.logger.Info("stopped fetching selection jobs")
		j.waitGroup.Done()
	}()
	for {
		select {
		case <-j.stop:
			return
		case <-j.fetchTicker.C:
			if err := j.FetchJobs(); err != nil {
				j.logger.Error("failed fetching selection jobs", zap.Error(err))
			}
		}
	}
}

func (j *SelectionJudge) SelectionReviewer(reviewerID int) {
	defer func() {
		j.logger.Info(
			"stopped selection reviewer",
			zap.Int("reviewer_id", reviewerID),
		)
		j.waitGroup.Done()
	}()
	for {
		select {
		case <-j.stop:
			return
		case sub := <-j.jobs:
			v := j.review(sub)
			select {
			case <-j.stop:
				j.release(sub.ID)
				return
			case j.verdicts <- v:
			}
		}
	}
}

func (j *SelectionJudge) review(sub Submission) Verdict {
	v, err := j.judge.Submit(j.ctx, sub.attempt())
	if err != nil {
		j.logger.Error(
			"error reviewing submission",
			zap.Int64("submission_id", sub.ID),
			zap.Int64("challenge_id", sub.ChallengeID),
			zap.Error(err),
		)
		v = verdict(SystemError, "%v", err)
	}
	v.SubmissionID = sub.ID
	return v
}
