package judge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/config"
)

// Judges reviews the pending submissions of the main database in the
// background and writes the verdicts back.
type Judges struct {
	logger *zap.Logger
	store  Store
	judge  *Judge

	waitGroup *sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	stop      chan struct{}

	selectionJudge *SelectionJudge

	verdicts chan Verdict
}

func NewJudges(logger *zap.Logger, store Store, judge *Judge, wg *sync.WaitGroup) *Judges {
	ctx, cancel := context.WithCancel(context.Background())
	return &Judges{
		logger:    logger,
		store:     store,
		judge:     judge,
		waitGroup: wg,
		ctx:       ctx,
		cancel:    cancel,
		stop:      make(chan struct{}),
		verdicts:  make(chan Verdict),
	}
}

func (j *Judges) Start(cfg config.PollerConfig) error {
	j.waitGroup.Add(1)
	go j.SubmissionUpdater()

	j.selectionJudge = NewSelectionJudge(j.logger, j.store, j.judge, j.waitGroup, j.ctx, j.stop, j.verdicts)
	return j.selectionJudge.Start(cfg)
}

func (j *Judges) Stop() {
	if j.selectionJudge != nil {
		j.selectionJudge.Stop()
	}
	close(j.stop)
	j.cancel()
}

func (j *Judges) SubmissionUpdater() {
	defer func() {
		j.logger.Info("stopped submission updater")
		j.waitGroup.Done()
	}()
	for {
		select {
		case <-j.stop:
			return
		case v := <-j.verdicts:
			if err := j.store.UpdateSubmission(j.ctx, v); err != nil {
				j.logger.Error(
					"submission update failed",
					zap.Int64("submission_id", v.SubmissionID),
					zap.Error(err),
				)
				continue
			}
			j.logger.Info(
				"submission reviewed",
				zap.Int64("submission_id", v.SubmissionID),
				zap.Stringer("status", v.SubmissionStatusID),
			)
		}
	}
}
