// Package judge runs learner queries against challenge datasets and decides
// whether they are correct.
package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/rewrite"
	"github.com/elmanelman/sql-judge/schema"
)

type Options struct {
	Strategy rewrite.Strategy
	// Dedicated engines give every challenge and user their own namespace.
	Dedicated map[engine.Engine]bool
	// Locker serializes provisioning across processes. Optional.
	Locker Locker
}

type Judge struct {
	logger       *zap.Logger
	store        Store
	executor     *engine.Executor
	targets      Targets
	opts         Options
	materializer *Materializer
	generator    *Generator
	provisioner  *Provisioner
}

func NewJudge(logger *zap.Logger, store Store, executor *engine.Executor, targets Targets, opts Options) *Judge {
	materializer := NewMaterializer(executor)
	return &Judge{
		logger:       logger,
		store:        store,
		executor:     executor,
		targets:      targets,
		opts:         opts,
		materializer: materializer,
		generator:    NewGenerator(executor, store, targets, opts.Strategy),
		provisioner:  NewProvisioner(logger, executor, materializer, opts.Locker),
	}
}

// Materialize loads the challenge tables into the shared database of e, or
// of every engine of the challenge when e is empty.
func (j *Judge) Materialize(ctx context.Context, challengeID int64, e string) ([]*Report, error) {
	c, err := j.store.Challenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	engines := []engine.Engine(c.Engines)
	if e != "" {
		one, err := j.resolveEngine(c, e)
		if err != nil {
			return nil, err
		}
		engines = []engine.Engine{one}
	}

	reports := make([]*Report, 0, len(engines))
	for _, eng := range engines {
		p, err := j.targets.Params(eng)
		if err != nil {
			return nil, err
		}
		report, err := j.materializer.Materialize(ctx, c, eng, p)
		if err != nil {
			return nil, err
		}
		j.logger.Info(
			"challenge materialized",
			zap.Int64("challenge_id", c.ID),
			zap.String("engine", string(eng)),
			zap.Int("tables", len(report.Tables)),
			zap.Int("warnings", len(report.Warnings)),
		)
		reports = append(reports, report)
	}
	j.provisioner.Forget(c.ID)
	return reports, nil
}

// Reload replaces one dataset of the challenge on every engine of it.
func (j *Judge) Reload(ctx context.Context, challengeID int64, flag schema.Flag) ([]*Report, error) {
	c, err := j.store.Challenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(c.Engines))
	for _, eng := range c.Engines {
		p, err := j.targets.Params(eng)
		if err != nil {
			return nil, err
		}
		report, err := j.materializer.Reload(ctx, c, eng, p, flag)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	j.provisioner.Forget(c.ID)
	return reports, nil
}

// GenerateReference recomputes and stores the expected result.
func (j *Judge) GenerateReference(ctx context.Context, challengeID int64) (Expected, error) {
	c, err := j.store.Challenge(ctx, challengeID)
	if err != nil {
		return Expected{}, err
	}
	expected, err := j.generator.Generate(ctx, c)
	if err != nil {
		j.logger.Warn(
			"reference generation failed",
			zap.Int64("challenge_id", c.ID),
			zap.Error(err),
		)
		return Expected{}, err
	}
	return expected, nil
}

// Run executes a learner query on the practice dataset.
func (j *Judge) Run(ctx context.Context, a Attempt) (*engine.Result, error) {
	c, err := j.store.Challenge(ctx, a.ChallengeID)
	if err != nil {
		return nil, err
	}
	e, err := j.resolveEngine(c, a.Engine)
	if err != nil {
		return nil, err
	}
	query, err := j.scope(c, e, a.Query, schema.Practice)
	if err != nil {
		return nil, err
	}
	p, err := j.params(ctx, c, a.UserID, e)
	if err != nil {
		return nil, err
	}
	return j.executor.Execute(ctx, e, p, query)
}

// Submit judges a learner query on the grading dataset. Learner mistakes
// are reported in the verdict; the error is reserved for failures of the
// judge itself.
func (j *Judge) Submit(ctx context.Context, a Attempt) (Verdict, error) {
	c, err := j.store.Challenge(ctx, a.ChallengeID)
	if err != nil {
		return Verdict{}, err
	}
	e, err := j.resolveEngine(c, a.Engine)
	if err != nil {
		return Verdict{}, err
	}
	expected, err := DecodeExpected(c.Expected)
	if err != nil {
		return Verdict{}, fmt.Errorf("challenge %d: %w", c.ID, err)
	}

	if r, ok := violatedRestriction(a.Query, c.Restrictions, e.Dialect()); ok {
		return verdict(RestrictionViolated, "%q is restricted", r), nil
	}

	query, err := j.scope(c, e, a.Query, schema.Grading)
	if err != nil {
		if errors.Is(err, rewrite.ErrIsolation) {
			return verdict(IsolationError, "%v", err), nil
		}
		return Verdict{}, err
	}

	p, err := j.params(ctx, c, a.UserID, e)
	if err != nil {
		return Verdict{}, err
	}
	res, err := j.executor.Execute(ctx, e, p, query)
	if err != nil {
		var stmtErr *engine.StatementError
		if errors.As(err, &stmtErr) {
			v := verdict(ExecutionError, "%v", stmtErr)
			index := stmtErr.Index
			v.StatementIndex = &index
			return v, nil
		}
		return Verdict{}, err
	}

	cmp := Validate(res.ResultSet, expected)
	if !cmp.Equal {
		v := verdict(IncorrectContent, "%s", cmp.Reason)
		v.Learner = &cmp.Learner
		v.Expected = &cmp.Expected
		return v, nil
	}
	if c.CheckOrder && !SameOrder(res.ResultSet, expected) {
		v := verdict(IncorrectOrder, "rows are not in the expected order")
		v.Learner = &cmp.Learner
		v.Expected = &cmp.Expected
		return v, nil
	}
	return verdict(Accepted, ""), nil
}

func (j *Judge) resolveEngine(c *Challenge, name string) (engine.Engine, error) {
	if strings.TrimSpace(name) == "" {
		return c.Engines.Primary()
	}
	e, err := engine.Parse(name)
	if err != nil {
		return "", err
	}
	if !c.Engines.Supports(e) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEngine, e)
	}
	return e, nil
}

func (j *Judge) scope(c *Challenge, e engine.Engine, query string, flag schema.Flag) (string, error) {
	layout, err := Layout(c, e.Dialect())
	if err != nil {
		return "", err
	}
	return rewrite.Rewrite(query, flag, scopeTables(layout), rewrite.Options{
		Strategy: j.opts.Strategy,
		Dialect:  e.Dialect(),
	})
}

func (j *Judge) params(ctx context.Context, c *Challenge, userID int64, e engine.Engine) (engine.Params, error) {
	base, err := j.targets.Params(e)
	if err != nil {
		return engine.Params{}, err
	}
	if !j.opts.Dedicated[e] {
		return base, nil
	}
	return j.provisioner.Provision(ctx, c, userID, e, base)
}
