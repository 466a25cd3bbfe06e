package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/elmanelman/sql-judge/engine"
	"github.com/elmanelman/sql-judge/rewrite"
	"github.com/elmanelman/sql-judge/schema"
)

// Generator produces the expected result of a challenge by running its
// reference query on the grading dataset of the primary engine.
type Generator struct {
	executor *engine.Executor
	store    Store
	targets  Targets
	strategy rewrite.Strategy
}

func NewGenerator(executor *engine.Executor, store Store, targets Targets, strategy rewrite.Strategy) *Generator {
	return &Generator{executor: executor, store: store, targets: targets, strategy: strategy}
}

// Generate replaces the stored expected result only on success. On failure
// the previous document stays and the error carries the reason.
func (g *Generator) Generate(ctx context.Context, c *Challenge) (Expected, error) {
	if strings.TrimSpace(c.ReferenceQuery) == "" {
		return Expected{}, fmt.Errorf("challenge %d: %w", c.ID, ErrNoReference)
	}
	e, err := c.Engines.Primary()
	if err != nil {
		return Expected{}, err
	}
	p, err := g.targets.Params(e)
	if err != nil {
		return Expected{}, err
	}
	layout, err := Layout(c, e.Dialect())
	if err != nil {
		return Expected{}, err
	}

	query, err := rewrite.Rewrite(c.ReferenceQuery, schema.Grading, scopeTables(layout), rewrite.Options{
		Strategy: g.strategy,
		Dialect:  e.Dialect(),
	})
	if err != nil {
		return Expected{}, fmt.Errorf("reference query: %w", err)
	}
	res, err := g.executor.Execute(ctx, e, p, query)
	if err != nil {
		return Expected{}, fmt.Errorf("reference query: %w", err)
	}

	expected := ExpectedFrom(res.ResultSet)
	doc, err := expected.Encode()
	if err != nil {
		return Expected{}, err
	}
	if err := g.store.SaveExpected(ctx, c.ID, doc); err != nil {
		return Expected{}, err
	}
	c.Expected = doc
	return expected, nil
}
