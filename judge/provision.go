package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/elmanelman/sql-judge/engine"
)

// NamespaceName is the dedicated database, schema or file name of a
// challenge and user.
func NamespaceName(challengeID, userID int64) string {
	return fmt.Sprintf("c%d_u%d", challengeID, userID)
}

// Provisioner creates a dedicated namespace per challenge and user on
// engines that need one, and loads the challenge tables into it once.
// Provisioning of one key never runs concurrently: calls are serialized in
// process and, with a remote Locker, across processes.
type Provisioner struct {
	logger       *zap.Logger
	executor     *engine.Executor
	materializer *Materializer
	remote       Locker

	local keyedMutex
	ready sync.Map
}

type namespace struct {
	challengeID int64
	params      engine.Params
}

// NewProvisioner accepts a nil remote locker.
func NewProvisioner(logger *zap.Logger, executor *engine.Executor, materializer *Materializer, remote Locker) *Provisioner {
	return &Provisioner{
		logger:       logger,
		executor:     executor,
		materializer: materializer,
		remote:       remote,
	}
}

// Provision returns the params of the namespace of c and userID on e.
func (p *Provisioner) Provision(ctx context.Context, c *Challenge, userID int64, e engine.Engine, base engine.Params) (engine.Params, error) {
	name := NamespaceName(c.ID, userID)
	key := string(e) + ":" + name
	if v, ok := p.ready.Load(key); ok {
		return v.(namespace).params, nil
	}

	unlock := p.local.Lock(key)
	defer unlock()
	if p.remote != nil {
		unlockRemote, err := p.remote.Lock(ctx, key)
		if err != nil {
			return engine.Params{}, err
		}
		defer unlockRemote()
	}
	if v, ok := p.ready.Load(key); ok {
		return v.(namespace).params, nil
	}

	d, err := engine.DriverFor(e)
	if err != nil {
		return engine.Params{}, err
	}
	params, stmts, err := d.Namespace(base, name)
	if err != nil {
		return engine.Params{}, err
	}
	if e == engine.SQLite {
		if err := os.MkdirAll(filepath.Dir(params.Database), 0o755); err != nil {
			return engine.Params{}, err
		}
	}
	if len(stmts) > 0 {
		if _, err := p.executor.ExecuteStatements(ctx, e, base, stmts); err != nil {
			return engine.Params{}, fmt.Errorf("create namespace %s: %w", name, err)
		}
	}
	if _, err := p.materializer.Materialize(ctx, c, e, params); err != nil {
		return engine.Params{}, fmt.Errorf("materialize namespace %s: %w", name, err)
	}

	p.ready.Store(key, namespace{challengeID: c.ID, params: params})
	p.logger.Info(
		"namespace provisioned",
		zap.String("engine", string(e)),
		zap.String("namespace", name),
	)
	return params, nil
}

// Forget drops the cached namespaces of a challenge so they are reloaded
// on next use.
func (p *Provisioner) Forget(challengeID int64) {
	p.ready.Range(func(k, v interface{}) bool {
		if v.(namespace).challengeID == challengeID {
			p.ready.Delete(k)
		}
		return true
	})
}
