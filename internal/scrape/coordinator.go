package scrape

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/quotawatch/quotawatch/internal/browser"
	"github.com/quotawatch/quotawatch/pkg/model"
)

// SessionRunner runs one account's scraping session on a page. It must
// not fail: unusable sessions come back as failure records.
type SessionRunner interface {
	Run(ctx context.Context, page browser.Page, acc model.Account) model.RawUsage
}

// Coordinator fans accounts out over a bounded number of concurrent
// sessions against one shared engine.
type Coordinator struct {
	engine browser.Engine
	runner SessionRunner
	limit  int64
	logger *slog.Logger
}

// NewCoordinator creates a coordinator running at most limit sessions at
// once. A limit below one falls back to strictly sequential runs.
func NewCoordinator(engine browser.Engine, runner SessionRunner, limit int, logger *slog.Logger) *Coordinator {
	if limit < 1 {
		limit = 1
	}
	return &Coordinator{
		engine: engine,
		runner: runner,
		limit:  int64(limit),
		logger: logger,
	}
}

// RunAll scrapes every account and returns one record per account in
// input order, no matter which session finished first. Each session gets
// its own isolated page, and a session failing only ever costs its own
// slot. The engine must already be started.
func (c *Coordinator) RunAll(ctx context.Context, accounts []model.Account) []model.RawUsage {
	results := make([]model.RawUsage, len(accounts))
	sem := semaphore.NewWeighted(c.limit)
	var wg sync.WaitGroup

	for i, acc := range accounts {
		// Acquire may admit even on a done context, so check explicitly:
		// a canceled run must not start new sessions.
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			c.logger.Error("admission gate closed", "error", err)
			for j := i; j < len(accounts); j++ {
				results[j] = model.FailedUsage(accounts[j])
			}
			break
		}

		wg.Add(1)
		go func(slot int, acc model.Account) {
			defer wg.Done()
			defer sem.Release(1)
			// Each goroutine writes only its own slot, wg.Wait is the
			// read barrier.
			results[slot] = c.runOne(ctx, acc)
		}(i, acc)
	}

	wg.Wait()
	return results
}

func (c *Coordinator) runOne(ctx context.Context, acc model.Account) model.RawUsage {
	page, err := c.engine.NewPage(ctx)
	if err != nil {
		c.logger.Error("open session", "account", acc.DisplayName(), "error", err)
		return model.FailedUsage(acc)
	}
	defer func() {
		if err := page.Close(); err != nil {
			c.logger.Warn("close session", "account", acc.DisplayName(), "error", err)
		}
	}()

	return c.runner.Run(ctx, page, acc)
}
