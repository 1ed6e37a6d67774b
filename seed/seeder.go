package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/pointers/store"
)

// Result summarises a seeding run.
type Result struct {
	Created  int
	Existing int
}

// Seeder creates records through a repository.
type Seeder struct {
	repo        store.Repository
	logger      *slog.Logger
	concurrency int
}

// NewSeeder creates a Seeder running at most concurrency creates at once.
func NewSeeder(repo store.Repository, logger *slog.Logger, concurrency int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Seeder{repo: repo, logger: logger, concurrency: concurrency}
}

// Run creates every record. Records that already exist are counted, not
// rewritten, so a run can be repeated. The first other error stops the run.
func (s *Seeder) Run(ctx context.Context, records []store.Record) (Result, error) {
	var created, existing atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, r := range records {
		g.Go(func() error {
			err := s.repo.Create(ctx, r)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, store.ErrConflict):
				existing.Add(1)
			default:
				return fmt.Errorf("create %q: %w", r.ID, err)
			}
			return nil
		})
	}
	err := g.Wait()

	res := Result{Created: int(created.Load()), Existing: int(existing.Load())}
	s.logger.Info("seeding finished",
		"records", len(records),
		"created", res.Created,
		"existing", res.Existing,
		"failed", err != nil,
	)
	return res, err
}
