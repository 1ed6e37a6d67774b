package instrument

import (
	"context"
	"log/slog"
	"time"

	"github.com/jacentio/pointers/store"
)

// WithLogging returns a Repository that logs the outcome of every operation
// on repo. Successes log at debug, failures at info and errors at error level.
func WithLogging(repo store.Repository, logger *slog.Logger) store.Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingRepository{next: repo, logger: logger}
}

type loggingRepository struct {
	next   store.Repository
	logger *slog.Logger
}

func (r *loggingRepository) log(ctx context.Context, op string, start time.Time, err error, attrs ...slog.Attr) {
	outcome := Outcome(err)
	level := slog.LevelDebug
	switch outcome {
	case OutcomeFailure:
		level = slog.LevelInfo
	case OutcomeError:
		level = slog.LevelError
	}
	attrs = append(attrs,
		slog.String("operation", op),
		slog.String("outcome", outcome),
		slog.Duration("duration", time.Since(start)),
	)
	if err != nil {
		attrs = append(attrs, slog.String("errorKind", errorKind(err)), slog.Any("error", err))
	}
	r.logger.LogAttrs(ctx, level, "repository operation", attrs...)
}

func (r *loggingRepository) Create(ctx context.Context, rec store.Record) error {
	start := time.Now()
	err := r.next.Create(ctx, rec)
	r.log(ctx, store.OpCreate, start, err, slog.String("id", rec.ID), slog.String("type", rec.Type))
	return err
}

func (r *loggingRepository) Read(ctx context.Context, key store.Key, opts store.ReadOptions) (*store.Record, error) {
	start := time.Now()
	rec, err := r.next.Read(ctx, key, opts)
	r.log(ctx, store.OpRead, start, err, slog.String("key", key.Hash))
	return rec, err
}

func (r *loggingRepository) Update(ctx context.Context, rec store.Record) error {
	start := time.Now()
	err := r.next.Update(ctx, rec)
	r.log(ctx, store.OpUpdate, start, err, slog.String("id", rec.ID))
	return err
}

func (r *loggingRepository) HardDelete(ctx context.Context, key store.Key) error {
	start := time.Now()
	err := r.next.HardDelete(ctx, key)
	r.log(ctx, store.OpHardDelete, start, err, slog.String("key", key.Hash))
	return err
}

func (r *loggingRepository) Supersede(ctx context.Context, rec store.Record, oldKey store.Key) error {
	start := time.Now()
	err := r.next.Supersede(ctx, rec, oldKey)
	r.log(ctx, store.OpSupersede, start, err, slog.String("id", rec.ID), slog.String("supersededKey", oldKey.Hash))
	return err
}

// Search logs the custodian and type count but never the subject's NHS number.
func (r *loggingRepository) Search(ctx context.Context, f store.SearchFilter) (*store.Page, error) {
	start := time.Now()
	page, err := r.next.Search(ctx, f)
	attrs := []slog.Attr{
		slog.String("custodian", f.CustodianID),
		slog.Int("typeCount", len(f.Types.Codes())),
		slog.Bool("resumed", f.Cursor != ""),
	}
	if page != nil {
		attrs = append(attrs, slog.Int("records", len(page.Records)), slog.Bool("more", page.Cursor != ""))
	}
	r.log(ctx, store.OpSearch, start, err, attrs...)
	return page, err
}

func (r *loggingRepository) Count(ctx context.Context, f store.SearchFilter) (int, error) {
	start := time.Now()
	n, err := r.next.Count(ctx, f)
	r.log(ctx, store.OpCount, start, err, slog.String("custodian", f.CustodianID), slog.Int("count", n))
	return n, err
}

// WithMetrics returns a Repository that records Prometheus metrics for every
// operation on repo.
func WithMetrics(repo store.Repository, m *Metrics) store.Repository {
	return &metricsRepository{next: repo, metrics: m}
}

type metricsRepository struct {
	next    store.Repository
	metrics *Metrics
}

func (r *metricsRepository) Create(ctx context.Context, rec store.Record) error {
	start := time.Now()
	err := r.next.Create(ctx, rec)
	r.metrics.ObserveOperation(store.OpCreate, time.Since(start), err)
	return err
}

func (r *metricsRepository) Read(ctx context.Context, key store.Key, opts store.ReadOptions) (*store.Record, error) {
	start := time.Now()
	rec, err := r.next.Read(ctx, key, opts)
	r.metrics.ObserveOperation(store.OpRead, time.Since(start), err)
	return rec, err
}

func (r *metricsRepository) Update(ctx context.Context, rec store.Record) error {
	start := time.Now()
	err := r.next.Update(ctx, rec)
	r.metrics.ObserveOperation(store.OpUpdate, time.Since(start), err)
	return err
}

func (r *metricsRepository) HardDelete(ctx context.Context, key store.Key) error {
	start := time.Now()
	err := r.next.HardDelete(ctx, key)
	r.metrics.ObserveOperation(store.OpHardDelete, time.Since(start), err)
	return err
}

func (r *metricsRepository) Supersede(ctx context.Context, rec store.Record, oldKey store.Key) error {
	start := time.Now()
	err := r.next.Supersede(ctx, rec, oldKey)
	r.metrics.ObserveOperation(store.OpSupersede, time.Since(start), err)
	return err
}

func (r *metricsRepository) Search(ctx context.Context, f store.SearchFilter) (*store.Page, error) {
	start := time.Now()
	page, err := r.next.Search(ctx, f)
	r.metrics.ObserveOperation(store.OpSearch, time.Since(start), err)
	if page != nil {
		r.metrics.ObserveSearchPage(len(page.Records))
	}
	return page, err
}

func (r *metricsRepository) Count(ctx context.Context, f store.SearchFilter) (int, error) {
	start := time.Now()
	n, err := r.next.Count(ctx, f)
	r.metrics.ObserveOperation(store.OpCount, time.Since(start), err)
	return n, err
}
