package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"repo-pretrade/internal/auditlog"
	"repo-pretrade/internal/fanout"
	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/isin"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/risk"
	"repo-pretrade/internal/store"
	"repo-pretrade/internal/types"
)

var ErrInvalidISIN = errors.New("invalid ISIN")

type Engine struct {
	cfg      *store.Config
	resolver interfaces.Resolver
	fetcher  interfaces.RecordFetcher
	issuers  interfaces.IssuerDirectory
	audit    *auditlog.Log
	today    func() types.Date
	newID    func() string
}

var _ interfaces.Engine = (*Engine)(nil)

type Option func(*Engine)

// WithIssuers joins issuer names onto finished records.
func WithIssuers(d interfaces.IssuerDirectory) Option {
	return func(e *Engine) { e.issuers = d }
}

// WithAuditLog records every finished batch.
func WithAuditLog(l *auditlog.Log) Option {
	return func(e *Engine) { e.audit = l }
}

func WithToday(today func() types.Date) Option {
	return func(e *Engine) { e.today = today }
}

func WithRunID(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func New(cfg *store.Config, r interfaces.Resolver, f interfaces.RecordFetcher, opts ...Option) *Engine {
	loc := cfg.Location()
	e := &Engine{
		cfg:      cfg,
		resolver: r,
		fetcher:  f,
		today:    func() types.Date { return types.DateOf(time.Now().In(loc)) },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) runOptions(opts []interfaces.RunOption) interfaces.RunOptions {
	o := interfaces.RunOptions{Workers: e.cfg.Workers, Horizon: e.cfg.Risk.OvernightDays}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Workers < 1 {
		o.Workers = e.cfg.Workers
	}
	if o.Workers > store.MaxWorkers {
		o.Workers = store.MaxWorkers
	}
	return o
}

// Run validates and deduplicates raw identifiers, then resolves and fetches
// every valid one concurrently. The result holds exactly one record per
// distinct valid identifier, in first-seen input order; rejected
// identifiers are only reported.
func (e *Engine) Run(ctx context.Context, raw []string, opts ...interfaces.RunOption) *types.BatchResult {
	o := e.runOptions(opts)
	start := time.Now()
	rep := isin.Partition(raw)
	res := &types.BatchResult{
		RunID:       e.newID(),
		Today:       e.today(),
		Horizon:     o.Horizon,
		Malformed:   rep.Malformed,
		BadChecksum: rep.BadChecksum,
		Duplicates:  rep.Duplicates,
	}

	logger.Info(ctx, "Batch started",
		"run_id", res.RunID,
		"valid", len(rep.Valid),
		"malformed", len(rep.Malformed),
		"bad_checksum", len(rep.BadChecksum),
		"duplicates", rep.Duplicates,
		"workers", o.Workers,
	)

	if len(rep.Valid) > 0 {
		e.warm(ctx)
		res.Records, res.Cancelled = fanout.Map(ctx, rep.Valid, e.process, terminalRecord,
			fanout.WithWorkers(o.Workers),
			fanout.WithProgress(o.Progress),
		)
		e.joinIssuers(ctx, res.Records)
		res.Flagged = risk.Annotate(ctx, res.Records, res.Today, res.Horizon)
	}

	for _, r := range res.Records {
		switch r.Status {
		case types.StatusUnresolved:
			res.Unresolved++
		case types.StatusFailed:
			res.Failed++
		}
	}
	res.Duration = time.Since(start)

	logger.Info(ctx, "Batch finished",
		"run_id", res.RunID,
		"records", len(res.Records),
		"unresolved", res.Unresolved,
		"failed", res.Failed,
		"flagged", res.Flagged,
		"cancelled", res.Cancelled,
		"duration_ms", res.Duration.Milliseconds(),
	)
	if err := e.audit.AppendBatch(res); err != nil {
		logger.ErrorWithErr(ctx, "Audit append failed", err, "run_id", res.RunID)
	}
	return res
}

// Lookup runs the pipeline for a single identifier, annotated with the
// default horizon.
func (e *Engine) Lookup(ctx context.Context, id string) (types.BondRecord, error) {
	id = isin.Normalize(id)
	if !isin.Valid(id) {
		return types.BondRecord{}, fmt.Errorf("%w: %q", ErrInvalidISIN, id)
	}
	rec := e.process(ctx, id)
	recs := []types.BondRecord{rec}
	e.joinIssuers(ctx, recs)
	risk.Annotate(ctx, recs, e.today(), e.cfg.Risk.OvernightDays)
	return recs[0], nil
}

// warm loads the shared reference snapshots before workers start reading
// them.
func (e *Engine) warm(ctx context.Context) {
	e.resolver.Warm(ctx)
	if e.issuers != nil {
		e.issuers.Warm(ctx)
	}
}

func (e *Engine) process(ctx context.Context, id string) types.BondRecord {
	sec := e.resolver.Resolve(ctx, id)
	return e.fetcher.FetchRecord(ctx, sec)
}

func (e *Engine) joinIssuers(ctx context.Context, records []types.BondRecord) {
	if e.issuers == nil {
		return
	}
	for i := range records {
		if records[i].IssuerCode == "" || records[i].IssuerName != "" {
			continue
		}
		if name, ok := e.issuers.Name(ctx, records[i].IssuerCode); ok {
			records[i].IssuerName = name
		}
	}
}

// terminalRecord stands in for an item that panicked or was never
// dispatched.
func terminalRecord(id string, err error) types.BondRecord {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.FailedRecord(id, types.StatusFailed, fmt.Errorf("not processed: %w", err))
	}
	return types.FailedRecord(id, types.StatusUnresolved, err)
}
