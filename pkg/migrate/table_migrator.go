package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/batch"
	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/state"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/baderkha/table-transfer/pkg/migrate/walker"
	"github.com/davecgh/go-spew/spew"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Progress : running count for one pair, sent after every written batch
type Progress struct {
	RunID string
	Index int
	Pair  Pair
	Items int
}

// Option : configures a Migrator
type Option func(*Migrator)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithBatchSize : records per write call, capped by the destination's own limit
func WithBatchSize(n int) Option {
	return func(m *Migrator) { m.batchSize = n }
}

// WithConcurrency : table pairs migrated at once, 1 keeps the run strictly sequential
func WithConcurrency(n int) Option {
	return func(m *Migrator) { m.concurrency = n }
}

func WithStateManager(s state.Manager) Option {
	return func(m *Migrator) { m.state = s }
}

func WithProgress(fn func(Progress)) Option {
	return func(m *Migrator) { m.progress = fn }
}

// Migrator : copies every record of each source table into its destination table.
// source tables are only ever read
type Migrator struct {
	source      store.Adapter
	target      store.Adapter
	logger      zerolog.Logger
	batchSize   int
	concurrency int
	state       state.Manager
	progress    func(Progress)
}

var _ Runner = (*Migrator)(nil)

// New : source and target may be the same adapter
func New(source, target store.Adapter, opts ...Option) *Migrator {
	m := &Migrator{
		source:      source,
		target:      target,
		logger:      zerolog.Nop(),
		concurrency: 1,
		state:       state.Nop{},
		progress:    func(Progress) {},
	}
	for _, o := range opts {
		o(m)
	}
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	return m
}

// GetStateManager : so the caller can flag the run as aborted on shutdown
func (m *Migrator) GetStateManager() state.Manager {
	return m.state
}

// Run : migrates every pair in order. a pair's failure is recorded in the report and
// never stops the others. the returned error is only for problems with the run itself:
// a bad mapping, an unusable run log or ctx being cancelled before every pair started
func (m *Migrator) Run(ctx context.Context, mapping TableMapping) (*Report, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate run id : %w", err)
	}
	runID := uid.String()
	logger := m.logger.With().Str("run_id", runID).Logger()

	for _, d := range mapping.DuplicateDestinations() {
		logger.Warn().Str("destination", d).Msg("destination is targeted by more than one pair, later pairs overwrite earlier ones by key")
	}
	if err := m.state.InitRunLog(runID, mapping); err != nil {
		return nil, fmt.Errorf("init run log : %w", err)
	}

	logger.Info().Int("tables", len(mapping)).Int("concurrency", m.concurrency).Msg("migration run starting")
	start := time.Now()
	results, runErr := m.runPairs(ctx, runID, logger, mapping)

	report := &Report{RunID: runID, Duration: time.Since(start)}
	for _, r := range results {
		if r != nil {
			report.Results = append(report.Results, *r)
		}
	}

	if runErr != nil {
		m.logState(logger, m.state.FailedRunLog(runID, runErr))
	} else {
		m.logState(logger, m.state.PassedRunLog(runID))
	}
	s := report.Summary()
	logger.Info().
		Int("completed", s.Completed).
		Int("failed", s.Failed).
		Int("skipped_missing_source", s.SkippedMissingSource).
		Int("skipped_missing_destination", s.SkippedMissingDestination).
		Int("items", s.Items).
		Dur("took", report.Duration).
		Msg("migration run finished")
	return report, runErr
}

// LastRun : Recover picks the most recent run in the run log
const LastRun = "last"

// ErrNoPreviousRun : the run log holds no run to recover
var ErrNoPreviousRun = errors.New("no previous run")

// Recover : starts a new run made of the pairs runID did not complete, each from scratch
func (m *Migrator) Recover(ctx context.Context, runID string) (*Report, error) {
	run, err := m.findRun(runID)
	if err != nil {
		return nil, fmt.Errorf("recover %s : %w", runID, err)
	}
	runID = run.RunID
	if failed, err := m.state.DidTableFailForRun(runID); err != nil {
		m.logState(m.logger, err)
	} else {
		m.logger.Info().Str("recovering", runID).Str("status", string(run.Status)).Bool("had_failed_tables", failed).Msg("loaded run log")
	}
	var mapping TableMapping
	for _, t := range run.Tables {
		if t.Status != state.Success {
			mapping = append(mapping, Pair{Source: t.SourceTable, Destination: t.DestinationTable})
		}
	}
	if len(mapping) == 0 {
		m.logger.Info().Str("recovering", runID).Msg("every pair of the run completed, nothing to recover")
		return &Report{RunID: runID}, nil
	}
	m.logger.Info().Str("recovering", runID).Int("tables", len(mapping)).Msg("re-running incomplete pairs")
	return m.Run(ctx, mapping)
}

func (m *Migrator) findRun(runID string) (*state.RunLog, error) {
	if runID != LastRun {
		return m.state.GetRunLog(runID)
	}
	run, err := m.state.GetLastRun()
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNoPreviousRun
	}
	return run, nil
}

func (m *Migrator) runPairs(ctx context.Context, runID string, logger zerolog.Logger, mapping TableMapping) ([]*Result, error) {
	results := make([]*Result, len(mapping))
	if m.concurrency == 1 {
		for i, p := range mapping {
			if err := ctx.Err(); err != nil {
				logger.Warn().Int("not_started", len(mapping)-i).Msg("run cancelled between pairs")
				return results, err
			}
			r := m.migratePair(ctx, runID, logger, i, p)
			results[i] = &r
		}
		return results, nil
	}

	// pairs sharing a destination must not write to it at the same time
	locks := make(map[string]*sync.Mutex)
	for _, p := range mapping {
		if _, ok := locks[p.Destination]; !ok {
			locks[p.Destination] = &sync.Mutex{}
		}
	}
	var (
		wg         errgroup.Group
		notStarted int
		mu         sync.Mutex
	)
	wg.SetLimit(m.concurrency)
	for i, p := range mapping {
		wg.Go(func() error {
			lock := locks[p.Destination]
			lock.Lock()
			defer lock.Unlock()
			if ctx.Err() != nil {
				mu.Lock()
				notStarted++
				mu.Unlock()
				return nil
			}
			r := m.migratePair(ctx, runID, logger, i, p)
			results[i] = &r
			return nil
		})
	}
	_ = wg.Wait()
	if notStarted > 0 {
		logger.Warn().Int("not_started", notStarted).Msg("run cancelled between pairs")
		return results, ctx.Err()
	}
	return results, nil
}

func (m *Migrator) migratePair(ctx context.Context, runID string, logger zerolog.Logger, index int, p Pair) Result {
	var (
		start = time.Now()
		res   = Result{Index: index, Pair: p}
		log   = logger.With().Str("source", p.Source).Str("destination", p.Destination).Logger()
	)
	log.Info().Msg("table migration starting")
	m.logState(log, m.state.InitTableRunLog(runID, index))

	finish := func(status Status, err error) Result {
		res.Status = status
		res.Err = err
		res.Duration = time.Since(start)
		switch status {
		case StatusCompleted:
			log.Info().Str("status", string(status)).Int("items", res.Count).Int("pages", res.Pages).Dur("took", res.Duration).Msg("table migration completed")
			m.logState(log, m.state.PassedTableRun(runID, index, res.Count))
		case StatusFailed:
			log.Error().Err(err).Str("status", string(status)).Int("items", res.Count).Msg("table migration failed")
			m.logState(log, m.state.FailedTableRun(runID, index, err))
		default:
			log.Warn().Str("status", string(status)).Msg("table migration skipped")
			m.logState(log, m.state.SkippedTableRun(runID, index, string(status)))
		}
		return res
	}

	ok, err := m.target.Exists(ctx, p.Destination)
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("probe destination %s : %w", p.Destination, err))
	}
	if !ok {
		return finish(StatusSkippedMissingDestination, nil)
	}
	ok, err = m.source.Exists(ctx, p.Source)
	if err != nil {
		return finish(StatusFailed, fmt.Errorf("probe source %s : %w", p.Source, err))
	}
	if !ok {
		return finish(StatusSkippedMissingSource, nil)
	}

	w := batch.New(m.target, p.Destination, m.batchSize).OnFlush(func(written int) {
		log.Debug().Int("items", written).Msg("batch written")
		m.progress(Progress{RunID: runID, Index: index, Pair: p, Items: written})
	})
	stats, err := walker.Walk(ctx, m.source, p.Source, func(records []record.Record) error {
		return w.Add(ctx, records...)
	})
	if err == nil {
		err = w.Flush(ctx)
	}
	res.Count = w.Count()
	res.Pages = stats.Pages
	res.Batches = w.Batches()
	if err != nil {
		var we *batch.WriteError
		if errors.As(err, &we) && log.GetLevel() <= zerolog.TraceLevel {
			log.Trace().Int("batch_size", we.Size).Msg("first record of the refused batch:\n" + spew.Sdump(we.Sample))
		}
		return finish(StatusFailed, err)
	}
	return finish(StatusCompleted, nil)
}

func (m *Migrator) logState(log zerolog.Logger, err error) {
	if err != nil {
		log.Warn().Err(err).Msg("could not update run log")
	}
}
