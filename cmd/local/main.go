package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/baderkha/table-transfer/pkg/conditional"
	"github.com/baderkha/table-transfer/pkg/migrate"
	"github.com/baderkha/table-transfer/pkg/migrate/config"
	"github.com/baderkha/table-transfer/pkg/migrate/connection"
	"github.com/baderkha/table-transfer/pkg/migrate/state"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
)

// waitForInterrupt : the first signal cancels the run so it can stop between pages
// and report, a second one aborts the run log and exits at once
func waitForInterrupt(interruptChannel <-chan os.Signal, mger state.Manager, cancel context.CancelFunc, interrupted *atomic.Bool) {
	<-interruptChannel
	fmt.Println("Interrupt received. Stopping gracefully...")
	interrupted.Store(true)
	cancel()

	<-interruptChannel
	fmt.Println("Second interrupt received. Exiting now...")
	mger.OnShutDownEv()
	os.Exit(130)
}

// progressCounter : turns the running count of every pair into bar increments,
// pairs may report interleaved when they run concurrently
type progressCounter struct {
	mu   sync.Mutex
	seen map[int]int
}

func newProgressCounter() *progressCounter {
	return &progressCounter{seen: make(map[int]int)}
}

func (c *progressCounter) delta(p migrate.Progress) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := p.Items - c.seen[p.Index]
	c.seen[p.Index] = p.Items
	return d
}

func fatal(logger zerolog.Logger, err error, msg string) {
	logger.Error().Err(err).Msg(msg)
	os.Exit(1)
}

func main() {
	var (
		jobPath   = flag.String("job", "job.json", "job file, json or yaml")
		recoverID = flag.String("recover", "", "re-run the pairs this run id did not complete, \"last\" for the most recent run")
		level     = flag.String("log-level", "info", "trace, debug, info, warn or error")
	)
	flag.Parse()

	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := connection.NewLogger(lvl)
	fs := afero.NewOsFs()

	job, err := config.LoadJob(fs, *jobPath)
	if err != nil {
		fatal(logger, err, "could not load job")
	}

	policy := store.DefaultRetryPolicy()
	policy.MaxRetry = job.MaxRetry

	source, err := connection.OpenAdapter(job.SourceConfig, fs, job.MaxConcurrency, job.BatchRecordSize, policy, logger)
	if err != nil {
		fatal(logger, err, "could not open source store")
	}
	defer source.Close()
	target, err := connection.OpenAdapter(job.Target, fs, job.MaxConcurrency, job.BatchRecordSize, policy, logger)
	if err != nil {
		fatal(logger, err, "could not open target store")
	}
	defer target.Close()

	var mger state.Manager = state.Nop{}
	stateDir := conditional.Ternary(os.Getenv("STATE_DIR") != "", os.Getenv("STATE_DIR"), job.StateDir)
	if stateDir != "" {
		fm, err := state.NewFileManager(fs, stateDir)
		if err != nil {
			fatal(logger, err, "could not open run log")
		}
		mger = fm
	}

	var (
		bar     = progressbar.Default(-1, "copying")
		counter = newProgressCounter()
	)
	migrator := migrate.New(source.Adapter, target.Adapter,
		migrate.WithLogger(logger),
		migrate.WithBatchSize(job.BatchRecordSize),
		migrate.WithConcurrency(job.MaxConcurrency),
		migrate.WithStateManager(mger),
		migrate.WithProgress(func(p migrate.Progress) {
			bar.Describe(p.Pair.Source + " -> " + p.Pair.Destination)
			_ = bar.Add(counter.delta(p))
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var interrupted atomic.Bool
	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, os.Interrupt, syscall.SIGTERM)
	go waitForInterrupt(interruptChannel, migrator.GetStateManager(), cancel, &interrupted)

	startTime := time.Now()
	var report *migrate.Report
	if *recoverID != "" {
		report, err = migrator.Recover(ctx, *recoverID)
	} else {
		report, err = migrator.Run(ctx, migrate.TableMapping(job.Tables))
	}
	_ = bar.Finish()
	fmt.Println()
	if report != nil {
		fmt.Println(report.String())
	}
	fmt.Printf("Time taken: %s\n", time.Since(startTime))
	if interrupted.Load() {
		os.Exit(130)
	}
	if err != nil {
		fatal(logger, err, "migration run did not finish")
	}
}
