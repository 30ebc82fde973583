package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evetools/oretax/internal/clock"
	"github.com/evetools/oretax/internal/config"
	invoicedomain "github.com/evetools/oretax/internal/invoice/domain"
	obsmetrics "github.com/evetools/oretax/internal/observability/metrics"
	"github.com/evetools/oretax/internal/period"
	"go.uber.org/zap"
)

const runLockKey = "oretax:batch:run"

var ErrInvalidConfig = errors.New("batch runner misconfigured")

// Ports into the pipeline stages. The runner only sequences them; each
// stage owns its own idempotence.
type (
	MiningImporter interface {
		Import(ctx context.Context, p period.Period) (int, error)
		RefreshValuations(ctx context.Context, p period.Period) (int, error)
	}
	TaxCalculator interface {
		Calculate(ctx context.Context, p period.Period) (int, error)
	}
	InvoiceGenerator interface {
		Generate(ctx context.Context, p period.Period) ([]invoicedomain.Invoice, error)
	}
	PaymentReconciler interface {
		Reconcile(ctx context.Context) (int, error)
	}
	CreditRecomputer interface {
		Recompute(ctx context.Context, dryRun bool) (map[int64]float64, error)
	}
)

// Runner drives the full tax pipeline: import, calculate, invoice,
// reconcile, recompute credits. One pass per interval.
type Runner struct {
	log       *zap.Logger
	cfg       Config
	appCfg    config.Config
	clock     clock.Clock
	locker    *Locker
	importer  MiningImporter
	engine    TaxCalculator
	generator InvoiceGenerator
	matcher   PaymentReconciler
	credit    CreditRecomputer
}

type RunnerDeps struct {
	Log       *zap.Logger
	Config    Config
	AppConfig config.Config
	Clock     clock.Clock
	Locker    *Locker
	Importer  MiningImporter
	Engine    TaxCalculator
	Generator InvoiceGenerator
	Matcher   PaymentReconciler
	Credit    CreditRecomputer
}

func NewRunner(d RunnerDeps) (*Runner, error) {
	if d.Log == nil || d.Clock == nil || d.Importer == nil || d.Engine == nil || d.Generator == nil || d.Matcher == nil || d.Credit == nil {
		return nil, ErrInvalidConfig
	}
	return &Runner{
		log:       d.Log.Named("batch").With(zap.String("component", "batch")),
		cfg:       d.Config.withDefaults(),
		appCfg:    d.AppConfig,
		clock:     d.Clock,
		locker:    d.Locker,
		importer:  d.Importer,
		engine:    d.Engine,
		generator: d.Generator,
		matcher:   d.Matcher,
		credit:    d.Credit,
	}, nil
}

func (r *Runner) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := r.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := r.log.With(zap.String("job", name))
	batchMetrics := obsmetrics.Batch()
	batchMetrics.IncJobRun(name)
	log.Info("batch.job.start")

	err := fn(ctx)
	elapsed := r.clock.Now().Sub(start)
	batchMetrics.ObserveJobDuration(name, elapsed)
	if err == nil {
		log.Info("batch.job.finish", zap.Int64("duration_ms", elapsed.Milliseconds()))
		return nil
	}

	// a deadline is a soft failure: the next pass picks up where this
	// one stopped, so it must not abort the rest of the run
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		batchMetrics.IncJobTimeout(name)
	}
	batchMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one full pipeline pass for the current calendar month.
// Stage failures are joined, not fatal: a broken stage never blocks
// reconciliation of payments already in flight.
func (r *Runner) RunOnce(parent context.Context) error {
	if err := r.appCfg.ValidateBatch(); err != nil {
		return err
	}

	batchMetrics := obsmetrics.Batch()
	token, acquired, err := r.locker.TryLock(parent, runLockKey, r.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		batchMetrics.IncLockContended("run")
		r.log.Info("another instance holds the run lock, skipping pass")
		return nil
	}
	defer func() {
		if err := r.locker.Release(parent, runLockKey, token); err != nil {
			r.log.Warn("run lock release failed", zap.Error(err))
		}
	}()

	p := period.Month(r.clock.Now())

	jobs := []struct {
		Name    string
		Timeout time.Duration
		Run     func(context.Context) error
	}{
		{"import", r.cfg.ImportTimeout, func(ctx context.Context) error {
			n, err := r.importer.Import(ctx, p)
			batchMetrics.AddRecordsProcessed("import", "mining_records", n)
			return err
		}},
		{"refresh_valuations", r.cfg.JobTimeout, func(ctx context.Context) error {
			n, err := r.importer.RefreshValuations(ctx, p)
			batchMetrics.AddRecordsProcessed("refresh_valuations", "mining_records", n)
			return err
		}},
		{"calculate", r.cfg.JobTimeout, func(ctx context.Context) error {
			n, err := r.engine.Calculate(ctx, p)
			batchMetrics.AddRecordsProcessed("calculate", "calculations", n)
			return err
		}},
		{"invoice", r.cfg.JobTimeout, func(ctx context.Context) error {
			invoices, err := r.generator.Generate(ctx, p)
			batchMetrics.AddRecordsProcessed("invoice", "invoices", len(invoices))
			return err
		}},
		{"reconcile", r.cfg.JobTimeout, func(ctx context.Context) error {
			n, err := r.matcher.Reconcile(ctx)
			batchMetrics.AddRecordsProcessed("reconcile", "invoices", n)
			return err
		}},
		{"recompute_credits", r.cfg.JobTimeout, func(ctx context.Context) error {
			balances, err := r.credit.Recompute(ctx, false)
			batchMetrics.AddRecordsProcessed("recompute_credits", "balances", len(balances))
			return err
		}},
	}

	var runErr error
	for _, job := range jobs {
		if !r.isJobEnabled(job.Name) {
			continue
		}
		runErr = errors.Join(runErr, r.runJob(parent, job.Name, job.Timeout, job.Run))
	}
	return runErr
}

// RunForever loops RunOnce on the configured interval until ctx is done.
func (r *Runner) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := r.clock.Now().Add(r.cfg.RunInterval)
	batchMetrics := obsmetrics.Batch()

	for {
		runLag := r.clock.Now().Sub(nextRun)
		if runLag > 0 {
			batchMetrics.ObserveRunLoopLag(runLag)
		}
		if err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, config.ErrMissingAlliance) || errors.Is(err, config.ErrMissingCollectionCorp) {
				r.log.Error("batch halted, configuration incomplete", zap.Error(err))
				return
			}
			r.log.Warn("batch pass failed", zap.Error(err))
		}
		nextRun = nextRun.Add(r.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) isJobEnabled(jobName string) bool {
	// empty EnabledJobs means everything runs (monolith mode)
	if len(r.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range r.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
