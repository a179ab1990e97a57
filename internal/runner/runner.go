// Package runner performs one check-and-notify cycle.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
	"github.com/dgnsrekt/music-release-notifier/internal/config"
	"github.com/dgnsrekt/music-release-notifier/internal/digest"
	"github.com/dgnsrekt/music-release-notifier/internal/ledger"
	"github.com/dgnsrekt/music-release-notifier/internal/notify"
	"github.com/dgnsrekt/music-release-notifier/internal/releases"
)

// Checkpoint stores the instant up to which releases were reported.
type Checkpoint interface {
	Load() (time.Time, bool, error)
	Save(t time.Time) error
}

// Ledger records run history. Failures to record are logged and ignored.
type Ledger interface {
	BeginRun(ctx context.Context, run ledger.Run) error
	RecordDelivery(ctx context.Context, d ledger.Delivery) error
	FinishRun(ctx context.Context, run ledger.Run) error
}

type Options struct {
	Subscribers []config.Subscriber
	Subject     string
	Location    *time.Location
	SettleDelay time.Duration
	Concurrency int
	DryRun      bool
}

type Deps struct {
	Client     catalog.Client
	Mailer     notify.Mailer
	Checkpoint Checkpoint
	Ledger     Ledger          // optional
	Notifier   notify.Notifier // optional
}

// Result summarises a finished run.
type Result struct {
	RunID       string
	FirstRun    bool
	Window      releases.Window
	Subscribers int
	Digests     int
	Albums      int
	Sent        int
	Failed      int
}

type Runner struct {
	deps   Deps
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

func New(deps Deps, opts Options, logger *zap.Logger) *Runner {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if deps.Notifier == nil {
		deps.Notifier = &notify.NoopNotifier{}
	}
	return &Runner{
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}
}

// Run checks every subscriber's artists for releases since the checkpoint,
// mails one digest per subscriber with news, and advances the checkpoint
// once every digest has been delivered.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	started := r.now()
	res := &Result{
		RunID:       uuid.NewString(),
		Subscribers: len(r.opts.Subscribers),
	}
	logger := r.logger.With(zap.String("run_id", res.RunID))

	var errs []string
	err := r.run(ctx, logger, started, res, &errs)

	r.finish(ctx, logger, started, res, errs, err)
	return res, err
}

func (r *Runner) run(ctx context.Context, logger *zap.Logger, started time.Time, res *Result, errs *[]string) error {
	prev, ok, err := r.deps.Checkpoint.Load()
	if err != nil {
		return err
	}

	res.FirstRun = !ok
	res.Window = releases.Window{After: prev, Until: started.Add(-r.opts.SettleDelay)}

	r.beginLedger(ctx, logger, started, res)

	if res.FirstRun {
		logger.Info("no checkpoint found, recording start point",
			zap.Time("checkpoint", res.Window.Until))
		return r.advance(logger, prev, res.Window.Until)
	}

	logger.Info("checking for new releases",
		zap.Stringer("window", res.Window),
		zap.Int("subscribers", res.Subscribers))

	digests, err := r.buildDigests(ctx, logger, res.Window)
	if err != nil {
		return err
	}

	for _, d := range digests {
		res.Albums += d.Albums
	}
	res.Digests = len(digests)

	if len(digests) == 0 {
		logger.Info("no new releases")
		return r.advance(logger, prev, res.Window.Until)
	}

	if err := r.deps.Mailer.Verify(ctx); err != nil {
		return fmt.Errorf("verifying mail transport: %w", err)
	}

	batch := (&deliverer{
		mailer:  r.deps.Mailer,
		workers: r.opts.Concurrency,
		logger:  logger,
	}).Execute(ctx, digests)

	res.Sent = batch.Sent
	res.Failed = batch.Failed
	*errs = batch.Errors

	for _, dr := range batch.Results {
		r.recordDelivery(ctx, logger, res.RunID, dr)
	}

	if batch.Failed > 0 {
		return fmt.Errorf("%d of %d digests could not be delivered; checkpoint not advanced", batch.Failed, batch.Total)
	}

	return r.advance(logger, prev, res.Window.Until)
}

// buildDigests renders one digest per subscriber who has new releases. Any
// catalog failure fails the whole build so nothing is mailed.
func (r *Runner) buildDigests(ctx context.Context, logger *zap.Logger, w releases.Window) ([]*digest.Digest, error) {
	collector := releases.NewCollector(r.deps.Client, r.opts.Location, r.opts.Concurrency, logger)
	built := make([]*digest.Digest, len(r.opts.Subscribers))

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range r.opts.Subscribers {
		g.Go(func() error {
			d, err := r.buildDigest(gctx, collector, sub, w)
			if err != nil {
				return fmt.Errorf("subscriber %s: %w", sub.Email, err)
			}
			built[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var digests []*digest.Digest
	for _, d := range built {
		if d != nil {
			digests = append(digests, d)
		}
	}
	return digests, nil
}

func (r *Runner) buildDigest(ctx context.Context, collector *releases.Collector, sub config.Subscriber, w releases.Window) (*digest.Digest, error) {
	found, err := collector.Collect(ctx, sub.Artists, sub.Country, w)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}

	sections := make([]digest.Section, len(found))
	g, gctx := errgroup.WithContext(ctx)
	for i, ar := range found {
		g.Go(func() error {
			artist, err := collector.Artist(gctx, ar.ArtistID)
			if err != nil {
				return err
			}
			sections[i] = digest.Section{Artist: *artist, Releases: ar.Releases}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return digest.Render(sub.Email, r.opts.Subject, sections)
}

// advance moves the checkpoint forward to until. It never moves backwards,
// and a dry run never moves it.
func (r *Runner) advance(logger *zap.Logger, prev, until time.Time) error {
	if r.opts.DryRun {
		logger.Info("dry run, checkpoint unchanged")
		return nil
	}
	if until.Before(prev) {
		logger.Warn("run timestamp is before checkpoint, keeping checkpoint",
			zap.Time("checkpoint", prev),
			zap.Time("run_timestamp", until))
		return nil
	}
	if err := r.deps.Checkpoint.Save(until); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	logger.Debug("checkpoint saved", zap.Time("checkpoint", until))
	return nil
}

func (r *Runner) beginLedger(ctx context.Context, logger *zap.Logger, started time.Time, res *Result) {
	if r.deps.Ledger == nil {
		return
	}
	err := r.deps.Ledger.BeginRun(ctx, ledger.Run{
		ID:          res.RunID,
		StartedAt:   started,
		WindowAfter: res.Window.After,
		WindowUntil: res.Window.Until,
		FirstRun:    res.FirstRun,
		DryRun:      r.opts.DryRun,
	})
	if err != nil {
		logger.Warn("failed to record run start", zap.Error(err))
	}
}

func (r *Runner) recordDelivery(ctx context.Context, logger *zap.Logger, runID string, dr DeliveryResult) {
	if r.deps.Ledger == nil {
		return
	}

	d := ledger.Delivery{
		RunID:     runID,
		Recipient: dr.Digest.To,
		Artists:   dr.Digest.Artists,
		Albums:    dr.Digest.Albums,
		Status:    ledger.DeliverySent,
	}
	switch {
	case dr.Error != nil:
		d.Status = ledger.DeliveryFailed
		d.Error = dr.Error.Error()
	case r.opts.DryRun:
		d.Status = ledger.DeliverySkipped
	}

	if err := r.deps.Ledger.RecordDelivery(context.WithoutCancel(ctx), d); err != nil {
		logger.Warn("failed to record delivery", zap.String("to", d.Recipient), zap.Error(err))
	}
}

// finish closes the ledger entry and sends the operator report. It runs
// even when the run context was cancelled.
func (r *Runner) finish(ctx context.Context, logger *zap.Logger, started time.Time, res *Result, errs []string, runErr error) {
	ctx = context.WithoutCancel(ctx)
	duration := r.now().Sub(started)

	if r.deps.Ledger != nil {
		run := ledger.Run{
			ID:          res.RunID,
			FinishedAt:  started.Add(duration),
			Status:      ledger.StatusOK,
			Subscribers: res.Subscribers,
			Digests:     res.Digests,
			Albums:      res.Albums,
			Sent:        res.Sent,
			Failed:      res.Failed,
		}
		if runErr != nil {
			run.Status = ledger.StatusFailed
			run.Error = runErr.Error()
		}
		// The run row is missing if the checkpoint could not be read.
		if err := r.deps.Ledger.FinishRun(ctx, run); err != nil {
			logger.Warn("failed to record run result", zap.Error(err))
		}
	}

	report := &notify.Report{
		RunID:       res.RunID,
		FirstRun:    res.FirstRun,
		DryRun:      r.opts.DryRun,
		Subscribers: res.Subscribers,
		Digests:     res.Digests,
		Albums:      res.Albums,
		Sent:        res.Sent,
		Failed:      res.Failed,
		Errors:      errs,
	}

	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr), zap.Duration("duration", duration))
		if err := r.deps.Notifier.SendFailure(ctx, report, duration, runErr); err != nil {
			logger.Warn("failed to send run report", zap.Error(err))
		}
		return
	}

	logger.Info("run complete",
		zap.Bool("first_run", res.FirstRun),
		zap.Int("digests", res.Digests),
		zap.Int("albums", res.Albums),
		zap.Int("sent", res.Sent),
		zap.Duration("duration", duration))
	if err := r.deps.Notifier.SendSuccess(ctx, report, duration); err != nil {
		logger.Warn("failed to send run report", zap.Error(err))
	}
}
