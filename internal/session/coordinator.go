package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"drivesync/internal/conflict"
	"drivesync/internal/inventory"
	"drivesync/internal/logging"
	"drivesync/internal/match"
	"drivesync/internal/notify"
	"drivesync/internal/plan"
	"drivesync/internal/transfer"
)

// Coordinator sequences one sync run:
//
//	idle → collecting → matching → awaiting_conflicts → planning →
//	transferring → complete
//
// with cancelled reachable from any non-terminal phase. The conflict wait is
// skipped entirely when matching produced no ambiguous pairs.
type Coordinator struct {
	drive        *inventory.Collector
	photos       *inventory.Collector
	driveRoot    string
	orchestrator *transfer.Orchestrator
	decisions    conflict.DecisionSource
	sinks        []Sink
	notifier     notify.Service
	logger       *slog.Logger
	dryRun       bool
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithSinks registers progress sinks for phase and task events.
func WithSinks(sinks ...Sink) Option {
	return func(c *Coordinator) {
		c.sinks = append(c.sinks, sinks...)
	}
}

// WithDryRun stops the run after planning; no transfer is dispatched.
func WithDryRun(enabled bool) Option {
	return func(c *Coordinator) {
		c.dryRun = enabled
	}
}

// WithNotifier delivers run milestones through the given service.
func WithNotifier(service notify.Service) Option {
	return func(c *Coordinator) {
		c.notifier = service
	}
}

// NewCoordinator wires a run coordinator. driveRoot scopes the hierarchical
// store's traversal; decisions settles ambiguous pairs.
func NewCoordinator(
	drive, photos *inventory.Collector,
	driveRoot string,
	orchestrator *transfer.Orchestrator,
	decisions conflict.DecisionSource,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		drive:        drive,
		photos:       photos,
		driveRoot:    driveRoot,
		orchestrator: orchestrator,
		decisions:    decisions,
		logger:       logging.NewComponentLogger(logger, "session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one full sync session and returns its report. The report is
// complete even when the run aborts: counts survive partial failure and
// cancellation. Item- and task-scoped failures never abort the session;
// only a fatal top-level listing failure, a decision-source failure, or
// cancellation do.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := newSession()
	fan := newFanout(c.sinks)
	defer fan.close()

	logger := c.logger.With(logging.String(logging.FieldSession, s.ID))
	setPhase := func(next Phase) {
		logger.Info("phase transition", logging.String(logging.FieldPhase, string(next)))
		fan.publish(Event{Kind: EventPhase, SessionID: s.ID, At: nowUTC(), Phase: next})
	}
	finish := func(runErr error) (Report, error) {
		final := PhaseComplete
		if runErr != nil || runCtx.Err() != nil {
			final = PhaseCancelled
		}
		setPhase(final)
		report := buildReport(s, final, runErr)
		logger.Info("run finished",
			logging.String(logging.FieldPhase, string(final)),
			logging.Int("matched", report.Matched),
			logging.Int("to_photos", report.TransferredToPhotos),
			logging.Int("to_drive", report.TransferredToDrive),
			logging.Int("failed", report.FailedTransfers),
			logging.Int("unresolved", report.UnresolvedAbandoned),
		)
		// Final notifications outlive run cancellation.
		notifyCtx := context.WithoutCancel(ctx)
		if runErr != nil {
			c.sendNotification(logger, func() error {
				return c.notifier.NotifySyncFailed(notifyCtx, runErr)
			})
		} else {
			c.sendNotification(logger, func() error {
				return c.notifier.NotifySyncCompleted(notifyCtx,
					report.TransferredToPhotos, report.TransferredToDrive,
					report.FailedTransfers, time.Since(s.StartedAt))
			})
		}
		return report, runErr
	}

	setPhase(PhaseCollecting)
	c.sendNotification(logger, func() error { return c.notifier.NotifySyncStarted(runCtx) })
	if err := c.collect(runCtx, s); err != nil {
		if errors.Is(err, context.Canceled) {
			return finish(nil)
		}
		return finish(err)
	}

	setPhase(PhaseMatching)
	s.Matches = match.Match(s.DriveItems, s.PhotosItems)
	s.Ledger = conflict.NewLedger(s.Matches.Ambiguous)
	logger.Info("inventories matched",
		logging.Int("matched", len(s.Matches.Matched)),
		logging.Int("drive_only", len(s.Matches.DriveOnly)),
		logging.Int("photos_only", len(s.Matches.PhotosOnly)),
		logging.Int("ambiguous", len(s.Matches.Ambiguous)),
	)

	if len(s.Matches.Ambiguous) > 0 {
		setPhase(PhaseAwaitingConflicts)
		c.sendNotification(logger, func() error {
			return c.notifier.NotifyConflictsPending(runCtx, len(s.Matches.Ambiguous))
		})
		// abort records the cause before the cancellation Wait observes,
		// so the decision failure survives as the run error.
		var decisionErr error
		abort := func(err error) {
			decisionErr = err
			cancel()
		}
		go c.feedDecisions(runCtx, s, abort, logger)
		if err := s.Ledger.Wait(runCtx); err != nil {
			if decisionErr != nil {
				return finish(fmt.Errorf("resolve conflicts: %w", decisionErr))
			}
			return finish(nil)
		}
	}

	setPhase(PhasePlanning)
	s.Tasks = plan.Build(s.Matches, s.Ledger.Records())
	logger.Info("transfers planned", logging.Int("tasks", len(s.Tasks)))

	if c.dryRun {
		return finish(nil)
	}

	if len(s.Tasks) > 0 {
		setPhase(PhaseTransferring)
		c.orchestrator.Run(runCtx, s.Tasks, func(task *transfer.Task) {
			fan.publish(Event{Kind: EventTask, SessionID: s.ID, At: nowUTC(), Phase: PhaseTransferring, Task: task})
		})
	}

	return finish(nil)
}

// sendNotification runs a milestone delivery; failures are logged, never
// propagated into the run.
func (c *Coordinator) sendNotification(logger *slog.Logger, send func() error) {
	if c.notifier == nil {
		return
	}
	if err := send(); err != nil {
		logger.Warn("notification delivery failed", logging.Error(err))
	}
}

// collect lists both stores concurrently. Either store's top-level failure
// is fatal to the run; subtree failures were already folded into the
// results by the collectors.
func (c *Coordinator) collect(ctx context.Context, s *Session) error {
	var driveResult, photosResult inventory.Result
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		result, err := c.drive.Collect(gctx, c.driveRoot)
		if err != nil {
			return err
		}
		driveResult = result
		return nil
	})
	group.Go(func() error {
		result, err := c.photos.Collect(gctx, "")
		if err != nil {
			return err
		}
		photosResult = result
		return nil
	})
	if err := group.Wait(); err != nil {
		return fmt.Errorf("collect inventories: %w", err)
	}

	s.DriveItems = driveResult.Items
	s.PhotosItems = photosResult.Items
	s.Failures = append(s.Failures, driveResult.Failures...)
	s.Failures = append(s.Failures, photosResult.Failures...)
	return nil
}

// feedDecisions walks the pending records and lands each decision on the
// ledger. A decision-source failure aborts the run; conflicts still open
// at that point are reported as abandoned.
func (c *Coordinator) feedDecisions(ctx context.Context, s *Session, abort func(error), logger *slog.Logger) {
	for _, record := range s.Ledger.Pending() {
		if ctx.Err() != nil {
			return
		}
		decision, err := c.decisions.Decide(ctx, record)
		if err != nil {
			logger.Warn("conflict decision failed; cancelling run",
				logging.String(logging.FieldConflict, record.ID),
				logging.Error(err),
			)
			abort(err)
			return
		}
		if err := s.Ledger.Resolve(record.ID, decision); err != nil {
			// Duplicate or late decisions are ordering bugs worth surfacing,
			// but they never abort the run.
			logger.Warn("conflict resolution rejected",
				logging.String(logging.FieldConflict, record.ID),
				logging.Error(err),
			)
		}
	}
}
