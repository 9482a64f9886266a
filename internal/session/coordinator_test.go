package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"drivesync/internal/backoff"
	"drivesync/internal/conflict"
	"drivesync/internal/inventory"
	"drivesync/internal/logging"
	"drivesync/internal/media"
	"drivesync/internal/session"
	"drivesync/internal/store"
	"drivesync/internal/testsupport"
	"drivesync/internal/transfer"
)

var createdAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func instantBudget(source media.Store) *backoff.Budget {
	return backoff.NewBudget(source,
		backoff.WithMaxAttempts(2),
		backoff.WithSleeper(func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		}),
	)
}

type fixture struct {
	drive  *testsupport.FakeStore
	photos *testsupport.FakeStore
	phases []session.Phase
	mu     sync.Mutex
}

func (f *fixture) phaseSink() session.Sink {
	return session.SinkFunc(func(event session.Event) {
		if event.Kind != session.EventPhase {
			return
		}
		f.mu.Lock()
		f.phases = append(f.phases, event.Phase)
		f.mu.Unlock()
	})
}

func (f *fixture) sawPhase(phase session.Phase) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.phases {
		if p == phase {
			return true
		}
	}
	return false
}

func (f *fixture) coordinator(t *testing.T, decisions conflict.DecisionSource, opts ...session.Option) *session.Coordinator {
	t.Helper()
	driveBudget := instantBudget(media.StoreDrive)
	photosBudget := instantBudget(media.StorePhotos)
	orchestrator := transfer.NewOrchestrator(
		transfer.StoreLane{Adapter: f.drive.Tree(), Budget: driveBudget, Workers: 2},
		transfer.StoreLane{Adapter: f.photos.Flat(), Budget: photosBudget, Workers: 2},
		t.TempDir(),
		logging.NewNop(),
	)
	opts = append(opts, session.WithSinks(f.phaseSink()))
	return session.NewCoordinator(
		inventory.NewCollector(f.drive.Tree(), driveBudget, logging.NewNop()),
		inventory.NewCollector(f.photos.Flat(), photosBudget, logging.NewNop()),
		"root",
		orchestrator,
		decisions,
		logging.NewNop(),
		opts...,
	)
}

func newFixture() *fixture {
	return &fixture{
		drive:  testsupport.NewFakeStore(media.StoreDrive),
		photos: testsupport.NewFakeStore(media.StorePhotos),
	}
}

func driveItem(id, name string, created time.Time) media.Item {
	return media.Item{ID: id, Name: name, CreatedAt: created, Kind: media.KindImage}
}

func TestRunSyncsBothDirections(t *testing.T) {
	f := newFixture()
	f.drive.AddToFolder("root", driveItem("d-match", "beach.jpg", createdAt), []byte("a"))
	f.drive.AddToFolder("root", driveItem("d-only", "driveonly.jpg", createdAt), []byte("b"))
	f.photos.Add(driveItem("p-match", "beach.jpg", createdAt.Add(time.Hour)), []byte("c"))
	f.photos.Add(driveItem("p-only", "photosonly.png", createdAt), []byte("d"))

	rep, err := f.coordinator(t, conflict.PolicySame()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rep.FinalPhase != session.PhaseComplete {
		t.Fatalf("final phase = %s", rep.FinalPhase)
	}
	if rep.Matched != 1 || rep.DriveOnly != 1 || rep.PhotosOnly != 1 || rep.Ambiguous != 0 {
		t.Errorf("classification = %+v", rep)
	}
	if rep.TransferredToPhotos != 1 || rep.TransferredToDrive != 1 {
		t.Errorf("transfers = %d to photos, %d to drive", rep.TransferredToPhotos, rep.TransferredToDrive)
	}
	if len(f.photos.Uploads()) != 1 || f.photos.Uploads()[0].Name != "driveonly.jpg" {
		t.Errorf("photos uploads = %+v", f.photos.Uploads())
	}
	if len(f.drive.Uploads()) != 1 || f.drive.Uploads()[0].Name != "photosonly.png" {
		t.Errorf("drive uploads = %+v", f.drive.Uploads())
	}
	if f.sawPhase(session.PhaseAwaitingConflicts) {
		t.Error("no ambiguity, yet the run paused for conflicts")
	}
	for _, phase := range []session.Phase{
		session.PhaseCollecting, session.PhaseMatching, session.PhasePlanning,
		session.PhaseTransferring, session.PhaseComplete,
	} {
		if !f.sawPhase(phase) {
			t.Errorf("phase %s never published", phase)
		}
	}
}

func TestRunAgainAfterSyncPlansNothing(t *testing.T) {
	f := newFixture()
	f.drive.SetUploadFolder("root")
	f.drive.AddToFolder("root", driveItem("d-only", "driveonly.jpg", createdAt), []byte("a"))
	f.photos.Add(driveItem("p-only", "photosonly.png", createdAt), []byte("b"))

	first, err := f.coordinator(t, conflict.PolicySame()).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.TransferredToPhotos != 1 || first.TransferredToDrive != 1 {
		t.Fatalf("first run transfers = %+v", first)
	}

	second, err := f.coordinator(t, conflict.PolicySame()).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if second.Matched != 2 || second.DriveOnly != 0 || second.PhotosOnly != 0 || second.Ambiguous != 0 {
		t.Errorf("second run classification = %+v", second)
	}
	if second.TransferredToPhotos+second.TransferredToDrive != 0 {
		t.Errorf("second run transferred again: %+v", second)
	}
	if len(f.photos.Uploads()) != 1 || len(f.drive.Uploads()) != 1 {
		t.Errorf("uploads after both runs = %d photos, %d drive, want 1 each",
			len(f.photos.Uploads()), len(f.drive.Uploads()))
	}
}

func TestRunResolvesConflictAsDifferent(t *testing.T) {
	f := newFixture()
	f.drive.AddToFolder("root", driveItem("d1", "beach.jpg", createdAt), []byte("a"))
	f.photos.Add(driveItem("p1", "beach.jpg", createdAt.Add(48*time.Hour)), []byte("b"))

	rep, err := f.coordinator(t, conflict.PolicyDifferent()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rep.Ambiguous != 1 || rep.ResolvedDifferent != 1 {
		t.Errorf("ambiguous = %d, resolved different = %d", rep.Ambiguous, rep.ResolvedDifferent)
	}
	if rep.TransferredToPhotos != 1 || rep.TransferredToDrive != 1 {
		t.Errorf("different resolution must copy both ways, got %+v", rep)
	}
	if !f.sawPhase(session.PhaseAwaitingConflicts) {
		t.Error("awaiting_conflicts phase never published")
	}
}

func TestRunResolvesConflictAsSame(t *testing.T) {
	f := newFixture()
	f.drive.AddToFolder("root", driveItem("d1", "beach.jpg", createdAt), []byte("a"))
	f.photos.Add(driveItem("p1", "beach.jpg", createdAt.Add(48*time.Hour)), []byte("b"))

	rep, err := f.coordinator(t, conflict.PolicySame()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rep.ResolvedSame != 1 {
		t.Errorf("resolved same = %d", rep.ResolvedSame)
	}
	if rep.TransferredToPhotos+rep.TransferredToDrive != 0 {
		t.Errorf("same resolution must transfer nothing, got %+v", rep)
	}
	if len(f.photos.Uploads())+len(f.drive.Uploads()) != 0 {
		t.Error("uploads happened for a same-resolved conflict")
	}
}

func TestRunDecisionFailureAbortsWithCause(t *testing.T) {
	f := newFixture()
	f.drive.AddToFolder("root", driveItem("d1", "beach.jpg", createdAt), []byte("a"))
	f.photos.Add(driveItem("p1", "beach.jpg", createdAt.Add(48*time.Hour)), []byte("b"))

	sourceErr := errors.New("operator went away")
	failing := conflict.DecisionFunc(func(context.Context, conflict.Record) (conflict.Decision, error) {
		return conflict.Unresolved, sourceErr
	})

	rep, err := f.coordinator(t, failing).Run(context.Background())
	if !errors.Is(err, sourceErr) {
		t.Fatalf("run error = %v, want the decision-source failure", err)
	}

	if rep.FinalPhase != session.PhaseCancelled {
		t.Fatalf("final phase = %s, want cancelled", rep.FinalPhase)
	}
	if rep.Err == "" {
		t.Error("report must carry the abort error")
	}
	if rep.UnresolvedAbandoned != 1 {
		t.Errorf("unresolved abandoned = %d, want 1", rep.UnresolvedAbandoned)
	}
	if len(f.photos.Uploads())+len(f.drive.Uploads()) != 0 {
		t.Error("cancelled run still transferred")
	}
}

func TestRunDryRunPlansWithoutTransferring(t *testing.T) {
	f := newFixture()
	f.drive.AddToFolder("root", driveItem("d1", "driveonly.jpg", createdAt), []byte("a"))

	rep, err := f.coordinator(t, conflict.PolicySame(), session.WithDryRun(true)).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rep.FinalPhase != session.PhaseComplete {
		t.Fatalf("final phase = %s", rep.FinalPhase)
	}
	if rep.SkippedTransfers != 1 || rep.TransferredToPhotos != 0 {
		t.Errorf("dry run counts = %+v", rep)
	}
	if len(f.photos.Uploads()) != 0 {
		t.Error("dry run uploaded")
	}
	if f.sawPhase(session.PhaseTransferring) {
		t.Error("dry run entered transferring")
	}
}

func TestRunRootListingFailureAborts(t *testing.T) {
	f := newFixture()
	f.drive.FailListings(
		store.Wrap(store.ErrFatal, "drive", "list", errors.New("404")),
	)

	rep, err := f.coordinator(t, conflict.PolicySame()).Run(context.Background())
	if err == nil {
		t.Fatal("fatal root listing failure must error the run")
	}
	if rep.FinalPhase != session.PhaseCancelled {
		t.Errorf("final phase = %s, want cancelled", rep.FinalPhase)
	}
	if rep.Err == "" {
		t.Error("report must carry the abort error")
	}
}

func TestRunRecordsSubtreeFailures(t *testing.T) {
	f := newFixture()
	f.drive.AddToFolder("root", driveItem("d1", "beach.jpg", createdAt), []byte("a"))
	f.drive.AddFolder("root", store.Folder{ID: "broken", Name: "broken"})
	f.drive.FailListings(nil, store.Wrap(store.ErrFatal, "drive", "list", errors.New("403")))

	rep, err := f.coordinator(t, conflict.PolicySame()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.ListingFailures != 1 {
		t.Errorf("listing failures = %d, want 1", rep.ListingFailures)
	}
	if rep.FinalPhase != session.PhaseComplete {
		t.Errorf("subtree failure must not cancel, phase = %s", rep.FinalPhase)
	}
}

func TestRunFailedTransferCounted(t *testing.T) {
	f := newFixture()
	item := driveItem("d1", "driveonly.jpg", createdAt)
	f.drive.AddToFolder("root", item, []byte("a"))
	fatal := store.Wrap(store.ErrFatal, "photos", "upload", errors.New("403"))
	f.photos.FailUploads(fatal)

	rep, err := f.coordinator(t, conflict.PolicySame()).Run(context.Background())
	if err != nil {
		t.Fatalf("task failures never error the run: %v", err)
	}

	if rep.FailedTransfers != 1 || rep.TransferredToPhotos != 0 {
		t.Errorf("counts = %+v", rep)
	}
	if rep.FinalPhase != session.PhaseComplete {
		t.Errorf("final phase = %s", rep.FinalPhase)
	}
}

// recordingNotifier captures milestone deliveries.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) note(event string) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) NotifySyncStarted(context.Context) error { return n.note("started") }
func (n *recordingNotifier) NotifyConflictsPending(_ context.Context, count int) error {
	return n.note("conflicts")
}
func (n *recordingNotifier) NotifySyncCompleted(context.Context, int, int, int, time.Duration) error {
	return n.note("completed")
}
func (n *recordingNotifier) NotifySyncFailed(context.Context, error) error { return n.note("failed") }
func (n *recordingNotifier) TestNotification(context.Context) error        { return n.note("test") }

func TestRunDeliversNotifications(t *testing.T) {
	f := newFixture()
	f.drive.AddToFolder("root", driveItem("d1", "beach.jpg", createdAt), []byte("a"))
	f.photos.Add(driveItem("p1", "beach.jpg", createdAt.Add(48*time.Hour)), []byte("b"))

	notifier := &recordingNotifier{}
	_, err := f.coordinator(t, conflict.PolicySame(), session.WithNotifier(notifier)).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	want := []string{"started", "conflicts", "completed"}
	if len(notifier.events) != len(want) {
		t.Fatalf("notifications = %v, want %v", notifier.events, want)
	}
	for i := range want {
		if notifier.events[i] != want[i] {
			t.Errorf("notification %d = %s, want %s", i, notifier.events[i], want[i])
		}
	}
}
