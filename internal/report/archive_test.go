package report_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"drivesync/internal/media"
	"drivesync/internal/report"
	"drivesync/internal/session"
	"drivesync/internal/testsupport"
	"drivesync/internal/transfer"
)

func sampleReport(id string, started time.Time) session.Report {
	return session.Report{
		SessionID:           id,
		StartedAt:           started,
		FinishedAt:          started.Add(2 * time.Minute),
		FinalPhase:          session.PhaseComplete,
		DriveItems:          10,
		PhotosItems:         8,
		Matched:             6,
		DriveOnly:           3,
		PhotosOnly:          1,
		Ambiguous:           1,
		TransferredToPhotos: 3,
		TransferredToDrive:  1,
		ResolvedSame:        1,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReportStore(t, cfg)

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rep := sampleReport("session-1", started)
	task := transfer.NewTask(transfer.DriveToPhotos, media.Item{
		ID: "d1", Source: media.StoreDrive, Name: "beach.jpg", CreatedAt: started,
	})
	task.Status = transfer.StatusDone
	task.Attempts = 1
	task.NewRemoteID = "photos-1"

	failed := transfer.NewTask(transfer.PhotosToDrive, media.Item{
		ID: "p1", Source: media.StorePhotos, Name: "sunset.png", CreatedAt: started,
	})
	failed.Status = transfer.StatusFailed
	failed.Attempts = 4
	failed.Err = errors.New("quota exceeded")

	testsupport.MustSaveReport(t, store, rep, []*transfer.Task{task, failed})

	got, tasks, err := store.Get(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SessionID != rep.SessionID || got.Matched != rep.Matched ||
		got.TransferredToPhotos != rep.TransferredToPhotos {
		t.Errorf("report round trip mismatch: %+v", got)
	}
	if !got.StartedAt.Equal(rep.StartedAt) {
		t.Errorf("started at = %s, want %s", got.StartedAt, rep.StartedAt)
	}
	if got.FinalPhase != session.PhaseComplete {
		t.Errorf("final phase = %s", got.FinalPhase)
	}

	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	byName := make(map[string]report.TaskRecord, len(tasks))
	for _, record := range tasks {
		byName[record.ItemName] = record
	}
	if byName["beach.jpg"].NewRemoteID != "photos-1" || byName["beach.jpg"].Status != "done" {
		t.Errorf("done task = %+v", byName["beach.jpg"])
	}
	if byName["sunset.png"].Err != "quota exceeded" || byName["sunset.png"].Attempts != 4 {
		t.Errorf("failed task = %+v", byName["sunset.png"])
	}
}

func TestGetUnknownSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReportStore(t, cfg)

	_, _, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReportStore(t, cfg)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rep := sampleReport(fmt.Sprintf("session-%d", i), base.Add(time.Duration(i)*time.Hour))
		testsupport.MustSaveReport(t, store, rep, nil)
	}

	reports, err := store.List(context.Background(), 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(reports))
	}
	if reports[0].SessionID != "session-4" || reports[2].SessionID != "session-2" {
		t.Errorf("order = %s, %s, %s", reports[0].SessionID, reports[1].SessionID, reports[2].SessionID)
	}

	all, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("all = %d, want 5", len(all))
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReportStore(t, cfg)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rep := sampleReport(fmt.Sprintf("session-%d", i), base.Add(time.Duration(i)*time.Hour))
		task := transfer.NewTask(transfer.DriveToPhotos, media.Item{ID: "d1", Name: "beach.jpg"})
		task.Status = transfer.StatusDone
		testsupport.MustSaveReport(t, store, rep, []*transfer.Task{task})
	}

	removed, err := store.Prune(context.Background(), 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	reports, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("kept = %d, want 2", len(reports))
	}
	if reports[0].SessionID != "session-4" || reports[1].SessionID != "session-3" {
		t.Errorf("kept = %s, %s", reports[0].SessionID, reports[1].SessionID)
	}

	// Task rows follow their session out.
	if _, _, err := store.Get(context.Background(), "session-0"); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("pruned session still present: %v", err)
	}
}

func TestDuplicateSessionIDRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReportStore(t, cfg)

	rep := sampleReport("session-1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	testsupport.MustSaveReport(t, store, rep, nil)
	if err := store.Save(context.Background(), rep, nil); err == nil {
		t.Fatal("duplicate session id accepted")
	}
}
