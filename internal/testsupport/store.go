package testsupport

import (
	"context"
	"testing"

	"drivesync/internal/config"
	"drivesync/internal/report"
	"drivesync/internal/session"
	"drivesync/internal/transfer"
)

// MustOpenReportStore opens a report store backed by the test config and
// registers cleanup.
func MustOpenReportStore(t testing.TB, cfg *config.Config) *report.Store {
	t.Helper()

	store, err := report.Open(cfg)
	if err != nil {
		t.Fatalf("open report store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close report store: %v", err)
		}
	})
	return store
}

// MustSaveReport archives a report, failing the test on error.
func MustSaveReport(t testing.TB, store *report.Store, rep session.Report, tasks []*transfer.Task) {
	t.Helper()

	if err := store.Save(context.Background(), rep, tasks); err != nil {
		t.Fatalf("save report %s: %v", rep.SessionID, err)
	}
}
