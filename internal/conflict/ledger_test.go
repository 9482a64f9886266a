package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"drivesync/internal/match"
	"drivesync/internal/media"
)

func ambiguousPair(name string, distance time.Duration) match.Pair {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	drive := media.Item{ID: "d-" + name, Source: media.StoreDrive, Name: name, CreatedAt: created}
	photos := media.Item{ID: "p-" + name, Source: media.StorePhotos, Name: name, CreatedAt: created.Add(distance)}
	return match.Pair{Drive: &drive, Photos: &photos, Class: match.ClassAmbiguous, TimeDistance: distance}
}

func TestEmptyLedgerIsSettled(t *testing.T) {
	ledger := NewLedger(nil)
	if !ledger.Settled() {
		t.Fatal("ledger with no records should be settled")
	}
	if err := ledger.Wait(context.Background()); err != nil {
		t.Fatalf("wait on empty ledger: %v", err)
	}
}

func TestResolveLifecycle(t *testing.T) {
	ledger := NewLedger([]match.Pair{
		ambiguousPair("beach.jpg", 30*time.Hour),
		ambiguousPair("sunset.jpg", 40*time.Hour),
	})

	if ledger.Settled() {
		t.Fatal("ledger should start unsettled")
	}
	if got := ledger.Unresolved(); got != 2 {
		t.Fatalf("unresolved = %d, want 2", got)
	}

	pending := ledger.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Drive.Name != "beach.jpg" {
		t.Errorf("pending order by name, got %s first", pending[0].Drive.Name)
	}

	if err := ledger.Resolve(pending[0].ID, Same); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if ledger.Settled() {
		t.Fatal("one decision should not settle two records")
	}
	if err := ledger.Resolve(pending[1].ID, Different); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !ledger.Settled() {
		t.Fatal("all records decided; ledger should be settled")
	}

	records := ledger.Records()
	if records[0].Resolution != Same || records[1].Resolution != Different {
		t.Errorf("resolutions = %s, %s", records[0].Resolution, records[1].Resolution)
	}
	for _, record := range records {
		if record.ResolvedAt.IsZero() {
			t.Errorf("record %s missing resolution time", record.ID)
		}
	}
}

func TestResolveRejectsDuplicateDecision(t *testing.T) {
	ledger := NewLedger([]match.Pair{ambiguousPair("beach.jpg", 30 * time.Hour)})
	id := ledger.Pending()[0].ID

	if err := ledger.Resolve(id, Same); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	err := ledger.Resolve(id, Same)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("duplicate decision error = %v, want ErrAlreadyResolved", err)
	}
}

func TestResolveRejectsUnknownAndInvalid(t *testing.T) {
	ledger := NewLedger([]match.Pair{ambiguousPair("beach.jpg", 30 * time.Hour)})

	if err := ledger.Resolve("no-such-id", Same); !errors.Is(err, ErrUnknownConflict) {
		t.Errorf("unknown id error = %v", err)
	}
	id := ledger.Pending()[0].ID
	if err := ledger.Resolve(id, Unresolved); err == nil {
		t.Error("unresolved is not a valid decision")
	}
	if got := ledger.Unresolved(); got != 1 {
		t.Errorf("rejected decisions must not consume the record, unresolved = %d", got)
	}
}

func TestWaitUnblocksOnLastDecision(t *testing.T) {
	ledger := NewLedger([]match.Pair{ambiguousPair("beach.jpg", 30 * time.Hour)})
	id := ledger.Pending()[0].ID

	done := make(chan error, 1)
	go func() {
		done <- ledger.Wait(context.Background())
	}()

	if err := ledger.Resolve(id, Different); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not unblock after the last decision")
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	ledger := NewLedger([]match.Pair{ambiguousPair("beach.jpg", 30 * time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ledger.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("wait error = %v, want context.Canceled", err)
	}
}

func TestPolicies(t *testing.T) {
	record := Record{ID: "r1"}

	decision, err := PolicySame().Decide(context.Background(), record)
	if err != nil || decision != Same {
		t.Errorf("PolicySame = (%s, %v)", decision, err)
	}
	decision, err = PolicyDifferent().Decide(context.Background(), record)
	if err != nil || decision != Different {
		t.Errorf("PolicyDifferent = (%s, %v)", decision, err)
	}
}
