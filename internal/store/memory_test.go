package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/kfujino/odowatch/internal/models"
)

func TestSnapshotStoreRequiresPath(t *testing.T) {
	if _, err := NewSnapshotStore(); err == nil {
		t.Fatal("expected error without snapshot path")
	}
}

func TestSnapshotStoreSeedsUnknownUser(t *testing.T) {
	s := newTestSnapshotStore(t)
	sess, err := s.GetOrCreate("Unew")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range models.KnownVehicles() {
		rec := sess.Vehicles[v]
		if rec == nil || *rec != (models.VehicleRecord{}) {
			t.Errorf("vehicle %s not seeded zero: %+v", v, rec)
		}
	}
	if sess.SelectedVehicle != models.DefaultVehicle() {
		t.Errorf("SelectedVehicle = %s, want default", sess.SelectedVehicle)
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	s, err := NewSnapshotStore(WithSnapshotPath(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess, err := s.GetOrCreate("U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess.Vehicles[models.VehicleJimny].StartKm = 30000
	sess.Vehicles[models.VehicleJimny].MaxKm = 5000
	sess.SelectedVehicle = models.VehicleLapin
	if err := s.Save("U1", sess, []models.VehicleName{models.VehicleJimny}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// A fresh store on the same file sees the whole session, conversational
	// fields included.
	reopened, err := NewSnapshotStore(WithSnapshotPath(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := reopened.GetOrCreate("U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Vehicles[models.VehicleJimny].StartKm != 30000 || got.Vehicles[models.VehicleJimny].MaxKm != 5000 {
		t.Errorf("record did not round-trip: %+v", got.Vehicles[models.VehicleJimny])
	}
	if got.SelectedVehicle != models.VehicleLapin {
		t.Errorf("SelectedVehicle did not round-trip: %s", got.SelectedVehicle)
	}
	if rec := got.Vehicles[models.VehicleLapin]; rec == nil || *rec != (models.VehicleRecord{}) {
		t.Errorf("other vehicle should stay zero: %+v", rec)
	}
}

// Flushing one user's save must not read another user's live session: the
// webhook handler serializes per user only, so a second user may be mid-way
// through mutating their session while the first user's save runs. Run with
// the race detector.
func TestSnapshotStoreSaveConcurrentWithOtherUserMutation(t *testing.T) {
	s := newTestSnapshotStore(t)
	a, err := s.GetOrCreate("UA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := s.GetOrCreate("UB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Save("UB", b, []models.VehicleName{models.VehicleJimny}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			a.Vehicles[models.VehicleJimny].LastKm = 30000 + i
			if err := s.Save("UA", a, []models.VehicleName{models.VehicleJimny}); err != nil {
				t.Errorf("save failed: %v", err)
				return
			}
		}
	}()
	go func() {
		// B's session is mutated the way the engine does between load and
		// save, holding only B's per-user lock.
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Vehicles[models.VehicleJimny].LastKm = 10000 + i
			b.State = models.StateAwaitingMaxKm
			b.State = models.StateNone
		}
	}()
	wg.Wait()

	got, err := s.GetOrCreate("UA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Vehicles[models.VehicleJimny].LastKm != 30199 {
		t.Errorf("last save lost: %+v", got.Vehicles[models.VehicleJimny])
	}
}

func newTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := NewSnapshotStore(WithSnapshotPath(filepath.Join(t.TempDir(), "sessions.json")))
	if err != nil {
		t.Fatalf("failed to create snapshot store: %v", err)
	}
	return s
}
