package mongostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store"
)

type counterIDs struct{ n atomic.Int64 }

func (c *counterIDs) Next() int64 { return c.n.Add(1) }

// TestStorage_Integration needs a reachable server in TEST_MONGO_URI. Each run
// uses a fresh database that is dropped afterwards.
func TestStorage_Integration(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	dbName := fmt.Sprintf("booking_test_%d", time.Now().UnixNano())
	s, err := Connect(ctx, uri, dbName, &counterIDs{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer func() {
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	}()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	d, err := s.Users().Create(ctx, models.User{Email: "d@clinic.test", Password: "x", Role: models.RoleDentist})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Users().Create(ctx, models.User{Email: "d@clinic.test", Password: "x", Role: models.RoleStaff}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate email: %v", err)
	}
	if n, err := s.Users().CountByRole(ctx, models.RoleDentist); err != nil || n != 1 {
		t.Fatalf("CountByRole = %d, %v", n, err)
	}

	p, err := s.Patients().Create(ctx, models.Patient{FirstName: "P", LastName: "Q", Email: "p@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.Appointments().Create(ctx, models.Appointment{
		PatientID:     p.ID,
		ScheduledDate: time.Now().UTC(),
		ProblemDesc:   "pain",
		Status:        models.StatusPending,
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.StaffID != nil || a.Patient == nil {
		t.Fatalf("unexpected new appointment %+v", a)
	}

	confirmed := models.StatusConfirmed
	got, err := s.Appointments().Update(ctx, a.ID, store.AppointmentUpdate{
		Status:        &confirmed,
		AssignStaffID: &d.ID,
		Guard:         store.Guard{Kind: store.GuardUnassigned},
	})
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if !got.AssignedTo(d.ID) || got.Staff == nil {
		t.Errorf("unexpected row %+v", got)
	}

	notes := "x"
	_, err = s.Appointments().Update(ctx, a.ID, store.AppointmentUpdate{
		Notes: &notes,
		Guard: store.Guard{Kind: store.GuardUnassignedOrOwner, OwnerID: d.ID + 1},
	})
	if !errors.Is(err, store.ErrPreconditionFailed) {
		t.Errorf("non-owner: %v", err)
	}
	if _, err := s.Appointments().Update(ctx, 424242, store.AppointmentUpdate{Notes: &notes}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing row: %v", err)
	}
}
