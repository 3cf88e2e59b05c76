package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store"
)

func seedAppointment(t *testing.T, s *Storage, at time.Time) models.Appointment {
	t.Helper()
	ctx := context.Background()
	p, err := s.Patients().Create(ctx, models.Patient{FirstName: "P", LastName: "Q", Email: "p@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.Appointments().Create(ctx, models.Appointment{
		PatientID:     p.ID,
		ScheduledDate: at,
		ProblemDesc:   "pain",
		Status:        models.StatusPending,
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestUsers_DuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Users().Create(ctx, models.User{Email: "a@x.test", Role: models.RoleStaff}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Users().Create(ctx, models.User{Email: "A@X.test", Role: models.RoleStaff}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUsers_ListNewestFirst(t *testing.T) {
	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	ctx := context.Background()
	first, _ := s.Users().Create(ctx, models.User{Email: "1@x.test", Role: models.RoleStaff})
	second, _ := s.Users().Create(ctx, models.User{Email: "2@x.test", Role: models.RoleStaff})

	users, err := s.Users().List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0].ID != second.ID || users[1].ID != first.ID {
		t.Fatalf("unexpected order %+v", users)
	}
}

func TestAppointments_ListOrderedBySchedule(t *testing.T) {
	s := New()
	base := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	late := seedAppointment(t, s, base.Add(48*time.Hour))
	early := seedAppointment(t, s, base)

	list, err := s.Appointments().List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != early.ID || list[1].ID != late.ID {
		t.Fatalf("unexpected order %+v", list)
	}
	if list[0].Patient == nil {
		t.Error("patient not joined")
	}
}

func TestAppointments_UpdateGuards(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAppointment(t, s, time.Now())
	confirmed := models.StatusConfirmed
	owner, other := int64(100), int64(200)

	_, err := s.Appointments().Update(ctx, a.ID, store.AppointmentUpdate{
		Status:        &confirmed,
		AssignStaffID: &owner,
		Guard:         store.Guard{Kind: store.GuardUnassigned},
	})
	if err != nil {
		t.Fatalf("take: %v", err)
	}

	_, err = s.Appointments().Update(ctx, a.ID, store.AppointmentUpdate{
		Status:        &confirmed,
		AssignStaffID: &other,
		Guard:         store.Guard{Kind: store.GuardUnassigned},
	})
	if !errors.Is(err, store.ErrPreconditionFailed) {
		t.Fatalf("second take: expected ErrPreconditionFailed, got %v", err)
	}

	notes := "x"
	_, err = s.Appointments().Update(ctx, a.ID, store.AppointmentUpdate{
		Notes: &notes,
		Guard: store.Guard{Kind: store.GuardUnassignedOrOwner, OwnerID: other},
	})
	if !errors.Is(err, store.ErrPreconditionFailed) {
		t.Fatalf("non-owner: expected ErrPreconditionFailed, got %v", err)
	}

	got, err := s.Appointments().Update(ctx, a.ID, store.AppointmentUpdate{
		Notes: &notes,
		Guard: store.Guard{Kind: store.GuardUnassignedOrOwner, OwnerID: owner},
	})
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if !got.AssignedTo(owner) || got.Notes == nil || *got.Notes != "x" {
		t.Errorf("unexpected row %+v", got)
	}

	if _, err := s.Appointments().Update(ctx, 9999, store.AppointmentUpdate{Notes: &notes}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppointments_ReturnedRowsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAppointment(t, s, time.Now())
	notes := "original"
	got, err := s.Appointments().Update(ctx, a.ID, store.AppointmentUpdate{Notes: &notes})
	if err != nil {
		t.Fatal(err)
	}
	*got.Notes = "mutated"

	again, err := s.Appointments().FindByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *again.Notes != "original" {
		t.Errorf("stored notes changed through returned pointer: %q", *again.Notes)
	}
}
