package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{sql.ErrNoRows, store.ErrNotFound},
		{fmt.Errorf("get: %w", sql.ErrNoRows), store.ErrNotFound},
		{&pq.Error{Code: "23505"}, store.ErrDuplicate},
	}
	for _, tt := range tests {
		if got := mapError(tt.in); !errors.Is(got, tt.want) {
			t.Errorf("mapError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	other := errors.New("boom")
	if got := mapError(other); got != other {
		t.Errorf("unrelated error rewritten: %v", got)
	}
}

func TestAppointmentRowModel(t *testing.T) {
	staffID := int64(4)
	email := "d@clinic.test"
	role := "DENTIST"
	row := appointmentRow{
		ID:         1,
		PatientID:  2,
		StaffID:    &staffID,
		Status:     "CONFIRMED",
		PFirstName: "Jane",
		PEmail:     "jane@x.com",
		SEmail:     &email,
		SRole:      &role,
	}
	a := row.model()
	if a.Patient == nil || a.Patient.Email != "jane@x.com" {
		t.Errorf("patient = %+v", a.Patient)
	}
	if a.Staff == nil || a.Staff.ID != 4 || a.Staff.Role != models.RoleDentist || a.Staff.FirstName != "" {
		t.Errorf("staff = %+v", a.Staff)
	}

	row.StaffID, row.SEmail = nil, nil
	if a := row.model(); a.Staff != nil {
		t.Errorf("unassigned row has staff %+v", a.Staff)
	}
}

// TestStorage_Integration needs a disposable database in TEST_DATABASE_URL.
func TestStorage_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, Config{DSN: dsn, MaxConns: 2})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close(ctx)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	email := fmt.Sprintf("dent-%d@clinic.test", time.Now().UnixNano())
	d, err := s.Users().Create(ctx, models.User{Email: email, Password: "x", Role: models.RoleDentist})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.Users().Create(ctx, models.User{Email: email, Password: "x", Role: models.RoleStaff}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate email: %v", err)
	}

	p, err := s.Patients().Create(ctx, models.Patient{FirstName: "P", LastName: "Q", Email: "p@example.com"})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	a, err := s.Appointments().Create(ctx, models.Appointment{
		PatientID:     p.ID,
		ScheduledDate: time.Now().UTC(),
		ProblemDesc:   "pain",
		Status:        models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
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
	if !got.AssignedTo(d.ID) || got.Staff == nil || got.Staff.Email != email {
		t.Errorf("unexpected row %+v", got)
	}

	other := d.ID + 1000
	_, err = s.Appointments().Update(ctx, a.ID, store.AppointmentUpdate{
		Status:        &confirmed,
		AssignStaffID: &other,
		Guard:         store.Guard{Kind: store.GuardUnassigned},
	})
	if !errors.Is(err, store.ErrPreconditionFailed) {
		t.Errorf("second take: %v", err)
	}
	if _, err := s.Appointments().Update(ctx, -1, store.AppointmentUpdate{Status: &confirmed}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing row: %v", err)
	}
}
