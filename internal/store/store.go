// Package store defines the persistence contracts shared by every backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/harentsoaR/dentist-booking/internal/models"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrPreconditionFailed means the row exists but the update guard did not hold.
	ErrPreconditionFailed = errors.New("store: precondition failed")
	ErrDuplicate          = errors.New("store: duplicate key")
)

type Users interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	// List returns users newest first.
	List(ctx context.Context) ([]models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	UpdateRole(ctx context.Context, id int64, role models.Role) (models.User, error)
}

type Patients interface {
	Create(ctx context.Context, p models.Patient) (models.Patient, error)
	FindByID(ctx context.Context, id int64) (models.Patient, error)
}

type Appointments interface {
	Create(ctx context.Context, a models.Appointment) (models.Appointment, error)
	// FindByID returns the appointment with patient and staff joined.
	FindByID(ctx context.Context, id int64) (models.Appointment, error)
	// List returns every appointment ordered by scheduled date ascending,
	// with patient and staff joined.
	List(ctx context.Context) ([]models.Appointment, error)
	// Update applies upd in a single conditional write and returns the joined row.
	Update(ctx context.Context, id int64, upd AppointmentUpdate) (models.Appointment, error)
}

// Store bundles the repositories behind one explicitly owned handle.
type Store interface {
	Users() Users
	Patients() Patients
	Appointments() Appointments
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error
}

type GuardKind int

const (
	// GuardNone writes unconditionally.
	GuardNone GuardKind = iota
	// GuardUnassigned writes only while staffId is unset.
	GuardUnassigned
	// GuardUnassignedOrOwner writes only while staffId is unset or equals Guard.OwnerID.
	GuardUnassignedOrOwner
)

type Guard struct {
	Kind    GuardKind
	OwnerID int64
}

// Allows reports whether an appointment currently held by staffID passes the guard.
func (g Guard) Allows(staffID *int64) bool {
	switch g.Kind {
	case GuardUnassigned:
		return staffID == nil
	case GuardUnassignedOrOwner:
		return staffID == nil || *staffID == g.OwnerID
	default:
		return true
	}
}

// AppointmentUpdate is a partial update; nil fields are left untouched.
type AppointmentUpdate struct {
	Status         *models.Status
	Notes          *string
	FollowUpNeeded *bool
	AssignStaffID  *int64
	Guard          Guard
}

// Empty reports whether the update would change no column.
func (u AppointmentUpdate) Empty() bool {
	return u.Status == nil && u.Notes == nil && u.FollowUpNeeded == nil && u.AssignStaffID == nil
}

// Apply copies the requested fields onto a.
func (u AppointmentUpdate) Apply(a *models.Appointment) {
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.Notes != nil {
		notes := *u.Notes
		a.Notes = &notes
	}
	if u.FollowUpNeeded != nil {
		f := *u.FollowUpNeeded
		a.FollowUpNeeded = &f
	}
	if u.AssignStaffID != nil {
		id := *u.AssignStaffID
		a.StaffID = &id
	}
}

// Clock lets backends stamp creation times deterministically in tests.
type Clock func() time.Time
