// Package memory is an in-process store used for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store"
)

// Storage keeps every table in maps guarded by a single lock, so each
// conditional update is atomic with respect to its guard check.
type Storage struct {
	mu           sync.RWMutex
	now          store.Clock
	nextID       int64
	users        map[int64]models.User
	patients     map[int64]models.Patient
	appointments map[int64]models.Appointment
}

func New() *Storage {
	return NewWithClock(time.Now)
}

func NewWithClock(now store.Clock) *Storage {
	return &Storage{
		now:          now,
		users:        make(map[int64]models.User),
		patients:     make(map[int64]models.Patient),
		appointments: make(map[int64]models.Appointment),
	}
}

func (s *Storage) Users() store.Users               { return userRepo{s} }
func (s *Storage) Patients() store.Patients         { return patientRepo{s} }
func (s *Storage) Appointments() store.Appointments { return appointmentRepo{s} }

// Migrate is a no-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error { return nil }

// Close is a no-op for the in-memory implementation.
func (s *Storage) Close(context.Context) error { return nil }

func (s *Storage) allocIDLocked() int64 {
	s.nextID++
	return s.nextID
}

// --- users ---

type userRepo struct{ s *Storage }

func (r userRepo) FindByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (r userRepo) FindByID(_ context.Context, id int64) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r userRepo) Create(_ context.Context, u models.User) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return models.User{}, store.ErrDuplicate
		}
	}
	u.ID = r.s.allocIDLocked()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.s.now().UTC()
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r userRepo) List(_ context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID > users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r userRepo) CountByRole(_ context.Context, role models.Role) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r userRepo) UpdateRole(_ context.Context, id int64, role models.Role) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	u.Role = role
	r.s.users[id] = u
	return u, nil
}

// --- patients ---

type patientRepo struct{ s *Storage }

func (r patientRepo) Create(_ context.Context, p models.Patient) (models.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p.ID = r.s.allocIDLocked()
	r.s.patients[p.ID] = p
	return p, nil
}

func (r patientRepo) FindByID(_ context.Context, id int64) (models.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return models.Patient{}, store.ErrNotFound
	}
	return p, nil
}

// --- appointments ---

type appointmentRepo struct{ s *Storage }

func (r appointmentRepo) Create(_ context.Context, a models.Appointment) (models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[a.PatientID]; !ok {
		return models.Appointment{}, store.ErrNotFound
	}
	a.ID = r.s.allocIDLocked()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.s.now().UTC()
	}
	a.Patient, a.Staff = nil, nil
	r.s.appointments[a.ID] = cloneAppointment(a)
	return r.s.joinLocked(a), nil
}

func (r appointmentRepo) FindByID(_ context.Context, id int64) (models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return models.Appointment{}, store.ErrNotFound
	}
	return r.s.joinLocked(a), nil
}

func (r appointmentRepo) List(_ context.Context) ([]models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]models.Appointment, 0, len(r.s.appointments))
	for _, a := range r.s.appointments {
		out = append(out, r.s.joinLocked(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out, nil
}

func (r appointmentRepo) Update(_ context.Context, id int64, upd store.AppointmentUpdate) (models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return models.Appointment{}, store.ErrNotFound
	}
	if !upd.Guard.Allows(a.StaffID) {
		return models.Appointment{}, store.ErrPreconditionFailed
	}
	upd.Apply(&a)
	r.s.appointments[id] = cloneAppointment(a)
	return r.s.joinLocked(a), nil
}

func (s *Storage) joinLocked(a models.Appointment) models.Appointment {
	a = cloneAppointment(a)
	if p, ok := s.patients[a.PatientID]; ok {
		a.Patient = &p
	}
	if a.StaffID != nil {
		if u, ok := s.users[*a.StaffID]; ok {
			a.Staff = u.Summary()
		}
	}
	return a
}

func cloneAppointment(a models.Appointment) models.Appointment {
	if a.StaffID != nil {
		id := *a.StaffID
		a.StaffID = &id
	}
	if a.Notes != nil {
		n := *a.Notes
		a.Notes = &n
	}
	if a.FollowUpNeeded != nil {
		f := *a.FollowUpNeeded
		a.FollowUpNeeded = &f
	}
	return a
}
