package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store"
)

// AppointmentService owns the appointment lifecycle: booking, listing with
// row-level visibility, and guarded status transitions.
type AppointmentService struct {
	users        store.Users
	patients     store.Patients
	appointments store.Appointments
	logger       *zap.Logger
}

func NewAppointmentService(st store.Store, logger *zap.Logger) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{
		users:        st.Users(),
		patients:     st.Patients(),
		appointments: st.Appointments(),
		logger:       logger.Named("appointments"),
	}
}

var scheduledDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseScheduledDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range scheduledDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Create books an appointment for a new patient record. No authentication is
// involved; the appointment always starts PENDING and unassigned.
func (s *AppointmentService) Create(ctx context.Context, req models.BookingRequest) (models.Appointment, error) {
	v := &ValidationError{}
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	email := strings.TrimSpace(req.Email)
	problem := strings.TrimSpace(req.ProblemDesc)
	if firstName == "" {
		v.add("firstName", "required")
	}
	if lastName == "" {
		v.add("lastName", "required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		v.add("email", "must be a valid email address")
	}
	if problem == "" {
		v.add("problemDesc", "required")
	}
	scheduled, ok := parseScheduledDate(req.ScheduledDate)
	if !ok {
		v.add("scheduledDate", "must be an RFC3339 date-time")
	}
	if err := v.orNil(); err != nil {
		return models.Appointment{}, err
	}

	patient, err := s.patients.Create(ctx, models.Patient{FirstName: firstName, LastName: lastName, Email: email})
	if err != nil {
		return models.Appointment{}, fmt.Errorf("create patient: %w", err)
	}
	apt, err := s.appointments.Create(ctx, models.Appointment{
		PatientID:     patient.ID,
		ScheduledDate: scheduled,
		ProblemDesc:   problem,
		Status:        models.StatusPending,
	})
	if err != nil {
		return models.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	s.logger.Info("appointment booked",
		zap.Int64("appointment_id", apt.ID),
		zap.Int64("patient_id", patient.ID),
		zap.Time("scheduled_date", apt.ScheduledDate),
	)
	return apt, nil
}

// ListFilter narrows a listing. The zero value lists everything visible.
type ListFilter struct {
	Statuses []models.Status
	// Mine keeps only appointments assigned to the caller.
	Mine bool
	// History keeps only COMPLETED and CANCELLED appointments.
	History bool
	From    *time.Time
	// Until is exclusive.
	Until *time.Time
}

func (f ListFilter) matches(a models.Appointment, callerID int64) bool {
	if f.Mine && !a.AssignedTo(callerID) {
		return false
	}
	if f.History && !a.Status.Closed() {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if a.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && a.ScheduledDate.Before(*f.From) {
		return false
	}
	if f.Until != nil && !a.ScheduledDate.Before(*f.Until) {
		return false
	}
	return true
}

// visibleTo is the row-level read rule: ADMIN and STAFF see everything, a
// DENTIST sees the open pool plus their own, a PATIENT sees bookings made
// under their account email.
func visibleTo(a models.Appointment, u models.User) bool {
	switch u.Role {
	case models.RoleAdmin, models.RoleStaff:
		return true
	case models.RoleDentist:
		return a.StaffID == nil || *a.StaffID == u.ID
	case models.RolePatient:
		return a.Patient != nil && strings.EqualFold(a.Patient.Email, u.Email)
	default:
		return false
	}
}

func (s *AppointmentService) caller(ctx context.Context, p Principal) (models.User, error) {
	u, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, notFound("User not found")
		}
		return models.User{}, fmt.Errorf("find caller: %w", err)
	}
	return u, nil
}

// List returns the appointments the caller may see, scheduled date ascending.
func (s *AppointmentService) List(ctx context.Context, p Principal, filter ListFilter) ([]models.Appointment, error) {
	u, err := s.caller(ctx, p)
	if err != nil {
		return nil, err
	}
	all, err := s.appointments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := make([]models.Appointment, 0, len(all))
	for _, a := range all {
		if visibleTo(a, u) && filter.matches(a, u.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Get returns one appointment. Rows the caller may not see read as absent.
func (s *AppointmentService) Get(ctx context.Context, p Principal, id int64) (models.Appointment, error) {
	u, err := s.caller(ctx, p)
	if err != nil {
		return models.Appointment{}, err
	}
	a, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Appointment{}, notFound("Appointment not found")
		}
		return models.Appointment{}, fmt.Errorf("find appointment: %w", err)
	}
	if !visibleTo(a, u) {
		return models.Appointment{}, notFound("Appointment not found")
	}
	return a, nil
}

// Update applies a partial change. A DENTIST confirming an unassigned
// appointment takes it: staffId and status are written together, and only
// if staffId is still unset when the write lands.
func (s *AppointmentService) Update(ctx context.Context, p Principal, id int64, patch models.AppointmentPatch) (models.Appointment, error) {
	if patch.Empty() {
		return models.Appointment{}, invalid("body", "at least one of status, notes, followUpNeeded is required")
	}
	var status *models.Status
	if patch.Status != nil {
		st, ok := models.ParseStatus(*patch.Status)
		if !ok {
			return models.Appointment{}, invalid("status", "must be one of PENDING, CONFIRMED, COMPLETED, CANCELLED, RESCHEDULED")
		}
		status = &st
	}

	u, err := s.caller(ctx, p)
	if err != nil {
		return models.Appointment{}, err
	}
	if status != nil && status.RequiresClinician() && u.Role != models.RoleAdmin && u.Role != models.RoleDentist {
		return models.Appointment{}, forbidden("Only admins and dentists can confirm or complete appointments")
	}

	current, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Appointment{}, notFound("Appointment not found")
		}
		return models.Appointment{}, fmt.Errorf("find appointment: %w", err)
	}
	if current.StaffID != nil && *current.StaffID != u.ID && u.Role != models.RoleAdmin {
		return models.Appointment{}, forbidden("This appointment is already assigned to another dentist")
	}
	if !visibleTo(current, u) {
		return models.Appointment{}, notFound("Appointment not found")
	}

	upd := store.AppointmentUpdate{
		Status:         status,
		Notes:          patch.Notes,
		FollowUpNeeded: patch.FollowUpNeeded,
	}
	taking := u.Role == models.RoleDentist && current.StaffID == nil &&
		status != nil && *status == models.StatusConfirmed
	switch {
	case taking:
		staffID := u.ID
		upd.AssignStaffID = &staffID
		upd.Guard = store.Guard{Kind: store.GuardUnassigned}
	case u.Role == models.RoleAdmin:
		upd.Guard = store.Guard{Kind: store.GuardNone}
	default:
		upd.Guard = store.Guard{Kind: store.GuardUnassignedOrOwner, OwnerID: u.ID}
	}

	updated, err := s.appointments.Update(ctx, id, upd)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.Appointment{}, notFound("Appointment not found")
	case errors.Is(err, store.ErrPreconditionFailed) && taking:
		return models.Appointment{}, conflict("This appointment was just taken by another dentist")
	case errors.Is(err, store.ErrPreconditionFailed):
		return models.Appointment{}, forbidden("This appointment is already assigned to another dentist")
	case err != nil:
		return models.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}

	fields := []zap.Field{
		zap.Int64("appointment_id", id),
		zap.Int64("by", u.ID),
		zap.String("role", u.Role.String()),
		zap.String("status", string(updated.Status)),
	}
	if taking {
		s.logger.Info("appointment taken", fields...)
	} else {
		s.logger.Info("appointment updated", fields...)
	}
	return updated, nil
}
