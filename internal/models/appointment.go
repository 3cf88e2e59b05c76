package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusConfirmed   Status = "CONFIRMED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusRescheduled Status = "RESCHEDULED"
)

// ParseStatus normalizes a status name and reports whether it is known.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled:
		return st, true
	}
	return "", false
}

// RequiresClinician reports whether moving to this status is reserved to ADMIN and DENTIST.
func (s Status) RequiresClinician() bool {
	return s == StatusConfirmed || s == StatusCompleted
}

// Closed reports whether the status belongs in the appointment history.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID             int64         `bson:"_id" json:"id"`
	PatientID      int64         `bson:"patientId" json:"patientId"`
	StaffID        *int64        `bson:"staffId" json:"staffId"`
	ScheduledDate  time.Time     `bson:"scheduledDate" json:"scheduledDate"`
	ProblemDesc    string        `bson:"problemDesc" json:"problemDesc"`
	Status         Status        `bson:"status" json:"status"`
	Notes          *string       `bson:"notes" json:"notes"`
	FollowUpNeeded *bool         `bson:"followUpNeeded" json:"followUpNeeded"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
	Patient        *Patient      `bson:"-" json:"patient,omitempty"`
	Staff          *StaffSummary `bson:"-" json:"staff,omitempty"`
}

// AssignedTo reports whether the appointment is held by the given staff member.
func (a Appointment) AssignedTo(userID int64) bool {
	return a.StaffID != nil && *a.StaffID == userID
}

// BookingRequest is the public booking payload.
type BookingRequest struct {
	FirstName     string `json:"firstName" binding:"required"`
	LastName      string `json:"lastName" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	ProblemDesc   string `json:"problemDesc" binding:"required"`
	ScheduledDate string `json:"scheduledDate" binding:"required"`
}

// AppointmentPatch carries the fields a caller asked to change; nil means untouched.
type AppointmentPatch struct {
	Status         *string `json:"status,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	FollowUpNeeded *bool   `json:"followUpNeeded,omitempty"`
}

// Empty reports whether the patch names no field at all.
func (p AppointmentPatch) Empty() bool {
	return p.Status == nil && p.Notes == nil && p.FollowUpNeeded == nil
}
