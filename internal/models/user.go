package models

import (
	"strings"
	"time"
)

// Role is the access level of a staff account.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDentist Role = "DENTIST"
	RoleStaff   Role = "STAFF"
	RolePatient Role = "PATIENT"
)

// ParseRole normalizes a role name and reports whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleDentist, RoleStaff, RolePatient:
		return r, true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

type User struct {
	ID        int64     `bson:"_id" db:"id" json:"id"`
	Email     string    `bson:"email" db:"email" json:"email"`
	Password  string    `bson:"password" db:"password" json:"-"` // bcrypt hash, never serialized
	FirstName string    `bson:"firstName" db:"first_name" json:"firstName"`
	LastName  string    `bson:"lastName" db:"last_name" json:"lastName"`
	Role      Role      `bson:"role" db:"role" json:"role"`
	CreatedAt time.Time `bson:"createdAt" db:"created_at" json:"createdAt"`
}

// StaffSummary is the subset of a user joined onto an appointment.
type StaffSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// Summary projects the user onto the fields exposed next to an appointment.
func (u User) Summary() *StaffSummary {
	return &StaffSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Role: u.Role}
}
