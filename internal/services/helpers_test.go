package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store/memory"
	"github.com/harentsoaR/dentist-booking/internal/utils"
)

type fixture struct {
	store        *memory.Storage
	hasher       utils.BcryptHasher
	tokens       *TokenService
	users        *UserService
	appointments *AppointmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	hasher := utils.BcryptHasher{Cost: bcrypt.MinCost}
	tokens := NewTokenService(st.Users(), utils.NewJWTManager("test-secret", time.Hour))
	return &fixture{
		store:        st,
		hasher:       hasher,
		tokens:       tokens,
		users:        NewUserService(st.Users(), tokens, hasher, zap.NewNop()),
		appointments: NewAppointmentService(st, zap.NewNop()),
	}
}

// seedUser stores an account with password "password123" and returns its principal.
func (f *fixture) seedUser(t *testing.T, email string, role models.Role) Principal {
	t.Helper()
	hash, err := f.hasher.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := f.store.Users().Create(context.Background(), models.User{
		Email:     email,
		Password:  hash,
		FirstName: "First",
		LastName:  "Last",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return Principal{UserID: u.ID, Role: u.Role}
}

func (f *fixture) book(t *testing.T, email string) models.Appointment {
	t.Helper()
	apt, err := f.appointments.Create(context.Background(), models.BookingRequest{
		FirstName:     "Pat",
		LastName:      "Ient",
		Email:         email,
		ProblemDesc:   "toothache",
		ScheduledDate: "2030-05-01T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return apt
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
