package services

import "github.com/harentsoaR/dentist-booking/internal/models"

// Principal is the verified identity behind a request.
type Principal struct {
	UserID int64
	Role   models.Role
}
