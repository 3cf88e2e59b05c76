package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/harentsoaR/dentist-booking/internal/store"
	"github.com/harentsoaR/dentist-booking/internal/utils"
)

// TokenService issues tokens carrying the role a user holds at issuance time.
type TokenService struct {
	users store.Users
	jwt   *utils.JWTManager
}

func NewTokenService(users store.Users, jwt *utils.JWTManager) *TokenService {
	return &TokenService{users: users, jwt: jwt}
}

func (s *TokenService) Issue(ctx context.Context, userID int64) (string, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFound("User not found")
		}
		return "", fmt.Errorf("load user %d: %w", userID, err)
	}
	return s.jwt.GenerateJWT(u.ID, u.Role)
}

// Verify checks signature and expiry. Failures wrap utils.ErrInvalidToken.
func (s *TokenService) Verify(token string) (Principal, error) {
	claims, err := s.jwt.ValidateJWT(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}
