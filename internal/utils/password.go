package utils

import "golang.org/x/crypto/bcrypt"

// BcryptHasher hashes and compares passwords with bcrypt at a fixed cost.
type BcryptHasher struct{ Cost int }

// HashPassword hashes a given password using bcrypt.
func (b BcryptHasher) HashPassword(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain password with its hashed version.
func (b BcryptHasher) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
