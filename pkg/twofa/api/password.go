package api

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/tendant/simple-finance/pkg/errors"
	"github.com/tendant/simple-finance/pkg/twofa"
)

// PasswordChecker re-verifies the account password before a sensitive change.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, userID uuid.UUID, password string) error
}

var errInvalidPassword = apperrors.New(apperrors.ErrCodeInvalidCredentials, "invalid password")

// BcryptPasswordChecker compares against the bcrypt hash on the user record.
type BcryptPasswordChecker struct {
	repo twofa.UserTwoFactorRepository
}

func NewBcryptPasswordChecker(repo twofa.UserTwoFactorRepository) *BcryptPasswordChecker {
	return &BcryptPasswordChecker{repo: repo}
}

func (c *BcryptPasswordChecker) CheckPassword(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := c.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, twofa.ErrRecordNotFound) {
			return twofa.ErrUserNotFound
		}
		return apperrors.InternalWrap(err, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return errInvalidPassword
	}
	return nil
}
