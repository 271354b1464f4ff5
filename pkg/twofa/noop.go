package twofa

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/tendant/simple-finance/pkg/errors"
)

// NoOpTwoFactorManager is used when 2FA is switched off for a deployment.
// Every state change fails, verification never succeeds and status reports
// 2FA as disabled.
type NoOpTwoFactorManager struct{}

var errNotConfigured = apperrors.New(apperrors.ErrCodeForbidden, "two-factor authentication not configured")

func NewNoOpTwoFactorManager() *NoOpTwoFactorManager {
	return &NoOpTwoFactorManager{}
}

func (n *NoOpTwoFactorManager) GenerateSecret(label string) (*SecretSetup, error) {
	return nil, errNotConfigured
}

func (n *NoOpTwoFactorManager) VerifyTOTP(secret, token string) bool {
	return false
}

func (n *NoOpTwoFactorManager) CheckTOTP(secret, token string) VerifyResult {
	return VerifyInvalid
}

func (n *NoOpTwoFactorManager) GenerateBackupCodes() ([]string, error) {
	return nil, errNotConfigured
}

func (n *NoOpTwoFactorManager) BeginSetup(ctx context.Context, userID uuid.UUID) (*SecretSetup, error) {
	return nil, errNotConfigured
}

func (n *NoOpTwoFactorManager) EnableTwoFactor(ctx context.Context, userID uuid.UUID, secret, token string, backupCodes []string) (UserSummary, error) {
	return UserSummary{}, errNotConfigured
}

func (n *NoOpTwoFactorManager) DisableTwoFactor(ctx context.Context, userID uuid.UUID) (UserSummary, error) {
	return UserSummary{}, errNotConfigured
}

func (n *NoOpTwoFactorManager) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return nil, errNotConfigured
}

func (n *NoOpTwoFactorManager) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	return false, nil
}

func (n *NoOpTwoFactorManager) VerifyStoredTOTP(ctx context.Context, userID uuid.UUID, token string) (VerifyResult, error) {
	return VerifyInvalid, errNotConfigured
}

func (n *NoOpTwoFactorManager) VerifyLogin(ctx context.Context, userID uuid.UUID, code string) (LoginVerification, error) {
	return LoginVerification{Result: VerifyInvalid}, errNotConfigured
}

func (n *NoOpTwoFactorManager) GetStatus(ctx context.Context, userID uuid.UUID) (Status, error) {
	return Status{}, nil
}

var (
	_ TwoFactorService = (*TwoFactorManager)(nil)
	_ TwoFactorService = (*NoOpTwoFactorManager)(nil)
)
