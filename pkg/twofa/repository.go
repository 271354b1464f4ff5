package twofa

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned by repositories when no user has the given id.
var ErrRecordNotFound = errors.New("user record not found")

// UserTwoFactorRepository persists the 2FA fields of a user record.
type UserTwoFactorRepository interface {
	GetUser(ctx context.Context, userID uuid.UUID) (UserRecord, error)

	// UpdateTwoFactor writes enabled, secret and backup codes in one update.
	UpdateTwoFactor(ctx context.Context, userID uuid.UUID, update TwoFactorUpdate) error

	// ReplaceBackupCodes overwrites the stored list only while 2FA is enabled.
	// It reports false when the record exists but 2FA is off.
	ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codes string) (bool, error)

	// RemoveBackupCodeIfPresent removes code from the stored list and reports
	// whether it was there. Concurrent calls with the same code succeed at
	// most once.
	RemoveBackupCodeIfPresent(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}

// removeCode applies a consumption to a record in memory. Callers hold
// whatever lock makes the read-modify-write atomic.
func removeCode(rec *UserRecord, code string) (bool, error) {
	res := VerifyAndConsumeBackupCode(rec.TwoFactorBackupCodes, code)
	if !res.IsValid {
		return false, nil
	}
	serialized, err := SerializeBackupCodes(res.UpdatedCodes)
	if err != nil {
		return false, err
	}
	rec.TwoFactorBackupCodes = &serialized
	return true, nil
}

func applyUpdate(rec *UserRecord, update TwoFactorUpdate) {
	rec.TwoFactorEnabled = update.Enabled
	rec.TwoFactorSecret = cloneString(update.Secret)
	rec.TwoFactorBackupCodes = cloneString(update.BackupCodes)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneRecord(rec UserRecord) UserRecord {
	rec.TwoFactorSecret = cloneString(rec.TwoFactorSecret)
	rec.TwoFactorBackupCodes = cloneString(rec.TwoFactorBackupCodes)
	return rec
}
