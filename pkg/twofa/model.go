package twofa

import (
	"github.com/google/uuid"

	apperrors "github.com/tendant/simple-finance/pkg/errors"
)

// UserRecord is the part of the user aggregate 2FA reads and writes.
// TwoFactorBackupCodes holds the JSON array exactly as stored.
type UserRecord struct {
	ID                   uuid.UUID `json:"id"`
	Email                string    `json:"email"`
	PasswordHash         string    `json:"password_hash"`
	TwoFactorEnabled     bool      `json:"two_factor_enabled"`
	TwoFactorSecret      *string   `json:"two_factor_secret,omitempty"`
	TwoFactorBackupCodes *string   `json:"two_factor_backup_codes,omitempty"`
}

// UserSummary is what leaves the manager after a state change. It never
// carries the secret or the backup codes.
type UserSummary struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
}

// TwoFactorUpdate is written as a single update. Enabled implies Secret and
// BackupCodes are set; a disable clears all three.
type TwoFactorUpdate struct {
	Enabled     bool
	Secret      *string
	BackupCodes *string
}

type SecretSetup struct {
	Secret         string `json:"secret"`
	QRCodeDataURI  string `json:"qr_code_data_uri"`
	ManualEntryKey string `json:"manual_entry_key"`
	EnrollmentURI  string `json:"-"`
}

// Status is the 2FA state of a user. Email is the stored address security
// notices go to; it is not part of the API response.
type Status struct {
	Enabled              bool   `json:"enabled"`
	BackupCodesRemaining int    `json:"backup_codes_remaining"`
	Email                string `json:"-"`
}

type LoginMethod string

const (
	LoginMethodTOTP       LoginMethod = "totp"
	LoginMethodBackupCode LoginMethod = "backup_code"
)

// LoginVerification describes how a second-factor code was checked. Result
// is set even when VerifyLogin returns ErrInvalidCode.
type LoginVerification struct {
	Method LoginMethod
	Result VerifyResult
}

var (
	ErrAlreadyEnabled   = apperrors.New(apperrors.ErrCode2FAAlreadyEnabled, "two-factor authentication is already enabled")
	ErrNotEnabled       = apperrors.New(apperrors.ErrCode2FANotEnabled, "two-factor authentication is not enabled")
	ErrUserNotFound     = apperrors.New(apperrors.ErrCodeUserNotFound, "user not found")
	ErrInvalidCode      = apperrors.New(apperrors.ErrCode2FAInvalid, "invalid code")
	ErrSecretGeneration = apperrors.New(apperrors.ErrCode2FASecretGeneration, "failed to generate two-factor secret")
)
