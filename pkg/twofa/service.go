package twofa

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pquerna/otp/totp"

	apperrors "github.com/tendant/simple-finance/pkg/errors"
)

// TwoFactorService is implemented by TwoFactorManager and NoOpTwoFactorManager.
type TwoFactorService interface {
	GenerateSecret(label string) (*SecretSetup, error)
	VerifyTOTP(secret, token string) bool
	CheckTOTP(secret, token string) VerifyResult
	GenerateBackupCodes() ([]string, error)

	BeginSetup(ctx context.Context, userID uuid.UUID) (*SecretSetup, error)
	EnableTwoFactor(ctx context.Context, userID uuid.UUID, secret, token string, backupCodes []string) (UserSummary, error)
	DisableTwoFactor(ctx context.Context, userID uuid.UUID) (UserSummary, error)
	RegenerateBackupCodes(ctx context.Context, userID uuid.UUID) ([]string, error)
	ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	VerifyStoredTOTP(ctx context.Context, userID uuid.UUID, token string) (VerifyResult, error)
	VerifyLogin(ctx context.Context, userID uuid.UUID, code string) (LoginVerification, error)
	GetStatus(ctx context.Context, userID uuid.UUID) (Status, error)
}

// TwoFactorManager owns the 2FA lifecycle of a user: setup, enable,
// verification, backup codes and disable. It returns typed errors and
// never logs.
type TwoFactorManager struct {
	repo   UserTwoFactorRepository
	issuer string
	qrSize int
	rand   io.Reader
	now    func() time.Time
}

type Option func(*TwoFactorManager)

func WithIssuer(issuer string) Option {
	return func(m *TwoFactorManager) {
		if issuer != "" {
			m.issuer = issuer
		}
	}
}

func WithQRSize(size int) Option {
	return func(m *TwoFactorManager) {
		if size > 0 {
			m.qrSize = size
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *TwoFactorManager) {
		m.now = now
	}
}

// WithRandReader replaces crypto/rand as the source for secrets.
func WithRandReader(r io.Reader) Option {
	return func(m *TwoFactorManager) {
		m.rand = r
	}
}

func NewTwoFactorManager(repo UserTwoFactorRepository, opts ...Option) *TwoFactorManager {
	m := &TwoFactorManager{
		repo:   repo,
		issuer: DefaultIssuer,
		qrSize: DefaultQRSize,
		rand:   rand.Reader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateSecret creates a fresh secret and its enrollment material for
// label. Nothing is persisted.
func (m *TwoFactorManager) GenerateSecret(label string) (*SecretSetup, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperrors.InvalidInput("label", "must not be empty")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: label,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      Digits,
		Algorithm:   Algorithm,
		Rand:        m.rand,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, ErrSecretGeneration.Code, ErrSecretGeneration.Message)
	}

	secret := key.Secret()
	uri := EnrollmentURI(m.issuer, label, secret)
	qr, err := renderQRCode(uri, m.qrSize)
	if err != nil {
		return nil, apperrors.Wrap(err, ErrSecretGeneration.Code, ErrSecretGeneration.Message)
	}

	return &SecretSetup{
		Secret:         secret,
		QRCodeDataURI:  qr,
		ManualEntryKey: secret,
		EnrollmentURI:  uri,
	}, nil
}

func (m *TwoFactorManager) VerifyTOTP(secret, token string) bool {
	return m.CheckTOTP(secret, token) == VerifyValid
}

func (m *TwoFactorManager) CheckTOTP(secret, token string) VerifyResult {
	return checkTOTP(secret, token, m.now())
}

func (m *TwoFactorManager) GenerateBackupCodes() ([]string, error) {
	codes, err := GenerateBackupCodes()
	if err != nil {
		return nil, apperrors.Wrap(err, ErrSecretGeneration.Code, "failed to generate backup codes")
	}
	return codes, nil
}

// BeginSetup starts enrollment for an existing user who does not have 2FA yet.
func (m *TwoFactorManager) BeginSetup(ctx context.Context, userID uuid.UUID) (*SecretSetup, error) {
	user, err := m.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrAlreadyEnabled
	}
	return m.GenerateSecret(user.Email)
}

// EnableTwoFactor commits a provisional secret once token proves the client
// holds it. The enabled flag is not checked first, so of two concurrent
// enrollments the last to verify wins.
func (m *TwoFactorManager) EnableTwoFactor(ctx context.Context, userID uuid.UUID, secret, token string, backupCodes []string) (UserSummary, error) {
	if !m.VerifyTOTP(secret, token) {
		return UserSummary{}, ErrInvalidCode
	}
	if len(backupCodes) == 0 {
		return UserSummary{}, apperrors.InvalidInput("backup codes", "must not be empty")
	}

	user, err := m.getUser(ctx, userID)
	if err != nil {
		return UserSummary{}, err
	}

	serialized, err := SerializeBackupCodes(backupCodes)
	if err != nil {
		return UserSummary{}, apperrors.InternalWrap(err, "failed to serialize backup codes")
	}

	err = m.repo.UpdateTwoFactor(ctx, userID, TwoFactorUpdate{
		Enabled:     true,
		Secret:      &secret,
		BackupCodes: &serialized,
	})
	if err != nil {
		return UserSummary{}, m.storeError(err, "failed to enable two-factor authentication")
	}

	user.TwoFactorEnabled = true
	return summarize(user)
}

// DisableTwoFactor clears the flag, secret and codes. Disabling twice fails
// the second time with ErrNotEnabled.
func (m *TwoFactorManager) DisableTwoFactor(ctx context.Context, userID uuid.UUID) (UserSummary, error) {
	user, err := m.getUser(ctx, userID)
	if err != nil {
		return UserSummary{}, err
	}
	if !user.TwoFactorEnabled {
		return UserSummary{}, ErrNotEnabled
	}

	if err := m.repo.UpdateTwoFactor(ctx, userID, TwoFactorUpdate{}); err != nil {
		return UserSummary{}, m.storeError(err, "failed to disable two-factor authentication")
	}

	user.TwoFactorEnabled = false
	return summarize(user)
}

// RegenerateBackupCodes replaces the whole list with a new batch.
func (m *TwoFactorManager) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	user, err := m.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrNotEnabled
	}

	codes, err := m.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	serialized, err := SerializeBackupCodes(codes)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to serialize backup codes")
	}

	replaced, err := m.repo.ReplaceBackupCodes(ctx, userID, serialized)
	if err != nil {
		return nil, m.storeError(err, "failed to store backup codes")
	}
	if !replaced {
		// disabled between the read and the write
		return nil, ErrNotEnabled
	}
	return codes, nil
}

// ConsumeBackupCode spends code for the user. It reports false for an
// unknown or already used code; a code can be spent once even under
// concurrent requests.
func (m *TwoFactorManager) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	normalized := NormalizeBackupCode(code)
	if !isBackupCodeShape(normalized) {
		return false, nil
	}
	removed, err := m.repo.RemoveBackupCodeIfPresent(ctx, userID, normalized)
	if err != nil {
		return false, m.storeError(err, "failed to consume backup code")
	}
	return removed, nil
}

// VerifyStoredTOTP checks token against the user's persisted secret.
func (m *TwoFactorManager) VerifyStoredTOTP(ctx context.Context, userID uuid.UUID, token string) (VerifyResult, error) {
	user, err := m.getUser(ctx, userID)
	if err != nil {
		return VerifyInvalid, err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return VerifyInvalid, ErrNotEnabled
	}
	return m.CheckTOTP(*user.TwoFactorSecret, token), nil
}

// VerifyLogin checks a second-factor code at sign in. Six digits are tried
// as a TOTP; anything else as a backup code, which is consumed on success.
// Every rejection is ErrInvalidCode.
func (m *TwoFactorManager) VerifyLogin(ctx context.Context, userID uuid.UUID, code string) (LoginVerification, error) {
	code = strings.TrimSpace(code)
	if isTOTPToken(code) {
		v := LoginVerification{Method: LoginMethodTOTP}
		result, err := m.VerifyStoredTOTP(ctx, userID, code)
		v.Result = result
		if err != nil {
			return v, err
		}
		if result != VerifyValid {
			return v, ErrInvalidCode
		}
		return v, nil
	}

	v := LoginVerification{Method: LoginMethodBackupCode, Result: VerifyMalformed}
	user, err := m.getUser(ctx, userID)
	if err != nil {
		return v, err
	}
	if !user.TwoFactorEnabled {
		return v, ErrNotEnabled
	}
	if !isBackupCodeShape(NormalizeBackupCode(code)) {
		return v, ErrInvalidCode
	}

	ok, err := m.ConsumeBackupCode(ctx, userID, code)
	if err != nil {
		v.Result = VerifyInvalid
		return v, err
	}
	if !ok {
		v.Result = VerifyInvalid
		return v, ErrInvalidCode
	}
	v.Result = VerifyValid
	return v, nil
}

func (m *TwoFactorManager) GetStatus(ctx context.Context, userID uuid.UUID) (Status, error) {
	user, err := m.getUser(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Enabled:              user.TwoFactorEnabled,
		BackupCodesRemaining: GetBackupCodesCount(user.TwoFactorBackupCodes),
		Email:                user.Email,
	}, nil
}

func (m *TwoFactorManager) getUser(ctx context.Context, userID uuid.UUID) (UserRecord, error) {
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return UserRecord{}, m.storeError(err, "failed to load user")
	}
	return user, nil
}

func (m *TwoFactorManager) storeError(err error, message string) error {
	if errors.Is(err, ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return apperrors.InternalWrap(err, message)
}

func summarize(user UserRecord) (UserSummary, error) {
	var summary UserSummary
	if err := copier.Copy(&summary, &user); err != nil {
		return UserSummary{}, apperrors.InternalWrap(err, "failed to build user summary")
	}
	return summary, nil
}
