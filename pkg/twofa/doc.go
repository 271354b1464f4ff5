// Package twofa implements TOTP two-factor authentication for simple-finance.
//
// A user enrolls in two steps. BeginSetup (or GenerateSecret) returns a new
// base32 secret with its otpauth:// enrollment URI rendered as a QR code;
// nothing is stored. EnableTwoFactor then checks a code from the
// authenticator app and persists the flag, the secret and a batch of
// backup codes in one write. Abandoned setups leave no trace.
//
// TOTP codes are 6 digits, SHA1, 30 second period, and one step of clock
// drift is accepted either way. Backup codes are 8 characters from A-Z0-9,
// stored as a JSON array of uppercase strings, and each can be spent once.
//
// # Basic Usage
//
//	repo := twofa.NewPostgresUserRepository(pool)
//	manager := twofa.NewTwoFactorManager(repo, twofa.WithIssuer("Finance Tracker"))
//
//	setup, err := manager.BeginSetup(ctx, userID)
//	// show setup.QRCodeDataURI, keep setup.Secret on the client
//
//	codes, _ := manager.GenerateBackupCodes()
//	summary, err := manager.EnableTwoFactor(ctx, userID, setup.Secret, token, codes)
//
//	// at sign in: a TOTP code or a backup code
//	v, err := manager.VerifyLogin(ctx, userID, code)
//
// # Backup code consumption
//
// VerifyAndConsumeBackupCode works on a stored list the caller already holds
// and leaves persistence to the caller, so it cannot stop two requests from
// spending the same code. ConsumeBackupCode goes through
// UserTwoFactorRepository.RemoveBackupCodeIfPresent, which each repository
// makes atomic: a row lock in Postgres, WATCH/MULTI in Redis, a mutex for
// the file and memory stores.
//
// # Errors
//
// Failures are *errors.Error values from pkg/errors. Compare with errors.Is
// against ErrAlreadyEnabled, ErrNotEnabled, ErrUserNotFound, ErrInvalidCode
// and ErrSecretGeneration. Verification never says why a code was rejected.
package twofa
