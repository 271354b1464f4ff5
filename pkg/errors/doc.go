// Package errors provides structured error handling with error codes for simple-finance.
//
// Errors carry a typed code, a client-safe message and an optional wrapped cause.
// The code drives the HTTP status mapping, so handlers never need to inspect
// message text.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-finance/pkg/errors"
//
//	err := errors.New(errors.ErrCode2FANotEnabled, "two-factor authentication is not enabled")
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to load user")
//	err := errors.InvalidInput("token", "must be 6 digits")
//
// # Error Inspection
//
//	if errors.IsCode(err, errors.ErrCodeUserNotFound) {
//		// Handle not found case
//	}
//
// Two *Error values with the same code match under the standard library's
// errors.Is, so package-level sentinels can be compared against wrapped
// copies:
//
//	var ErrNotEnabled = errors.New(errors.ErrCode2FANotEnabled, "not enabled")
//	stdErrors.Is(errors.Wrap(cause, errors.ErrCode2FANotEnabled, "..."), ErrNotEnabled) // true
//
// # HTTP Status Code Mapping
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//	http.Error(w, errors.PublicMessage(err), status)
//
// Error code to HTTP status mapping:
//   - ErrCodeInvalidInput, ErrCode2FAAlreadyEnabled, ErrCode2FANotEnabled → 400
//   - ErrCodeUnauthorized, ErrCodeInvalidCredentials, ErrCode2FAInvalid → 401
//   - ErrCodeForbidden → 403
//   - ErrCodeNotFound, ErrCodeUserNotFound → 404
//   - ErrCodeInternal, ErrCode2FASecretGeneration → 500
package errors
