package twofa

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultIssuer = "Finance Tracker"
	DefaultQRSize = 200

	// SecretSize is the number of random bytes behind a secret (160 bits).
	SecretSize = 20
	Period     = 30
	Skew       = 1
	Digits     = otp.DigitsSix
	Algorithm  = otp.AlgorithmSHA1
)

// VerifyResult distinguishes why a code was rejected. Callers outside the
// package only ever see a bool or ErrInvalidCode.
type VerifyResult int

const (
	VerifyInvalid VerifyResult = iota
	VerifyValid
	VerifyMalformed
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyValid:
		return "valid"
	case VerifyMalformed:
		return "malformed"
	default:
		return "invalid"
	}
}

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Skew:      Skew,
	Digits:    Digits,
	Algorithm: Algorithm,
}

// EnrollmentURI builds otpauth://totp/{issuer}:{label}?secret={secret}&issuer={issuer}.
// Spaces are written as %20 in both the path and the query.
func EnrollmentURI(issuer, label, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		escapeLabelPart(issuer), escapeLabelPart(label), secret, escapeQueryValue(issuer))
}

// escapeLabelPart escapes a path segment, including the ':' that separates
// issuer from account name.
func escapeLabelPart(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}

func escapeQueryValue(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// checkTOTP validates token against secret at time t, tolerating one step of drift.
func checkTOTP(secret, token string, t time.Time) VerifyResult {
	token = strings.TrimSpace(token)
	if strings.TrimSpace(secret) == "" || !isTOTPToken(token) {
		return VerifyMalformed
	}
	valid, err := totp.ValidateCustom(token, secret, t.UTC(), validateOpts)
	if err != nil {
		return VerifyMalformed
	}
	if valid {
		return VerifyValid
	}
	return VerifyInvalid
}

func isTOTPToken(token string) bool {
	if len(token) != int(Digits) {
		return false
	}
	for _, c := range token {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// renderQRCode encodes uri as a PNG data URI.
func renderQRCode(uri string, size int) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", fmt.Errorf("parse enrollment uri: %w", err)
	}
	img, err := key.Image(size, size)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
