package twofa

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlzd/gotp"
)

// gotpAt generates a code with gotp, an implementation independent of the
// one used for validation. The timestamp parameter of (*gotp.TOTP).At is
// int in some releases and int64 in others.
func gotpAt[T int | int64](at func(T) string, t time.Time) string {
	return at(T(t.Unix()))
}

func codeAt(secret string, t time.Time) string {
	return gotpAt(gotp.NewDefaultTOTP(secret).At, t)
}

func TestEnrollmentURI(t *testing.T) {
	tests := []struct {
		name   string
		issuer string
		label  string
		want   string
	}{
		{
			name:   "issuer with space",
			issuer: "Finance Tracker",
			label:  "a@b.com",
			want:   "otpauth://totp/Finance%20Tracker:a@b.com?secret=JBSWY3DPEHPK3PXP&issuer=Finance%20Tracker",
		},
		{
			name:   "plain",
			issuer: "Acme",
			label:  "alice",
			want:   "otpauth://totp/Acme:alice?secret=JBSWY3DPEHPK3PXP&issuer=Acme",
		},
		{
			name:   "ampersand in issuer",
			issuer: "Smith & Co",
			label:  "a@b.com",
			want:   "otpauth://totp/Smith%20&%20Co:a@b.com?secret=JBSWY3DPEHPK3PXP&issuer=Smith%20%26%20Co",
		},
		{
			name:   "plus and equals in issuer",
			issuer: "A+B=C",
			label:  "a@b.com",
			want:   "otpauth://totp/A+B=C:a@b.com?secret=JBSWY3DPEHPK3PXP&issuer=A%2BB%3DC",
		},
		{
			name:   "colons are escaped",
			issuer: "Acme:Dev",
			label:  "bob:1",
			want:   "otpauth://totp/Acme%3ADev:bob%3A1?secret=JBSWY3DPEHPK3PXP&issuer=Acme%3ADev",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnrollmentURI(tt.issuer, tt.label, "JBSWY3DPEHPK3PXP"))
		})
	}
}

func TestEnrollmentURI_ParsedByAuthenticator(t *testing.T) {
	key, err := otp.NewKeyFromURL(EnrollmentURI("Smith & Co", "a@b.com", "JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	assert.Equal(t, "Smith & Co", key.Issuer())
	assert.Equal(t, "a@b.com", key.AccountName())
	assert.Equal(t, "JBSWY3DPEHPK3PXP", key.Secret())

	m := NewTwoFactorManager(NewInMemoryUserRepository(), WithIssuer("Smith & Co"))
	setup, err := m.GenerateSecret("a@b.com")
	require.NoError(t, err)
	key, err = otp.NewKeyFromURL(setup.EnrollmentURI)
	require.NoError(t, err)
	assert.Equal(t, "Smith & Co", key.Issuer())
}

func TestCheckTOTP_RFC6238Vectors(t *testing.T) {
	// "12345678901234567890" in base32, SHA1 vectors truncated to 6 digits.
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

	assert.Equal(t, VerifyValid, checkTOTP(secret, "287082", time.Unix(59, 0)))
	assert.Equal(t, VerifyValid, checkTOTP(secret, "081804", time.Unix(1111111109, 0)))
	assert.Equal(t, VerifyValid, checkTOTP(secret, "050471", time.Unix(1111111111, 0)))
	assert.Equal(t, VerifyValid, checkTOTP(secret, "005924", time.Unix(1234567890, 0)))
	assert.Equal(t, VerifyValid, checkTOTP(secret, "279037", time.Unix(2000000000, 0)))
}

func TestCheckTOTP_RoundTripAndDrift(t *testing.T) {
	m := NewTwoFactorManager(NewInMemoryUserRepository())
	setup, err := m.GenerateSecret("a@b.com")
	require.NoError(t, err)
	secret := setup.Secret

	now := time.Date(2026, 5, 1, 12, 0, 15, 0, time.UTC)

	assert.Equal(t, VerifyValid, checkTOTP(secret, codeAt(secret, now), now), "current step")
	assert.Equal(t, VerifyValid, checkTOTP(secret, codeAt(secret, now.Add(-30*time.Second)), now), "one step behind")
	assert.Equal(t, VerifyValid, checkTOTP(secret, codeAt(secret, now.Add(30*time.Second)), now), "one step ahead")
	assert.Equal(t, VerifyInvalid, checkTOTP(secret, codeAt(secret, now.Add(-90*time.Second)), now), "three steps behind")
}

func TestCheckTOTP_Malformed(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	now := time.Now()

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"empty token", secret, ""},
		{"too short", secret, "12345"},
		{"too long", secret, "1234567"},
		{"letters", secret, "12a456"},
		{"empty secret", "", "123456"},
		{"secret not base32", "not-base32!!", "123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, VerifyMalformed, checkTOTP(tt.secret, tt.token, now))
		})
	}
}

func TestVerifyTOTP_NeverErrors(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewTwoFactorManager(NewInMemoryUserRepository(), WithClock(func() time.Time { return now }))
	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

	assert.True(t, m.VerifyTOTP(secret, codeAt(secret, now)))
	assert.True(t, m.VerifyTOTP(secret, " "+codeAt(secret, now)+" "), "surrounding space is ignored")
	assert.False(t, m.VerifyTOTP(secret, "abcdef"))
	assert.False(t, m.VerifyTOTP("%%%", "123456"))
	assert.Equal(t, VerifyMalformed, m.CheckTOTP(secret, "abcdef"))
}

func TestGenerateSecret(t *testing.T) {
	m := NewTwoFactorManager(NewInMemoryUserRepository())

	setup, err := m.GenerateSecret("a@b.com")
	require.NoError(t, err)

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(setup.Secret)
	require.NoError(t, err)
	assert.Len(t, raw, SecretSize)
	assert.Equal(t, setup.Secret, setup.ManualEntryKey)
	assert.Equal(t,
		"otpauth://totp/Finance%20Tracker:a@b.com?secret="+setup.Secret+"&issuer=Finance%20Tracker",
		setup.EnrollmentURI)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(setup.QRCodeDataURI, prefix))
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(setup.QRCodeDataURI, prefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultQRSize, img.Bounds().Dx())
	assert.Equal(t, DefaultQRSize, img.Bounds().Dy())

	other, err := m.GenerateSecret("a@b.com")
	require.NoError(t, err)
	assert.NotEqual(t, setup.Secret, other.Secret)
}

func TestGenerateSecret_Options(t *testing.T) {
	m := NewTwoFactorManager(NewInMemoryUserRepository(), WithIssuer("Acme"), WithQRSize(128))

	setup, err := m.GenerateSecret("bob")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(setup.EnrollmentURI, "otpauth://totp/Acme:bob?secret="))

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(setup.QRCodeDataURI, "data:image/png;base64,"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestGenerateSecret_Failures(t *testing.T) {
	t.Run("empty label", func(t *testing.T) {
		m := NewTwoFactorManager(NewInMemoryUserRepository())
		_, err := m.GenerateSecret("  ")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSecretGeneration)
	})

	t.Run("random source fails", func(t *testing.T) {
		m := NewTwoFactorManager(NewInMemoryUserRepository(), WithRandReader(bytes.NewReader(nil)))
		_, err := m.GenerateSecret("a@b.com")
		assert.ErrorIs(t, err, ErrSecretGeneration)
	})
}
