package config

// TwoFAConfig holds the settings of the two-factor authentication service
type TwoFAConfig struct {
	Enabled     bool   `env:"TWOFA_ENABLED" env-default:"true"`
	Issuer      string `env:"TWOFA_ISSUER" env-default:"Finance Tracker"`
	QRSize      int    `env:"TWOFA_QR_SIZE" env-default:"200"`
	Persistence string `env:"TWOFA_PERSISTENCE" env-default:"postgres"`
	DataDir     string `env:"TWOFA_DATA_DIR" env-default:"./data"`
}

// PersistenceTypes lists the supported record stores
var PersistenceTypes = []string{"postgres", "redis", "file", "memory"}

func (c TwoFAConfig) Validate() error {
	return Validate(func() ValidationErrors {
		errs := CollectErrors(
			RequireNonEmpty("TWOFA_ISSUER", c.Issuer),
			RequireInRange("TWOFA_QR_SIZE", c.QRSize, 64, 1024),
			RequireOneOf("TWOFA_PERSISTENCE", c.Persistence, PersistenceTypes),
		)
		if c.Persistence == "file" {
			errs = append(errs, CollectErrors(RequireNonEmpty("TWOFA_DATA_DIR", c.DataDir))...)
		}
		return errs
	})
}

// DevJwtSecret is the JWT_SECRET default. It is refused in production.
const DevJwtSecret = "very-secure-jwt-secret-for-dev-only"

// JwtConfig holds the shared secret used to verify access tokens
type JwtConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret-for-dev-only"`
}

func (c JwtConfig) Validate() error {
	return Validate(func() ValidationErrors {
		errs := CollectErrors(RequireMinLength("JWT_SECRET", c.JwtSecret, 32))
		if IsProduction() && c.JwtSecret == DevJwtSecret {
			errs = append(errs, ValidationError{
				Field:   "JWT_SECRET",
				Message: "must be set in production",
			})
		}
		return errs
	})
}
