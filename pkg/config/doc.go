// Package config provides configuration structs and validation for simple-finance.
//
// Every struct carries cleanenv tags, so a service loads its whole
// configuration with a single call:
//
//	type Config struct {
//		Database config.DatabaseConfig
//		TwoFA    config.TwoFAConfig
//	}
//
//	var cfg Config
//	if err := cleanenv.ReadEnv(&cfg); err != nil {
//		return err
//	}
//	if err := cfg.TwoFA.Validate(); err != nil {
//		return fmt.Errorf("invalid configuration: %w", err)
//	}
//
// Validation collects every problem instead of stopping at the first one:
//
//	err := config.Validate(func() config.ValidationErrors {
//		return config.CollectErrors(
//			config.RequireNonEmpty("host", c.Host),
//			config.RequireValidPort("port", c.Port),
//		)
//	})
//
// Never log secrets (JWT_SECRET, passwords) held by these structs.
package config
