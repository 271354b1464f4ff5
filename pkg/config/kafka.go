package config

// KafkaConfig holds the settings for publishing 2FA audit events.
// Brokers empty means audit events are only logged.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_AUDIT_TOPIC" env-default:"finance.twofa.audit"`
}

// IsConfigured returns true if at least one broker is set
func (k KafkaConfig) IsConfigured() bool {
	return len(k.Brokers) > 0
}
