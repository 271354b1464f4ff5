// Package audit records security-relevant events for 2FA state changes and
// authenticated requests.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	TwoFactorSetupStarted  EventType = "twofa.setup_started"
	TwoFactorEnabled       EventType = "twofa.enabled"
	TwoFactorDisabled      EventType = "twofa.disabled"
	TwoFactorVerified      EventType = "twofa.verified"
	TwoFactorVerifyFailed  EventType = "twofa.verify_failed"
	BackupCodeConsumed     EventType = "twofa.backup_code_consumed"
	BackupCodesRegenerated EventType = "twofa.backup_codes_regenerated"
	RequestAudited         EventType = "http.request"
)

// Event is one audit record. Secrets and codes never appear in Metadata.
type Event struct {
	Type      EventType              `json:"type"`
	UserID    uuid.UUID              `json:"user_id"`
	URI       string                 `json:"uri,omitempty"`
	Method    string                 `json:"method,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// WithMetadata adds metadata to the audit event
func (e Event) WithMetadata(key string, value interface{}) Event {
	md := make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	e.Metadata = md
	return e
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}
