package notification

import (
	"context"
	"errors"
	"fmt"
)

// NotificationManager routes notices to the notifiers registered for each system.
// A manager with no notifiers accepts every notice and sends nothing.
type NotificationManager struct {
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

type NotificationManagerOption func(*NotificationManager) error

func NewNotificationManager(opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}
	return nm, nil
}

// WithSMTP registers an email notifier built from config.
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithTwoFactorTemplates registers the plain-text email notices for 2FA state changes.
func WithTwoFactorTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		for noticeType, tmpl := range twoFactorTemplates {
			if err := nm.RegisterNotification(noticeType, EmailSystem, tmpl); err != nil {
				return err
			}
		}
		return nil
	}
}

var twoFactorTemplates = map[NoticeType]NoticeTemplate{
	TwoFactorEnabledNotice: {
		Subject: "{{.Issuer}}: two-factor authentication enabled",
		Text:    "Two-factor authentication was enabled on your account at {{.Time}}.\nIf this was not you, contact support immediately.\n",
	},
	TwoFactorDisabledNotice: {
		Subject: "{{.Issuer}}: two-factor authentication disabled",
		Text:    "Two-factor authentication was disabled on your account at {{.Time}}.\nIf this was not you, change your password and contact support.\n",
	},
	BackupCodesRegeneratedNotice: {
		Subject: "{{.Issuer}}: new backup codes generated",
		Text:    "A new set of backup codes was generated at {{.Time}}. Your previous codes no longer work.\n",
	},
	BackupCodeUsedNotice: {
		Subject: "{{.Issuer}}: backup code used to sign in",
		Text:    "A backup code was used to sign in at {{.Time}}. {{.Remaining}} backup codes remain.\n",
	},
}

func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Subject == "" && template.Text == "" {
		return fmt.Errorf("invalid input: template for %s has neither subject nor text", noticeType)
	}

	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers the notice through every registered notifier that has a template for it.
func (nm *NotificationManager) Send(ctx context.Context, noticeType NoticeType, notification NotificationData) error {
	templates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		if len(nm.notifiers) == 0 {
			return nil
		}
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}

	var errs []error
	for system, notifier := range nm.notifiers {
		tmpl, ok := templates[system]
		if !ok {
			continue
		}
		if err := notifier.Send(ctx, noticeType, notification, tmpl); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", system, err))
		}
	}
	return errors.Join(errs...)
}
