package notification

import "context"

// NoticeType identifies a security notice sent to an account owner.
type NoticeType string

const (
	TwoFactorEnabledNotice       NoticeType = "twofa_enabled"
	TwoFactorDisabledNotice      NoticeType = "twofa_disabled"
	BackupCodesRegeneratedNotice NoticeType = "twofa_backup_codes_regenerated"
	BackupCodeUsedNotice         NoticeType = "twofa_backup_code_used"
)

// NotificationSystem is a delivery channel.
type NotificationSystem string

const (
	EmailSystem NotificationSystem = "email"
)

type NotificationData struct {
	To   string            // Recipient address
	Data map[string]string // Values substituted into the notice template
}

// NoticeTemplate holds the text/template sources for one notice on one system.
type NoticeTemplate struct {
	Subject string
	Text    string
}

type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
