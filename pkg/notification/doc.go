// Package notification sends account security notices.
//
// A NotificationManager keeps one Notifier per delivery system and one
// NoticeTemplate per notice type and system. Templates are text/template
// sources rendered against NotificationData.Data.
//
//	nm, err := notification.NewNotificationManager(
//		notification.WithSMTP(smtpConfig),
//		notification.WithTwoFactorTemplates(),
//	)
//	err = nm.Send(ctx, notification.TwoFactorEnabledNotice, notification.NotificationData{
//		To:   "a@b.com",
//		Data: map[string]string{"Issuer": "Finance Tracker", "Time": now},
//	})
package notification
