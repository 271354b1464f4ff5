package notification

import (
	"context"
	"sync"
)

type SentNotification struct {
	Type     NoticeType
	Data     NotificationData
	Template NoticeTemplate
}

// MockNotifier records what it is asked to send.
type MockNotifier struct {
	mu   sync.Mutex
	sent []SentNotification
	Err  error
}

func (m *MockNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentNotification{Type: noticeType, Data: notification, Template: template})
	return m.Err
}

func (m *MockNotifier) Sent() []SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentNotification, len(m.sent))
	copy(out, m.sent)
	return out
}
