package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/simple-finance/pkg/client"
)

// Middleware publishes one RequestAudited event per request. It must run
// after client.AuthUserMiddleware to attribute the request to a user.
type Middleware struct {
	publisher Publisher
	now       func() time.Time
}

func NewMiddleware(publisher Publisher) *Middleware {
	return &Middleware{publisher: publisher, now: time.Now}
}

func (m *Middleware) AuditAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := Event{
			Type:      RequestAudited,
			URI:       r.URL.Path,
			Method:    r.Method,
			Timestamp: m.now().UTC(),
		}
		if authUser, ok := client.GetAuthUser(r.Context()); ok {
			event.UserID = authUser.UserUuid
		} else {
			event.Message = "No jwt token"
		}

		// The request context is cancelled once the handler returns.
		go m.publish(context.WithoutCancel(r.Context()), event)

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) publish(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.publisher.Publish(ctx, event); err != nil {
		slog.Error("failed to publish audit event", "type", event.Type, "error", err)
	}
}
