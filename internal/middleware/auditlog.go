// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/czhaoca/pathfinder-sub009/internal/audit"
	"github.com/czhaoca/pathfinder-sub009/internal/logging"
)

// EventLogger is the subset of the audit service the middleware needs.
type EventLogger interface {
	Log(ctx context.Context, raw *audit.RawEvent) (string, error)
}

const ActorIDKey contextKey = "actor_id"

// WithActorID stores the authenticated actor in the context so AuditTrail
// can attribute the request. Called by whatever layer authenticates the
// request upstream.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorIDKey, actorID)
}

// GetActorID extracts the authenticated actor from the context, or "".
func GetActorID(ctx context.Context) string {
	if id, ok := ctx.Value(ActorIDKey).(string); ok {
		return id
	}
	return ""
}

// AuditTrail records every completed request as an http_request audit
// event. Recording happens after the response is served; failures are
// logged and never affect the client.
func AuditTrail(svc EventLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			raw := &audit.RawEvent{
				Type:           audit.EventTypeHTTPRequest,
				Category:       "api",
				Severity:       severityForStatus(status),
				Name:           r.Method + " " + r.URL.Path,
				Action:         strings.ToLower(r.Method),
				Result:         resultForStatus(status),
				ActorID:        GetActorID(r.Context()),
				IPAddress:      clientIP(r),
				UserAgent:      r.UserAgent(),
				RequestID:      GetRequestID(r.Context()),
				HTTPMethod:     r.Method,
				HTTPPath:       r.URL.Path,
				HTTPStatusCode: status,
				CustomData: map[string]interface{}{
					"duration_ms": time.Since(start).Milliseconds(),
				},
			}

			// Detached context: the request context is canceled as soon as
			// the handler returns.
			if _, err := svc.Log(context.WithoutCancel(r.Context()), raw); err != nil {
				logging.Err(err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("failed to record request audit event")
			}
		})
	}
}

func severityForStatus(status int) audit.Severity {
	switch {
	case status >= 500:
		return audit.SeverityWarning
	default:
		return audit.SeverityInfo
	}
}

func resultForStatus(status int) audit.Result {
	switch {
	case status >= 500:
		return audit.ResultError
	case status >= 400:
		return audit.ResultFailure
	default:
		return audit.ResultSuccess
	}
}

// clientIP returns the originating address, honoring X-Forwarded-For and
// X-Real-IP set by a trusted proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
