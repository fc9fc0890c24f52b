package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hospital/hospital-backend/internal/platform/auth"
	"github.com/hospital/hospital-backend/internal/platform/telemetry"
)

const auditRecordTimeout = 2 * time.Second

// AuditEntry records who touched patient data, through which view, and with
// what outcome.
type AuditEntry struct {
	EventID    string    `json:"eventId"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"requestId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	UserRoles  []string  `json:"userRoles,omitempty"`
	View       string    `json:"view"`
	Action     string    `json:"action"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	StatusCode int       `json:"statusCode"`
}

// AuditRecorder persists audit entries somewhere durable. The middleware
// always logs; a recorder is optional.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit logs every request that reaches patient or admin data. It runs
// after the handler so the entry carries the final status and the identity
// the auth middleware attached.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !isAuditablePath(path) || c.Request().Method == http.MethodOptions {
				return next(c)
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			entry := AuditEntry{
				EventID:    uuid.NewString(),
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				View:       auditView(path),
				Action:     httpMethodToAction(req.Method),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				UserID:     auth.UserIDFromContext(req.Context()),
				UserRoles:  auth.RolesFromContext(req.Context()),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if recorder != nil {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), auditRecordTimeout)
				recErr := recorder.RecordAccess(ctx, entry)
				cancel()
				telemetry.RecordAuditEvent(recErr)
				if recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Str("event_id", entry.EventID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_access_audit").
				Str("event_id", entry.EventID).
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("view", entry.View).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return nil
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/patient/") ||
		strings.HasPrefix(path, "/me/") ||
		strings.HasPrefix(path, "/admin/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPut, http.MethodPatch, http.MethodPost:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// auditView names the data surface a path exposes:
//
//	/patient/me              -> patient_profile
//	/me/record               -> own_record
//	/admin/metrics/diseases  -> admin_metrics_diseases
func auditView(path string) string {
	switch {
	case strings.HasPrefix(path, "/patient/"):
		return "patient_profile"
	case strings.HasPrefix(path, "/me/"):
		return "own_record"
	case strings.HasPrefix(path, "/admin/metrics"):
		rest := strings.Trim(strings.TrimPrefix(path, "/admin/metrics"), "/")
		if rest == "" {
			return "admin_metrics"
		}
		return "admin_metrics_" + strings.ReplaceAll(rest, "/", "_")
	default:
		return "unknown"
	}
}
