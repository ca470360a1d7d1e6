package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	ActorID       string // who performed the action, when different from UserID
	ResourceID    string
	IPAddress     string
	Success       bool
	FailureReason string
}

// AuditLogger writes audit events to a structured logger
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	if event.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", event.ResourceID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAuthAttempt logs signup, login and session events
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log("auth", event)
}

// LogPasswordReset logs reset requests and redemptions
func (al *AuditLogger) LogPasswordReset(event AuditEvent) {
	al.log("password_reset", event)
}

// LogAdminAction logs actions taken through admin-only operations
func (al *AuditLogger) LogAdminAction(eventType, actorID, resourceID string) {
	al.log("admin", AuditEvent{
		EventType:  eventType,
		ActorID:    actorID,
		ResourceID: resourceID,
		Success:    true,
	})
}

// LogScanEvent logs scan lifecycle changes
func (al *AuditLogger) LogScanEvent(eventType, userID, scanID string) {
	al.log("scan", AuditEvent{
		EventType:  eventType,
		UserID:     userID,
		ResourceID: scanID,
		Success:    true,
	})
}
