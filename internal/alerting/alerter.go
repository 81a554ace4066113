// Package alerting notifies operators about parent-order executions.
package alerting

import (
	"context"
	"fmt"
	"strings"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields renders key/value pairs one per line. Non-string keys and a
// trailing key without value are skipped.
func FormatFields(fields ...any) string {
	var b strings.Builder
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s: %v", key, fields[i+1])
	}
	return b.String()
}

// AlertEvent is a pre-defined alert event type.
type AlertEvent string

const (
	// EventExecutionStarted is sent when a parent order starts.
	EventExecutionStarted AlertEvent = "execution_started"
	// EventExecutionCompleted is sent with the final report.
	EventExecutionCompleted AlertEvent = "execution_completed"
	// EventExecutionDegraded is sent when a report carries an error.
	EventExecutionDegraded AlertEvent = "execution_degraded"
	// EventLiquidationTriggered is sent when residual is handed to liquidation.
	EventLiquidationTriggered AlertEvent = "liquidation_triggered"
	// EventCollaboratorUnavailable is sent when the pricing service or the
	// provider fails fatally.
	EventCollaboratorUnavailable AlertEvent = "collaborator_unavailable"
	// EventProviderNotReady is sent when market data never arrives.
	EventProviderNotReady AlertEvent = "provider_not_ready"
	// EventConnectionLost is sent when the provider disconnects.
	EventConnectionLost AlertEvent = "connection_lost"
	// EventBotStarted is sent when the bot starts.
	EventBotStarted AlertEvent = "bot_started"
	// EventBotStopped is sent when the bot stops.
	EventBotStopped AlertEvent = "bot_stopped"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventCollaboratorUnavailable:
		return SeverityCritical
	case EventExecutionDegraded, EventProviderNotReady:
		return SeverityHigh
	case EventLiquidationTriggered, EventConnectionLost:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Notify sends event through a at the event's default severity. The event
// name is added to the fields.
func Notify(ctx context.Context, a Alerter, event AlertEvent, message string, fields ...any) error {
	if a == nil {
		return nil
	}
	return a.Alert(ctx, EventSeverity(event), message, append([]any{"event", string(event)}, fields...)...)
}
