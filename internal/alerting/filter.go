package alerting

import "context"

// FilterAlerter drops event alerts whose event is not enabled. Alerts sent
// without an event field always pass.
type FilterAlerter struct {
	next    Alerter
	enabled func(event string) bool
}

// NewFilterAlerter wraps next so only enabled events reach it.
func NewFilterAlerter(next Alerter, enabled func(event string) bool) *FilterAlerter {
	return &FilterAlerter{next: next, enabled: enabled}
}

// Name returns the wrapped alerter's name.
func (f *FilterAlerter) Name() string {
	return f.next.Name()
}

// Alert forwards the alert if its event is enabled.
func (f *FilterAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	if len(fields) >= 2 && fields[0] == "event" {
		if event, ok := fields[1].(string); ok && !f.enabled(event) {
			return nil
		}
	}
	return f.next.Alert(ctx, severity, message, fields...)
}

// Ensure FilterAlerter implements Alerter
var _ Alerter = (*FilterAlerter)(nil)
