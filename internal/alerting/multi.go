package alerting

import (
	"context"
	"log/slog"
	"sync"

	"go.uber.org/multierr"
)

// MultiAlerter fans an alert out to several channels concurrently.
type MultiAlerter struct {
	mu       sync.RWMutex
	alerters []Alerter
	logger   *slog.Logger
}

// NewMultiAlerter creates a new multi-channel alerter.
func NewMultiAlerter(logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAlerter{
		alerters: alerters,
		logger:   logger,
	}
}

// Name returns the name of the alerter.
func (m *MultiAlerter) Name() string {
	return "multi"
}

// AddAlerter adds a channel.
func (m *MultiAlerter) AddAlerter(alerter Alerter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerters = append(m.alerters, alerter)
}

// Len returns the number of channels.
func (m *MultiAlerter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerters)
}

// Alert sends to every channel and combines their errors.
func (m *MultiAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	m.mu.RLock()
	alerters := make([]Alerter, len(m.alerters))
	copy(alerters, m.alerters)
	m.mu.RUnlock()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		err   error
	)

	for _, alerter := range alerters {
		wg.Add(1)
		go func(a Alerter) {
			defer wg.Done()
			if aerr := a.Alert(ctx, severity, message, fields...); aerr != nil {
				m.logger.Error("alerter failed",
					"alerter", a.Name(),
					"severity", severity.String(),
					"err", aerr,
				)
				errMu.Lock()
				err = multierr.Append(err, aerr)
				errMu.Unlock()
			}
		}(alerter)
	}

	wg.Wait()
	return err
}

// AlertEvent sends an alert for a predefined event type.
func (m *MultiAlerter) AlertEvent(ctx context.Context, event AlertEvent, message string, fields ...any) error {
	return Notify(ctx, m, event, message, fields...)
}
