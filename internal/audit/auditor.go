package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sirosfoundation/go-regpack/pkg/regpack"
)

// Auditor saves a record for every outcome it observes. Store errors are
// logged and never change the outcome.
type Auditor struct {
	store   Store
	logger  zerolog.Logger
	now     func() time.Time
	timeout time.Duration
}

// AuditorOption configures an Auditor
type AuditorOption func(*Auditor)

// WithLogger sets the logger used for store errors
func WithLogger(logger zerolog.Logger) AuditorOption {
	return func(a *Auditor) {
		a.logger = logger
	}
}

// WithClock sets the time source of RecordedAt
func WithClock(now func() time.Time) AuditorOption {
	return func(a *Auditor) {
		a.now = now
	}
}

// WithTimeout bounds each Save call
func WithTimeout(d time.Duration) AuditorOption {
	return func(a *Auditor) {
		a.timeout = d
	}
}

// NewAuditor creates an auditor writing to store
func NewAuditor(store Store, opts ...AuditorOption) *Auditor {
	a := &Auditor{
		store:   store,
		logger:  log.Logger,
		now:     time.Now,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Observe implements regpack.Observer
func (a *Auditor) Observe(ctx context.Context, outcome *regpack.Outcome) {
	record := NewRecord(outcome, a.now())

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	if err := a.store.Save(ctx, record); err != nil {
		a.logger.Error().
			Err(err).
			Str("invocation_id", record.ID).
			Msg("saving audit record")
		return
	}
	a.logger.Debug().Str("invocation_id", record.ID).Msg("audit record saved")
}
