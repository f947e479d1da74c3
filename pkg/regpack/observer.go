package regpack

import "context"

// Observer is told about every finished invocation, successful or not. It
// must not retain Outcome.Archive.
type Observer interface {
	Observe(ctx context.Context, outcome *Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, outcome *Outcome)

// Observe implements Observer
func (f ObserverFunc) Observe(ctx context.Context, outcome *Outcome) {
	f(ctx, outcome)
}
