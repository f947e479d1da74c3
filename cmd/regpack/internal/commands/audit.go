package commands

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-regpack/internal/audit"
	"github.com/sirosfoundation/go-regpack/internal/config"
	"github.com/sirosfoundation/go-regpack/pkg/failure"
	"github.com/sirosfoundation/go-regpack/pkg/regpack"
)

type AuditCmd struct {
	Config string        `help:"Configuration file" type:"existingfile" required:""`
	Failed bool          `help:"Only list failed invocations"`
	Kind   string        `help:"Only list failures of this kind"`
	Since  time.Duration `help:"Only list invocations newer than this" default:"0"`
	Limit  int           `help:"Maximum number of records" default:"20"`
}

func (a *AuditCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := config.Load(a.Config)
	if err != nil {
		return err
	}
	if !cfg.Audit.Enabled() {
		return errors.New("audit.mongodb.uri is not configured")
	}

	store, err := openAuditStore(ctx, cfg.Audit)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))

	records, err := store.List(ctx, a.filter(time.Now()))
	if err != nil {
		return err
	}
	if records == nil {
		records = []*audit.Record{}
	}
	return printJSON(records)
}

func (a *AuditCmd) filter(now time.Time) *audit.Filter {
	f := &audit.Filter{
		FailureKind: failure.Kind(a.Kind),
		Limit:       a.Limit,
	}
	if a.Failed || a.Kind != "" {
		f.Status = regpack.StageFailed
	}
	if a.Since > 0 {
		since := now.Add(-a.Since)
		f.Since = &since
	}
	return f
}
