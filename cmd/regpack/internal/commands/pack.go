package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/sirosfoundation/go-regpack/internal/audit"
	"github.com/sirosfoundation/go-regpack/internal/audit/mongodb"
	"github.com/sirosfoundation/go-regpack/internal/config"
	"github.com/sirosfoundation/go-regpack/internal/telemetry"
	"github.com/sirosfoundation/go-regpack/pkg/regpack"
	"github.com/sirosfoundation/go-regpack/pkg/xades"
)

type PackCmd struct {
	Config string `help:"Configuration file" type:"existingfile" required:""`
	In     string `help:"XML document to sign" type:"existingfile" required:""`
	Out    string `help:"Where to write the encrypted archive" required:""`
	Method string `help:"Override signature.method (enveloped, enveloping)"`
}

func (p *PackCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := config.Load(p.Config)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, globals.Debug)

	opts := []regpack.Option{regpack.WithLogger(logger)}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, logger, cfg.Telemetry.ServiceName, globals.Version)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warn().Err(err).Msg("telemetry shutdown")
			}
		}()
	}

	if cfg.Audit.Enabled() {
		store, err := openAuditStore(ctx, cfg.Audit)
		if err != nil {
			return err
		}
		defer store.Close(context.WithoutCancel(ctx))
		opts = append(opts, regpack.WithObserver(audit.NewAuditor(store, audit.WithLogger(logger))))
	}

	document, err := os.ReadFile(p.In)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	req := cfg.Request(document)
	if p.Method != "" {
		req.Packaging = xades.Packaging(p.Method)
	}

	out := regpack.New(opts...).Process(ctx, req)
	if err := printJSON(out.Attributes()); err != nil {
		return err
	}
	if !out.OK() {
		return out.Err()
	}

	if err := os.WriteFile(p.Out, out.Archive, 0o600); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	logger.Info().
		Str("out", p.Out).
		Str("invocation_id", out.Metadata.InvocationID).
		Msg("archive written")
	return nil
}

func openAuditStore(ctx context.Context, cfg config.AuditConfig) (audit.Store, error) {
	store, err := mongodb.NewStore(ctx, &mongodb.Config{
		URI:        cfg.MongoDB.URI,
		Database:   cfg.MongoDB.Database,
		Collection: cfg.MongoDB.Collection,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audit store: %w", err)
	}
	return store, nil
}
