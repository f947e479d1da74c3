package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/sirosfoundation/go-regpack/cmd/regpack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Pack    commands.PackCmd    `cmd:"" help:"Sign an XML document and pack it into an encrypted archive"`
		Inspect commands.InspectCmd `cmd:"" help:"Open an archive and verify the signed document"`
		Audit   commands.AuditCmd   `cmd:"" help:"List recorded invocations"`
		Debug   bool                `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("regpack"),
		kong.Description("XAdES signer and encrypted archive packager"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
