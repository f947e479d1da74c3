package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirosfoundation/go-regpack/pkg/archive"
	"github.com/sirosfoundation/go-regpack/pkg/xades"
)

type InspectCmd struct {
	Password string `help:"Archive password" env:"ZIP_PASSWORD" required:""`
	Extract  string `help:"Directory to write the verified entries to" type:"existingdir"`
	Archive  string `arg:"" help:"Archive to inspect" type:"existingfile"`
}

type inspection struct {
	Entry         string    `json:"entry"`
	Size          int       `json:"size"`
	Packaging     string    `json:"packaging"`
	SignerSubject string    `json:"signer_subject"`
	SignerSerial  string    `json:"signer_serial"`
	SigningTime   time.Time `json:"signing_time"`
	Verified      bool      `json:"verified"`
}

func (i *InspectCmd) Run(ctx context.Context, globals *Globals) error {
	data, err := os.ReadFile(i.Archive)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}

	entries, err := archive.Open(data, i.Password)
	if err != nil {
		return err
	}

	report := make([]inspection, 0, len(entries))
	for _, e := range entries {
		res, err := xades.Verify(e.Content)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Name, err)
		}
		report = append(report, inspection{
			Entry:         e.Name,
			Size:          len(e.Content),
			Packaging:     string(res.Packaging),
			SignerSubject: res.Certificate.Subject.String(),
			SignerSerial:  res.Certificate.SerialNumber.String(),
			SigningTime:   res.SigningTime,
			Verified:      true,
		})

		if i.Extract != "" {
			path := filepath.Join(i.Extract, filepath.Base(e.Name))
			if err := os.WriteFile(path, e.Content, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
		}
	}

	return printJSON(report)
}
