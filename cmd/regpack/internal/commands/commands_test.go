package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-regpack/internal/config"
	"github.com/sirosfoundation/go-regpack/internal/testpki"
	"github.com/sirosfoundation/go-regpack/pkg/failure"
	"github.com/sirosfoundation/go-regpack/pkg/regpack"
)

const document = `<declaracion xmlns="urn:example:dgoj"><periodo>2026-09</periodo></declaracion>`

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr := stdout, stderr
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })
	return &out, &errOut
}

func writeFixture(t *testing.T, archivePassword string) (dir, cfgPath, docPath string) {
	t.Helper()
	dir = t.TempDir()
	id := testpki.MustRSA("cli signer")

	certPath := filepath.Join(dir, "signer.crt")
	keyPath := filepath.Join(dir, "signer.key")
	docPath = filepath.Join(dir, "document.xml")
	cfgPath = filepath.Join(dir, "regpack.yaml")

	require.NoError(t, os.WriteFile(certPath, []byte(id.CertificatePEM()), 0o600))
	require.NoError(t, os.WriteFile(keyPath, []byte(id.EncryptedPKCS8PEM("key$secret")), 0o600))
	require.NoError(t, os.WriteFile(docPath, []byte(document), 0o600))

	t.Setenv("REGPACK_CLI_ZIP_PASSWORD", archivePassword)
	cfg := "credentials:\n" +
		"  certificate:\n    path: " + certPath + "\n" +
		"  privateKey:\n    path: " + keyPath + "\n    password: key$secret\n" +
		"archive:\n  password: ${REGPACK_CLI_ZIP_PASSWORD}\n  filename: declaracion.xml\n" +
		"logging:\n  format: json\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return dir, cfgPath, docPath
}

func TestPackAndInspect(t *testing.T) {
	out, _ := captureOutput(t)
	dir, cfgPath, docPath := writeFixture(t, "Tr0ub4dor&3#Correct")
	archivePath := filepath.Join(dir, "out.zip")

	pack := &PackCmd{Config: cfgPath, In: docPath, Out: archivePath, Method: "enveloping"}
	require.NoError(t, pack.Run(context.Background(), &Globals{Version: "test"}))

	var attrs map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &attrs))
	assert.Equal(t, "application/zip", attrs["mime.type"])
	assert.Equal(t, "true", attrs["dgoj.signed"])
	assert.Equal(t, "true", attrs["dgoj.encrypted"])
	assert.Equal(t, "enveloping", attrs["dgoj.signature.method"])

	out.Reset()
	extract := t.TempDir()
	inspect := &InspectCmd{Password: "Tr0ub4dor&3#Correct", Extract: extract, Archive: archivePath}
	require.NoError(t, inspect.Run(context.Background(), &Globals{}))

	var report []inspection
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report, 1)
	assert.Equal(t, "declaracion.xml", report[0].Entry)
	assert.Equal(t, "enveloping", report[0].Packaging)
	assert.Equal(t, "CN=cli signer,O=SIROS Foundation Test,C=SE", report[0].SignerSubject)
	assert.True(t, report[0].Verified)

	extracted, err := os.ReadFile(filepath.Join(extract, "declaracion.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(extracted), "<periodo>2026-09</periodo>")
}

func TestPack_FailurePrintsErrorAttributes(t *testing.T) {
	out, _ := captureOutput(t)
	dir, cfgPath, docPath := writeFixture(t, "")
	archivePath := filepath.Join(dir, "out.zip")

	pack := &PackCmd{Config: cfgPath, In: docPath, Out: archivePath}
	err := pack.Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.InvalidPassword))

	var attrs map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &attrs))
	assert.Equal(t, "InvalidPassword", attrs["error.kind"])
	assert.NotEmpty(t, attrs["error.message"])

	_, statErr := os.Stat(archivePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInspect_WrongPassword(t *testing.T) {
	captureOutput(t)
	dir, cfgPath, docPath := writeFixture(t, "right")
	archivePath := filepath.Join(dir, "out.zip")
	require.NoError(t, (&PackCmd{Config: cfgPath, In: docPath, Out: archivePath}).Run(context.Background(), &Globals{}))

	err := (&InspectCmd{Password: "wrong", Archive: archivePath}).Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.InvalidPassword))
}

func TestAudit_RequiresStore(t *testing.T) {
	captureOutput(t)
	_, cfgPath, _ := writeFixture(t, "pw")

	err := (&AuditCmd{Config: cfgPath, Limit: 20}).Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit.mongodb.uri")
}

func TestAuditCmd_Filter(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	f := (&AuditCmd{Limit: 5}).filter(now)
	assert.Empty(t, f.Status)
	assert.Nil(t, f.Since)
	assert.Equal(t, 5, f.Limit)

	f = (&AuditCmd{Kind: "MalformedPem", Since: time.Hour}).filter(now)
	assert.Equal(t, regpack.StageFailed, f.Status)
	assert.Equal(t, failure.MalformedPem, f.FailureKind)
	require.NotNil(t, f.Since)
	assert.Equal(t, now.Add(-time.Hour), *f.Since)
}

func TestNewLogger(t *testing.T) {
	_, errOut := captureOutput(t)

	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, false)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, errOut.String(), "hidden")
	assert.Contains(t, errOut.String(), `"message":"shown"`)

	errOut.Reset()
	logger = newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, true)
	logger.Debug().Msg("debug on")
	assert.Contains(t, errOut.String(), "debug on")
}
