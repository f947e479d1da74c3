// Package config handles configuration loading for the regpack command.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows the archive and key
// passwords to be injected at runtime. References to variables that are not
// set are kept verbatim, so a literal password containing '$' survives.
//
// # Configuration Sections
//
//   - credentials: signer certificate and private key (path or inline PEM)
//   - archive: archive password and entry name
//   - signature: packaging method (enveloped or enveloping)
//   - logging: level and output format
//   - audit: MongoDB outcome store
//   - telemetry: OpenTelemetry tracing
//
// # Example Configuration
//
//	credentials:
//	  certificate:
//	    path: /etc/regpack/signer.crt
//	  privateKey:
//	    path: /etc/regpack/signer.key
//	    password: ${KEY_PASSWORD}
//
//	archive:
//	  password: ${ZIP_PASSWORD}
//	  filename: enveloped.xml
//
//	signature:
//	  method: enveloping
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-regpack/pkg/credential"
	"github.com/sirosfoundation/go-regpack/pkg/regpack"
	"github.com/sirosfoundation/go-regpack/pkg/xades"
)

// Config is the root configuration structure
type Config struct {
	Credentials CredentialsConfig `yaml:"credentials"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Signature   SignatureConfig   `yaml:"signature"`
	Logging     LoggingConfig     `yaml:"logging"`
	Audit       AuditConfig       `yaml:"audit"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// CredentialsConfig holds the signer credentials
type CredentialsConfig struct {
	Certificate CredentialSource `yaml:"certificate"`
	PrivateKey  KeySource        `yaml:"privateKey"`
}

// CredentialSource names a PEM credential either by path or inline. When
// both are set the path wins.
type CredentialSource struct {
	Path string `yaml:"path"`
	PEM  string `yaml:"pem"`
}

// Reference converts the source to a credential reference
func (s CredentialSource) Reference() credential.Reference {
	return credential.Reference{Locator: s.Path, Inline: s.PEM}
}

// KeySource is a credential source with an optional password for encrypted
// PKCS#8 keys
type KeySource struct {
	CredentialSource `yaml:",inline"`
	Password         string `yaml:"password"`
}

// ArchiveConfig holds archive settings
type ArchiveConfig struct {
	Password string `yaml:"password"`
	Filename string `yaml:"filename"`
}

// SignatureConfig holds signature settings
type SignatureConfig struct {
	// Method is "enveloped" or "enveloping"
	Method string `yaml:"method"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuditConfig holds audit trail settings. Auditing is disabled when no
// MongoDB URI is configured.
type AuditConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Enabled reports whether an audit store is configured
func (c AuditConfig) Enabled() bool {
	return c.MongoDB.URI != ""
}

// TelemetryConfig holds tracing settings. The OTLP exporter reads its
// endpoint and headers from the standard OTEL_EXPORTER_OTLP_* variables.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnv replaces ${VAR} and $VAR with the value of set variables. Other
// references are left as written.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return ref
	})
}

func (c *Config) applyDefaults() {
	if c.Archive.Filename == "" {
		c.Archive.Filename = regpack.DefaultEntryName
	}
	if c.Signature.Method == "" {
		c.Signature.Method = string(xades.DefaultPackaging)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Audit.MongoDB.Database == "" {
		c.Audit.MongoDB.Database = "regpack"
	}
	if c.Audit.MongoDB.Collection == "" {
		c.Audit.MongoDB.Collection = "outcomes"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "regpack"
	}
}

func (c *Config) validate() error {
	p, err := xades.ParsePackaging(c.Signature.Method)
	if err != nil {
		return fmt.Errorf("signature.method must be 'enveloped' or 'enveloping', got '%s'", c.Signature.Method)
	}
	c.Signature.Method = string(p)

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn' or 'error', got '%s'", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json', got '%s'", c.Logging.Format)
	}

	if strings.ContainsAny(c.Archive.Filename, `/\`) {
		return fmt.Errorf("archive.filename must be a plain file name, got '%s'", c.Archive.Filename)
	}

	return nil
}

// Request builds a pipeline request for document from the configuration.
// Credential and password checks are left to the pipeline so that they are
// reported with their failure kind.
func (c *Config) Request(document []byte) regpack.Request {
	return regpack.Request{
		Document:           document,
		Certificate:        c.Credentials.Certificate.Reference(),
		PrivateKey:         c.Credentials.PrivateKey.Reference(),
		PrivateKeyPassword: c.Credentials.PrivateKey.Password,
		ArchivePassword:    c.Archive.Password,
		Packaging:          xades.Packaging(c.Signature.Method),
		EntryName:          c.Archive.Filename,
	}
}
