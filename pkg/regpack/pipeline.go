package regpack

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sirosfoundation/go-regpack/pkg/archive"
	"github.com/sirosfoundation/go-regpack/pkg/credential"
	"github.com/sirosfoundation/go-regpack/pkg/failure"
	"github.com/sirosfoundation/go-regpack/pkg/xades"
)

const tracerName = "github.com/sirosfoundation/go-regpack/pkg/regpack"

// Pipeline runs credential resolution, key loading, signing and packaging
// in that order. It holds no credentials between invocations and is safe for
// concurrent use.
type Pipeline struct {
	logger     zerolog.Logger
	tracer     trace.Tracer
	observers  []Observer
	reader     credential.Reader
	signerOpts []xades.Option
	packager   *archive.Packager
	newID      func() string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger. The default is the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithTracer sets the tracer. The default comes from the global
// OpenTelemetry tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithObserver adds an observer notified after every invocation.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// WithReader sets how credential locators are read.
func WithReader(r credential.Reader) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.reader = r
		}
	}
}

// WithSignerOptions passes options to every signer the pipeline creates.
func WithSignerOptions(opts ...xades.Option) Option {
	return func(p *Pipeline) {
		p.signerOpts = append(p.signerOpts, opts...)
	}
}

// WithInvocationIDs sets the generator of invocation identifiers.
func WithInvocationIDs(newID func() string) Option {
	return func(p *Pipeline) {
		if newID != nil {
			p.newID = newID
		}
	}
}

// New creates a pipeline
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:   log.Logger,
		tracer:   otel.Tracer(tracerName),
		reader:   credential.FileReader{},
		packager: archive.NewPackager(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one invocation. It always returns an Outcome; on failure the
// outcome carries no archive and no intermediate artifact.
func (p *Pipeline) Process(ctx context.Context, req Request) *Outcome {
	id := p.newID()
	ctx, span := p.tracer.Start(ctx, "regpack.Process",
		trace.WithAttributes(attribute.String("regpack.invocation_id", id)))
	defer span.End()

	logger := p.logger.With().Str("invocation_id", id).Logger()
	out := &Outcome{
		Stage:    StageStart,
		Reached:  StageStart,
		Metadata: Metadata{InvocationID: id},
	}

	if err := p.run(ctx, logger, req, out); err != nil {
		fe := asFailure(err)
		out.Archive = nil
		out.Failure = fe
		out.Stage = StageFailed
		out.Metadata.Signed = false
		out.Metadata.Encrypted = false
		out.Metadata.MIMEType = ""
		out.Metadata.ArchiveSHA256 = ""

		span.SetStatus(codes.Error, string(fe.Kind))
		span.SetAttributes(
			attribute.String("regpack.failure.kind", string(fe.Kind)),
			attribute.String("regpack.failure.category", string(fe.Kind.Category())),
		)
		logger.Error().
			Str("kind", string(fe.Kind)).
			Str("category", string(fe.Kind.Category())).
			Str("stage", string(out.Reached)).
			Msg(fe.Error())
	} else {
		out.Stage = StageDone
		span.SetAttributes(attribute.String("regpack.signature_method", string(out.Metadata.SignatureMethod)))
		logger.Info().
			Str("signature_method", string(out.Metadata.SignatureMethod)).
			Str("entry", out.Metadata.EntryName).
			Int("archive_bytes", len(out.Archive)).
			Msg("document signed and packaged")
	}

	for _, o := range p.observers {
		o.Observe(ctx, out)
	}
	return out
}

func (p *Pipeline) run(ctx context.Context, logger zerolog.Logger, req Request, out *Outcome) error {
	packaging := req.Packaging
	if packaging == "" {
		packaging = xades.DefaultPackaging
	}
	packaging, err := xades.ParsePackaging(string(packaging))
	if err != nil {
		return err
	}
	entryName := req.EntryName
	if entryName == "" {
		entryName = DefaultEntryName
	}
	out.Metadata.SignatureMethod = packaging
	out.Metadata.EntryName = entryName
	out.Metadata.DocumentSHA256 = hexDigest(req.Document)

	var certRes, keyRes credential.Resolution
	err = p.step(ctx, logger, out, "resolve-credentials", StageCredentialsResolved, func(context.Context) error {
		if certRes, err = credential.Resolve(req.Certificate, credential.RoleCertificate); err != nil {
			return err
		}
		if keyRes, err = credential.Resolve(req.PrivateKey, credential.RolePrivateKey); err != nil {
			return err
		}
		for _, res := range []credential.Resolution{certRes, keyRes} {
			if res.Warning != "" {
				logger.Warn().Str("role", string(res.Material.Role)).Msg(res.Warning)
				out.Metadata.Warnings = append(out.Metadata.Warnings, res.Warning)
			}
			logger.Debug().
				Str("role", string(res.Material.Role)).
				Str("source", res.Material.Source.String()).
				Msg("credential resolved")
		}
		return nil
	})
	if err != nil {
		return err
	}

	loader := credential.NewLoader(credential.WithReader(p.reader), credential.WithLogger(logger))
	var (
		cert *x509.Certificate
		key  *credential.SigningKey
	)
	err = p.step(ctx, logger, out, "load-keys", StageKeysLoaded, func(context.Context) error {
		if cert, err = loader.Certificate(certRes.Material); err != nil {
			return err
		}
		out.Metadata.SignerSubject = cert.Subject.String()
		out.Metadata.SignerSerial = cert.SerialNumber.String()
		if key, err = loader.PrivateKey(keyRes.Material, req.PrivateKeyPassword); err != nil {
			return err
		}
		out.Metadata.KeyAlgorithm = key.Algorithm()
		return nil
	})
	if err != nil {
		return err
	}
	defer key.Destroy()

	var signed []byte
	err = p.step(ctx, logger, out, "sign", StageSigned, func(context.Context) error {
		defer key.Destroy()
		signer, err := xades.NewSigner(key, cert, p.signerOpts...)
		if err != nil {
			return err
		}
		signed, err = signer.Sign(req.Document, packaging)
		return err
	})
	if err != nil {
		return err
	}

	var packed []byte
	err = p.step(ctx, logger, out, "package", StagePackaged, func(context.Context) error {
		packed, err = p.packager.Package(archive.Entry{Name: entryName, Content: signed}, req.ArchivePassword)
		return err
	})
	if err != nil {
		return err
	}

	out.Archive = packed
	out.Metadata.MIMEType = archive.MIMEType
	out.Metadata.Signed = true
	out.Metadata.Encrypted = true
	out.Metadata.ArchiveSHA256 = hexDigest(packed)
	return nil
}

// step runs fn in a child span and advances out.Reached when it succeeds.
func (p *Pipeline) step(ctx context.Context, logger zerolog.Logger, out *Outcome, name string, next Stage, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "regpack."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		if kind, ok := failure.KindOf(err); ok {
			span.SetAttributes(attribute.String("regpack.failure.kind", string(kind)))
		}
		span.SetStatus(codes.Error, name+" failed")
		return err
	}

	out.Reached = next
	logger.Debug().Str("stage", string(next)).Msg("stage complete")
	return nil
}

// asFailure keeps the kind of taxonomy errors. Anything else is a bug in a
// collaborator and is reported as a structural document failure.
func asFailure(err error) *failure.Error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return fe
	}
	return failure.Wrap(failure.DocumentConstructionFailed, err, "unexpected error")
}

func hexDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
