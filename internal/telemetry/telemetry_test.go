package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sirosfoundation/go-regpack/pkg/credential"
	"github.com/sirosfoundation/go-regpack/pkg/regpack"
)

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), "regpack-test", "v1.2.3")
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "regpack-test", attrs["service.name"])
	assert.Equal(t, "v1.2.3", attrs["service.version"])
}

func TestPipelineSpans(t *testing.T) {
	res, err := newResource(context.Background(), "regpack-test", "dev")
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	tp := NewProvider(res, sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := regpack.New(
		regpack.WithLogger(zerolog.Nop()),
		regpack.WithTracer(tp.Tracer("test")),
	)
	out := p.Process(context.Background(), regpack.Request{
		Document:        []byte("<doc/>"),
		Certificate:     credential.Reference{Inline: "-----BEGIN CERTIFICATE-----\n@@\n-----END CERTIFICATE-----"},
		PrivateKey:      credential.Reference{Locator: "/does/not/matter.key"},
		ArchivePassword: "pw",
	})
	require.False(t, out.OK())

	spans := exporter.GetSpans()
	names := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		names[s.Name] = s
	}
	require.Contains(t, names, "regpack.Process")
	require.Contains(t, names, "regpack.resolve-credentials")
	require.Contains(t, names, "regpack.load-keys")
	assert.NotContains(t, names, "regpack.sign")

	root := names["regpack.Process"]
	assert.Equal(t, codes.Error, root.Status.Code)
	assert.Equal(t, "MalformedPem", root.Status.Description)

	load := names["regpack.load-keys"]
	assert.Equal(t, codes.Error, load.Status.Code)
	assert.Equal(t, root.SpanContext.SpanID(), load.Parent.SpanID())
}

func TestInit(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://127.0.0.1:4317")

	shutdown, err := Init(context.Background(), zerolog.Nop(), "regpack-test", "dev")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
