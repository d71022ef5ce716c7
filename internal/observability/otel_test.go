package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{ServiceName: "test-service", ServiceVersion: "1.0.0", Environment: "test"}
}

func TestInitMeterProvider_ServesMetrics(t *testing.T) {
	mp, err := InitMeterProvider(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background(), discardLogger()) })

	metrics, err := InitGraphQLMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	metrics.IncrementActiveRequests(ctx)
	metrics.RecordRequest(ctx, 12*time.Millisecond, 1, "query")
	metrics.RecordAcquire(ctx, time.Millisecond, nil)
	metrics.DecrementActiveRequests(ctx)

	rr := httptest.NewRecorder()
	mp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "graphql")
	assert.Contains(t, body, "go_goroutines")
}

func TestGraphQLMetrics_NilReceiver(t *testing.T) {
	var metrics *GraphQLMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		metrics.RecordRequest(ctx, time.Millisecond, 0, "query")
		metrics.RecordAcquire(ctx, time.Millisecond, nil)
		metrics.IncrementActiveRequests(ctx)
		metrics.DecrementActiveRequests(ctx)
	})
}

func TestParseOTLPProtocol(t *testing.T) {
	for _, in := range []string{"", "grpc", "GRPC"} {
		got, err := parseOTLPProtocol(in)
		require.NoError(t, err)
		assert.Equal(t, otlpProtocolGRPC, got)
	}
	for _, in := range []string{"http", "http/protobuf"} {
		got, err := parseOTLPProtocol(in)
		require.NoError(t, err)
		assert.Equal(t, otlpProtocolHTTP, got)
	}
	_, err := parseOTLPProtocol("thrift")
	assert.Error(t, err)
}

func TestInitTracerProvider_InsecureGRPC(t *testing.T) {
	cfg := testConfig()
	cfg.TraceSampleRatio = 1
	cfg.OTLPConfig = OTLPExporterConfig{Endpoint: "localhost:4317", Protocol: "grpc", Insecure: true}

	tp, err := InitTracerProvider(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = tp.Shutdown(ctx, discardLogger())
}

func TestInitLoggerProvider_InsecureHTTP(t *testing.T) {
	cfg := testConfig()
	cfg.OTLPConfig = OTLPExporterConfig{Endpoint: "http://localhost:4318", Protocol: "http/protobuf", Insecure: true}

	lp, err := InitLoggerProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, lp.Provider())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = lp.Shutdown(ctx, discardLogger())
}

func TestBuildTLSConfig_FileNotFound(t *testing.T) {
	_, err := buildTLSConfig(OTLPExporterConfig{TLSCertFile: "/nonexistent/ca.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read OTLP TLS CA file")
}

func TestBuildTLSConfig_InvalidCertFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0o600))

	_, err := buildTLSConfig(OTLPExporterConfig{TLSCertFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse OTLP TLS CA file")
}

func TestBuildTLSConfig_MissingClientKeyPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.crt")
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0o600))

	_, err := buildTLSConfig(OTLPExporterConfig{TLSClientCertFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTLP TLS client cert and key must both be set")
}

func TestTraceSamplerForRatio_Boundaries(t *testing.T) {
	params := func(id byte) sdktrace.SamplingParameters {
		return sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       trace.TraceID{id},
			Name:          "test",
		}
	}

	assert.Equal(t, sdktrace.Drop, traceSamplerForRatio(0).ShouldSample(params(1)).Decision)
	assert.Equal(t, sdktrace.RecordAndSample, traceSamplerForRatio(1).ShouldSample(params(2)).Decision)
}

func TestTraceSamplerForRatio_FollowsSampledParent(t *testing.T) {
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{3},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
	decision := traceSamplerForRatio(0.5).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parent,
		TraceID:       trace.TraceID{4},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decision)
}
