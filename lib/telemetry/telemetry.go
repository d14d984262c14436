package telemetry

import (
	"chuniscrape/lib/configutil"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

type OtlpConnConfig struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

type OtlpConfig struct {
	Traces  OtlpConnConfig `json:"traces"`
	Metrics OtlpConnConfig `json:"metrics"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

var (
	mu             sync.Mutex
	tracerProvider *trace.TracerProvider
	meterProvider  *metric.MeterProvider
)

// InitSlog installs a text handler on stderr as the default logger.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func Setup(ctx context.Context, serviceName string, config Config) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return err
	}

	tp, err := newTraceProvider(ctx, r, config)
	if err != nil {
		return err
	}
	mp, err := newMetricProvider(ctx, r, config)
	if err != nil {
		tp.Shutdown(ctx)
		return err
	}

	mu.Lock()
	tracerProvider = tp
	meterProvider = mp
	mu.Unlock()

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	return nil
}

// searches up the filesystem from the cwd to find a file
// called telemetry.json5, once found it will then use it
// as a config to setup telemetry. the returned error satisfies
// os.IsNotExist when there is no such file.
func SetupFromEnv(ctx context.Context, serviceName string) error {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if err != nil {
		return err
	}
	return Setup(ctx, serviceName, config)
}

// Shutdown flushes and stops the providers installed by Setup, it is
// a no-op when Setup was never called.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp, mp := tracerProvider, meterProvider
	tracerProvider, meterProvider = nil, nil
	mu.Unlock()

	var errs []error
	if tp != nil {
		errs = append(errs, tp.Shutdown(ctx))
	}
	if mp != nil {
		errs = append(errs, mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

var setupTestEnvironments sync.Map

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once. without a telemetry.json5 only logging is set up.
func SetupForTesting(serviceName string) func() {
	_, setupAlready := setupTestEnvironments.LoadOrStore(serviceName, struct{}{})
	if setupAlready {
		return func() {}
	}

	InitSlog(true)
	err := SetupFromEnv(context.Background(), serviceName)
	if os.IsNotExist(err) {
		return func() {}
	}
	if err != nil {
		panic(err)
	}

	return func() {
		err := Shutdown(context.Background())
		if err != nil {
			panic(err)
		}
	}
}
