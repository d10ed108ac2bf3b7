// Package telemetry wires OpenTelemetry tracing, metrics and logs for
// pricecast.
//
// Telemetry is off by default. When enabled, spans, metrics and log records
// are exported over OTLP (grpc or http/protobuf) to a collector. The log
// provider feeds the zap bridge in package logging:
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version), logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//	logger, err = logging.NewLogger(lc, tel.LoggerProvider())
//
// Exporter failures never stop the process. The instance is marked degraded
// and callers keep receiving working (possibly no-op) tracers and meters.
//
// Tests use NewTestTelemetry, which records spans in memory.
package telemetry
