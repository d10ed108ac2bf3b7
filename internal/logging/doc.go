// Package logging provides structured logging for pricecast.
//
// # Overview
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Stdout or stderr output, plus an optional OpenTelemetry log bridge
//   - Context field injection (trace_id, request id, session provider)
//   - Redaction of identity fields (email, avatar) and credentials, applied
//     to bridged OpenTelemetry records as well as stdout
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.Info(ctx, "prediction completed", zap.String("outcome", "success"))
//
// The CLI writes logs to stderr so command output on stdout stays parseable.
package logging
