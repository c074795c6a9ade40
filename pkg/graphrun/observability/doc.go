// Package observability holds the logging, metrics and tracing helpers
// shared by the engine and its layers.
//
// Logs go through log/slog. Metrics and spans go through OpenTelemetry;
// DiscardMetrics and DiscardTracer give instruments that record nothing.
package observability
