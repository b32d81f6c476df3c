// Package logger provides structured logging for lobbysync.
//
// It wraps log/slog behind a small Logger interface:
//
//   - logger.go: handler construction and the dynamic level
//   - context.go: carrying a logger and a mutation id in a context
//   - redact.go: masking credentials before they reach the output
//
// Every component derives its own logger with With("component", name).
package logger
