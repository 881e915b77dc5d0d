// Package logging builds slog loggers with console and JSON handlers and
// standardized field names shared across pipeline components.
package logging
