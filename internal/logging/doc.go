// Package logging builds the slog loggers used across bookarr and defines the
// standardized attribute vocabulary for structured output.
//
// Loggers are constructed once at process start (console or JSON format,
// stdout plus an optional file in the log directory) and passed down to
// components, which tag themselves with a component attribute. Context-scoped
// fields (author, job, sync run, request correlation) travel on
// context.Context and are folded in via WithContext.
package logging
