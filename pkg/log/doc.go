// Package log is the structured logging abstraction used across metricship.
//
// Components accept a [Logger] and attach typed [Field] values instead of
// formatting strings, so the same call sites work with zerolog in the CLI,
// with [NoopLogger] in library use, and with [Recorder] in tests.
//
//	logger := log.NewZerologAdapter(os.Stderr, "info")
//	logger.Warn("batch failed", log.Int("sent", 10), log.Int("total", 40), log.Err(err))
package log
