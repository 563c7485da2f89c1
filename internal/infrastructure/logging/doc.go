// Package logging provides structured logging for the HubSpace bridge.
//
// It wraps log/slog so that every entry carries the service name and
// build version. JSON output is the default; text output is available for
// interactive use.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("polling started", "interval", cfg.HubSpace.PollInterval)
//
// Never log the HubSpace password or OAuth tokens.
package logging
