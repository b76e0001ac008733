// Package logging provides structured logging for the actuator core.
//
// It wraps log/slog so that every component logs with the same default
// fields (service, version) and the same level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("dispatcher").Info("tick", "queued", 3)
//
// Never log secrets, tokens or passwords. Commands and outcomes are logged
// by id and device; raw recommendation payloads are logged at debug only.
package logging
