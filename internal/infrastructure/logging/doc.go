// Package logging provides structured logging for the Gray Logic MFA service.
//
// It wraps Go's log/slog so every component logs with the same format,
// level filtering and default fields (service, version).
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	devLog := logger.Component("devices")
//	devLog.Info("device removed", "realm", "/", "user", userID)
//
// Never log shared secrets, tokens or passwords. Device profiles carry
// OATH shared secrets, so log profile uuids, never profile documents.
package logging
