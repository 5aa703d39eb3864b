// Package logging provides structured logging for the Player client.
//
// This package wraps zap with a process-wide default logger for the CLI and
// helpers shared by the engine. Library code never reads the global logger
// implicitly: player.Config carries an explicit *zap.Logger, and
// GetLogger is only its default.
//
// # Log Levels
//
//   - Debug: every frame sent and received, with a bounded hex dump
//   - Info: connection lifecycle, subscriptions, mode changes
//   - Warn: non-fatal protocol events (stray bytes, unroutable frames,
//     handler decode errors, CMD or REQ received from the server)
//   - Error: the fatal error that closed a connection, logged once
//
// # Configuration
//
// Logging is silent unless a level is given or PLAYERCLIENT_LOG_LEVEL is set:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Frame Logging
//
//	logging.LogFrame(log, "recv", header, payload)
//
// Dumps are capped at 256 bytes.
package logging
