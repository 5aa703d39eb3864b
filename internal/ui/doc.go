// Package ui provides terminal UI components for the player-cli tool.
//
// Two kinds of output live here. Printer renders one-shot styled output
// (command headers, device listings, decoded frames, error boxes) for
// commands that print and exit. Monitor is an interactive Bubble Tea model
// that keeps one row per device and refreshes it as DATA frames arrive:
//
//	err := ui.RunMonitor(ctx, client, ui.MonitorConfig{
//	    Server: client.Addr(),
//	    Banner: client.Banner(),
//	})
//
// RunMonitor subscribes to the client's data and close events and forwards
// them into the program with Send. The monitor exits when the user quits,
// ctx ends or the connection closes.
//
// # Logging Integration
//
// zap logging is silent unless PLAYERCLIENT_LOG_LEVEL is set, so the
// monitor's alternate screen is not interleaved with log lines.
package ui
