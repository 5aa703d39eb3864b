// Package relay republishes a Player connection over HTTP.
//
// Routes:
//   - /ws: WebSocket stream of JSON snapshots, one message per DATA frame.
//     Repeat the device query parameter to filter, e.g. /ws?device=laser:0.
//   - /devices: JSON list of the subscribed devices.
//   - /metrics: Prometheus metrics.
//
// Slow WebSocket clients lose snapshots rather than delaying the others.
package relay
