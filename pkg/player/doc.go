// Package player is a client for the Player robot server protocol.
//
// A Client owns one TCP connection. It subscribes to devices on the server,
// routes their DATA frames to per-device handlers from a device.Catalog, and
// issues the connection level requests of the server's meta device.
//
// # Connection Lifecycle
//
//	c, err := player.Dial(ctx, "localhost", player.DefaultPort, player.Config{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	laser, err := c.Subscribe(ctx, device.Key{Code: device.CodeLaser}, device.AccessRead)
//	if err != nil {
//	    return err
//	}
//	if err := c.RunStreaming(); err != nil {
//	    return err
//	}
//	snap := laser.Snapshot() // nil until the first frame arrives
//
// # Read Modes
//
// Frames are read either by a background loop (RunStreaming) or by the
// caller, one data round at a time (ReadOnce, PullRound). The first call
// fixes the mode for the life of the connection.
//
// # Requests
//
// Only one request is outstanding per connection. A request blocks until
// its reply is dispatched; frames for other devices that arrive first are
// dispatched as usual, either by the streaming loop or by the waiting
// caller itself. Cancelling the request's context closes the connection,
// since the reply would otherwise desynchronize the next request.
//
// # Errors
//
// Every error returned by a Client is an *Error. Kinds KindConnect,
// KindDesync, KindIO and KindClosed are fatal: the connection is closed and
// Err reports the cause. The others leave the connection usable.
package player
