// Package registry holds the subscribed devices of one Player connection.
//
// Each entry maps a device.Key to the handler created for its granted
// subscription. Writes happen on the engine's dispatch goroutine when a
// subscription reply arrives; lookups happen for every incoming frame and
// from application goroutines listing devices.
package registry
