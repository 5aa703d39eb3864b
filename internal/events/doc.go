// Package events fans connection events out to application callbacks.
//
// The engine publishes on its dispatch goroutine. Each subscriber has its
// own queue and goroutine: callbacks see events one at a time and in publish
// order, and a slow or blocking callback (one that issues a request, say)
// never stalls frame dispatch.
//
//	bus := events.New()
//	cancel, err := events.On(bus, events.TopicData, func(ev events.Data) {
//	    fmt.Println(ev.Snapshot.Key, ev.Snapshot.Seq)
//	})
package events
