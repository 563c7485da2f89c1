// Package coordinator polls the HubSpace cloud and fans snapshots out to
// subscribers.
//
// One refresh cycle lists devices, parses and filters them, fetches the
// state of any device whose state was not embedded in the listing, and
// publishes a Snapshot. The whole cycle runs under a timeout. A failure is
// reported to every subscriber through OnUpdateFailed; there is no retry
// or backoff beyond the next tick.
//
// # Usage
//
//	c := coordinator.New(client, coordinator.Options{Interval: 30 * time.Second})
//	c.Subscribe(bridge)
//	go c.Run(ctx)
package coordinator
