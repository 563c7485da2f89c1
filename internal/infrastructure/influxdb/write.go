package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementEntityState = "entity_state"
	MeasurementPoll        = "poll"
)

// WriteEntityState records one entity snapshot.
//
// Parameters:
//   - uid: Entity unique id (tag entity_id)
//   - domain: light, fan, switch, valve or lock (tag domain)
//   - fields: Numeric and boolean state values, e.g. on, brightness, percentage
//   - at: Time of the poll or command that produced the state
//
// A snapshot without fields is dropped; InfluxDB rejects empty points.
//
// Example:
//
//	client.WriteEntityState("light-1", "light", map[string]any{"on": true, "brightness": 128}, time.Now())
func (c *Client) WriteEntityState(uid, domain string, fields map[string]any, at time.Time) {
	if len(fields) == 0 {
		return
	}
	c.WritePoint(MeasurementEntityState,
		map[string]string{"entity_id": uid, "domain": domain},
		fields, at)
}

// WritePollResult records the outcome of one coordinator refresh.
func (c *Client) WritePollResult(devices int, duration time.Duration, success bool, at time.Time) {
	c.WritePoint(MeasurementPoll, nil, map[string]any{
		"devices":     devices,
		"duration_ms": duration.Milliseconds(),
		"success":     success,
	}, at)
}

// WritePoint writes a point with explicit tags, fields and timestamp.
// It is a no-op when the client is not connected.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
