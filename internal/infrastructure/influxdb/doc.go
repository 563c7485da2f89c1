// Package influxdb writes the bridge's telemetry to InfluxDB v2.
//
// Two measurements are written:
//   - entity_state: one point per entity per poll or command, tagged with
//     entity_id and domain
//   - poll: one point per coordinator refresh with device count, duration
//     and success
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteEntityState("fan-1_fan", "fan", map[string]any{"percentage": 50}, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Failures are reported through SetOnError.
package influxdb
