// Package bridge connects the HubSpace cloud to the host.
//
// It listens to the polling coordinator, keeps one entity per controllable
// part of every tracked device, and exposes those entities over MQTT with
// Home Assistant discovery. Typed actions and raw escape-hatch writes
// arrive on per-entity MQTT topics or through Execute and SendCommand,
// are translated into state tuples and written to the device's child id.
//
// Topic layout (prefix "hubspace" by default):
//
//	hubspace/bridge/status             retained online/offline (LWT)
//	hubspace/bridge/diagnostics        diagnostics button presses
//	hubspace/entity/<uid>/state        retained entity state JSON
//	hubspace/entity/<uid>/set          typed action
//	hubspace/entity/<uid>/command      raw function write
//	hubspace/ack/<uid>                 command result
//	homeassistant/<kind>/<uid>/config  retained discovery config
//
// All entity mutation is serialised under one mutex. Cloud writes happen
// outside the lock and are awaited once; they are never queued or retried.
//
// Successful polls and commands also feed the optional state history,
// InfluxDB telemetry and a state listener used by the API's WebSocket hub.
package bridge
