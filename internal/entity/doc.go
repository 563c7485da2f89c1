// Package entity maps HubSpace device descriptors onto host entities.
//
// Each entity kind (light, fan, switch, valve, lock) has three parts:
//
//   - Capabilities: derived once from the descriptor's function list and
//     never changed afterwards. A descriptor whose functions change is
//     rebuilt into a new entity.
//   - Observed state: updated by Apply from (functionClass,
//     functionInstance, value) tuples. Unknown classes land in the
//     extra attributes.
//   - Translation: Translate turns a typed Action into the tuples to write,
//     each carrying the instance recorded for its class.
//
// # Usage
//
//	for _, e := range entity.BuildAll(devices, logger) {
//	    e.Apply(states[e.ChildID()])
//	    writes, err := e.Translate(entity.TurnOn{Brightness: &b})
//	    ...
//	}
//
// # Thread Safety
//
// Entities are not safe for concurrent use. The bridge serialises access.
package entity
