// Package api implements the HTTP REST API and WebSocket server of the bridge.
//
// This package provides:
//   - REST endpoints to list entities and devices, run actions, send raw
//     function commands, and read state history
//   - A diagnostics endpoint returning the anonymised device dump
//   - WebSocket hub broadcasting "entity.state_changed" events
//   - Optional JWT bearer authentication with viewer and operator roles
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API is a second front end to the same bridge that serves MQTT. Every
// request is answered from the bridge's in-memory entities; actions and
// commands go through the bridge to the cloud, and the resulting state
// change reaches both MQTT and WebSocket subscribers.
//
// # Security
//
// With security.jwt.secret empty the API is open. Otherwise every route
// except /api/v1/health needs a token issued by "hubspace-bridge token".
// WebSocket clients may pass it as ?token= since browsers cannot set
// headers on the upgrade request.
package api
