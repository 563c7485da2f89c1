// Package auth issues and validates the bearer tokens accepted by the
// bridge's HTTP API.
//
// Tokens are HS256 JWTs signed with the configured secret. Each carries a
// subject and a role:
//   - viewer: read entities, devices, history and the WebSocket stream
//   - operator: everything a viewer can, plus actions, raw commands and
//     diagnostics dumps
//
// There is no user database. Tokens are minted offline with the
// "hubspace-bridge token" command and revoked by rotating the secret.
package auth
