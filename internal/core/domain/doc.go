// Package domain defines the core domain models for lobbysync.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Lobby: the snapshot of a remote lobby as returned by the service
//   - LobbyDelta: what changed between two accepted snapshots
//   - Requests: create/join/update documents sent to the service
//   - Phase: the session phases (Disconnected, Connected, InLobby)
//   - Errors: domain-specific error definitions and retry classification
//
// A Lobby handed to the session is never modified in place; every update
// arrives as a new value.
package domain
