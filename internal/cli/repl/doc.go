// Package repl provides the interactive console of watch --interactive.
//
//   - repl.go: read loop and command dispatch
//   - completer.go: prefix completion of command names
//   - history.go: command history persistence
//
// The loop is independent of the lobby session; callers register commands
// with handlers that drive it.
package repl
