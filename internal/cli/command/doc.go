// Package command defines the lobbysync CLI on urfave/cli/v2.
//
//   - root.go: application, global flags, configuration loading
//   - lobby.go: one-shot lobby queries and mutations over REST
//   - watch.go: a long-running session printing lobby events
//   - shell.go: console commands of watch --interactive
//   - version.go: build information
//
// Global flags that shadow configuration keys (--server, --credential,
// --log-level) are applied as overrides on top of the file and the
// LOBBYSYNC_ environment.
package command
