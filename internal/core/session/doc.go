// Package session holds the local player's session state machine.
//
// The Machine moves between three phases:
//
//	Disconnected --Initialize--> Connected --accepted snapshot--> InLobby
//	InLobby --Leave--> Connected --Disconnect--> Disconnected
//
// It is the only writer of the current lobby snapshot. Other components
// submit candidates through Apply, which runs the reconciler inside the
// machine's lock and swaps the snapshot pointer atomically, so Current never
// blocks.
package session
