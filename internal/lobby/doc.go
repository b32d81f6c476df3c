// Package lobby wires the synchronisation components into one client
// session.
//
// A Session owns the state machine, the dedup cache, the mutation queue, the
// refresh scheduler and the push supervisor for a single local player. Every
// snapshot, whether it comes from a mutation response, a push frame or a
// poll, passes through one ingest step guarded by a single mutex:
//
//	mutation result -> MarkAsSeen -> Apply
//	push / poll     -> IsDuplicate -> Apply
//
// Accepted changes are published as typed events on the session's Bus.
package lobby
