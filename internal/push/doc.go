// Package push supervises the live push connection to the lobby service.
//
// A Supervisor keeps at most one connection open, scoped to a single lobby
// id, and reconnects with capped exponential backoff when it drops. It does
// not interpret what it receives: connection status changes and decoded
// frames are handed to a Sink, which feeds them through the same
// dedup/reconcile path as poll results.
//
// The wire side is a Transport. WebSocketTransport speaks JSON frames over
// gorilla/websocket:
//
//	{"type":"updated","lobby":{...}}
//	{"type":"deleted","lobbyId":"..."}
package push
