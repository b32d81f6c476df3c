// Package refresh polls the lobby service when push cannot be relied on.
//
// The Scheduler ticks on a fixed interval. Outside a lobby it lists lobbies;
// inside one it polls the lobby by id unless the launch watch is running or
// push is connected to that lobby. A 404 is an authoritative removal.
//
// The launch watch is a separate, tighter loop started when the lobby enters
// the game with its server still launching. It ends when the server is
// running, has failed or stopped, the lobby is gone, the attempt budget runs
// out, or it is cancelled. Both loops share one poll lock and never fetch at
// the same time.
package refresh
