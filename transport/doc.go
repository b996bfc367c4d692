// Package transport wires internal/relay's core engine to the outside
// world: a TCP listener accepts producer connections, and HTTP chunked
// transfer or WebSocket connections deliver rewritten bytes to subscribers.
// Nothing in this package touches EBML; it only moves bytes between a
// net.Conn / http.ResponseWriter / websocket.Conn and a relay.Broadcast.
package transport
