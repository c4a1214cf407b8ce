// Package server implements the NetSketch drawing server.
//
// The implementation is organized into specialized files for configuration,
// the request Dispatcher, per-connection pumps, the TCP listener, and the
// HTTP surface (health, stats, canvas and the WebSocket transport). Every
// connection, whatever its transport, shares one Dispatcher and therefore
// one canvas.
package server
