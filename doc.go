// Package wsdemo is a WebSocket chat demo: a server that serves a demo page and a
// plain-text endpoint, and a client Session that chats with it.
//
// # Architecture
//
// The endpoint lives at EndpointPath ("/websocket") and carries UTF-8 text frames in
// both directions, verbatim: no subprotocol and no framing beyond WebSocket's own.
// The server echoes every text frame back to its sender (or broadcasts it to every
// peer in broadcast relay mode) and ends a connection on its first non-text frame.
//
// A Session owns at most one connection handle. It renders into a View, which stands
// for the page elements of the browser demo: a status container, a scrolling message
// log and a text input.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/wsdemo/internal/view"
//	    "github.com/luciancaetano/wsdemo/ws"
//	)
//
//	server := ws.NewServer(ws.NewServerConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllOrigins()))
//	server.Start(ctx)
//
//	v := view.NewMemory()
//	session := ws.NewSession(ws.NewSessionConfig("http://localhost:8080/ws-demo", logger), v)
//	session.Connect(ctx)
//	session.Send(ctx, "hello")
//
// # Session Events
//
//	open     status "Connected", class "connected"
//	message  one "received" entry per text frame, log scrolled to the newest entry
//	close    status "Disconnected", class "disconnected"
//	error    logged, status "Connection Error", class "disconnected"
//
// Submit trims the input and sends only when the result is non-empty and the
// connection is open; otherwise it does nothing. There is no reconnection, no
// acknowledgment and no queuing of messages typed while disconnected.
//
// Connect closes the current handle and waits for it to finish closing before dialing
// again. Events from a replaced handle are dropped.
//
// # Rate Limiting
//
// Each peer has an independent token bucket on inbound frames:
//
//	// Default: 100 frames/second, burst 200
//	ws.DefaultRateLimitConfig()
//
//	// Disabled
//	ws.NoRateLimit()
//
// When the limit is exceeded, the peer receives close code 1008 (Policy Violation).
//
// # Limits
//
//   - Maximum payload: 10MB in either direction
//   - Read timeout: 60s, refreshed by pongs
//   - Write timeout: 10s
//   - Ping every 54 seconds
//   - 256-frame send buffer per peer
package wsdemo
