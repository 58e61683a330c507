package wsdemo

import (
	"context"
	"net/http"
	"time"
)

// Server defines the demo WebSocket server.
//
// The server serves the demo page and its assets and exposes the text endpoint at
// EndpointPath. Every inbound text frame is relayed verbatim according to the configured
// relay mode; the first non-text frame ends the peer's connection.
//
// Example usage:
//
//	import "github.com/luciancaetano/wsdemo/ws"
//
//	server := ws.NewServer(ws.NewServerConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllOrigins()))
//	server.Start(ctx)
type Server interface {
	// Start starts listening for connections.
	//
	// Returns an error if the server is already running or if there's a problem
	// binding to the network address.
	Start(ctx context.Context) error

	// Stop gracefully stops the server and closes all peer connections.
	Stop(ctx context.Context) error

	// Handler returns the HTTP handler with every demo route mounted.
	//
	// This is useful for mounting the server behind httptest or another listener.
	Handler() http.Handler

	// Broadcast sends a text frame to all connected peers.
	Broadcast(ctx context.Context, text string) error
}

// Peer represents a connection accepted by the Server.
//
// The peer's context is cancelled when the connection closes.
type Peer interface {
	// ID returns the unique identifier assigned on connect.
	ID() string

	// RemoteAddr returns the peer's remote network address.
	RemoteAddr() string

	// Context returns the peer's lifecycle context.
	Context() context.Context

	// Send queues a text frame for delivery without blocking.
	//
	// Returns an error if the connection is closed or the context is cancelled.
	// A peer whose send buffer is full is closed and an error is returned.
	Send(ctx context.Context, text string) error

	// Close closes the connection with websocket.CloseNormalClosure.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific close code and optional reason.
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive returns true if the connection is still active.
	IsAlive() bool
}

// Session is the chat client: it owns at most one connection handle to the demo endpoint
// and reflects every socket event into a View.
//
// Example usage:
//
//	v := view.NewTerminal(os.Stdout)
//	session := ws.NewSession(ws.NewSessionConfig("http://localhost:8080/ws-demo", logger), v)
//	session.Connect(ctx)
//	v.SetInput("hello")
//	session.Submit(ctx)
type Session interface {
	// Connect closes any existing connection and opens a new one to EndpointPath
	// resolved against the session's origin.
	//
	// A failed dial is reported to the view as a connection error, not returned.
	// An error is returned for an unusable origin, or with ctx.Err() when ctx ends
	// while the previous connection is still closing.
	Connect(ctx context.Context) error

	// Submit reads the view's input, trims it and, only if the result is non-empty
	// and the connection is open, sends it, appends a sent entry and clears the input.
	//
	// Submitting while disconnected is a silent no-op.
	Submit(ctx context.Context) error

	// Send sets the view's input to text and submits it.
	Send(ctx context.Context, text string) error

	// ReadyState returns the state of the current connection handle.
	// Closed is returned when there is no handle.
	ReadyState() ReadyState

	// Close releases the current connection handle, if any.
	Close(ctx context.Context) error
}

// View is the rendering surface a Session drives.
//
// It stands for the page elements the demo consumes: a status container, a scrollable
// message list and a text input.
type View interface {
	SetStatus(status Status)
	AppendEntry(entry Entry)
	ScrollToNewest()
	InputValue() string
	SetInput(value string)
	ClearInput()
}

// ReadyState mirrors the states of a platform WebSocket.
type ReadyState int

const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

// String returns the lowercase name of the state.
func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is the visible connection status: a label and the class used for styling.
type Status struct {
	Label string
	Class string
}

var (
	StatusConnected       = Status{Label: "Connected", Class: ClassConnected}
	StatusDisconnected    = Status{Label: "Disconnected", Class: ClassDisconnected}
	StatusConnectionError = Status{Label: "Connection Error", Class: ClassDisconnected}
)

// EntryKind tags a log entry for styling.
type EntryKind string

const (
	EntrySent     EntryKind = "sent"
	EntryReceived EntryKind = "received"
)

// Entry is one line in the message log.
type Entry struct {
	Kind EntryKind
	Text string
	At   time.Time
}

// Class returns the class names of the entry's element.
func (e Entry) Class() string {
	return "message " + string(e.Kind)
}
