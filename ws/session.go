package ws

import (
	"github.com/rs/zerolog"

	"github.com/luciancaetano/wsdemo"
	"github.com/luciancaetano/wsdemo/internal/websocket"
)

type SessionConfig = *websocket.SessionConfig

// NewSession creates a chat session rendering into view. Call Connect to open it.
func NewSession(cfg SessionConfig, view wsdemo.View) wsdemo.Session {
	return websocket.NewSession(cfg, view)
}

// NewSessionConfig returns a session configuration for the given page origin.
func NewSessionConfig(origin string, logger zerolog.Logger) SessionConfig {
	return &websocket.SessionConfig{
		Origin: origin,
		Logger: logger,
	}
}

// ResolveEndpoint returns the WebSocket URL a session at origin connects to.
func ResolveEndpoint(origin string) (string, error) {
	return websocket.ResolveEndpoint(origin)
}
