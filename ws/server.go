package ws

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/wsdemo"
	"github.com/luciancaetano/wsdemo/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig
type CheckOriginFn = websocket.CheckOriginFn
type OnConnectFn = websocket.OnConnectFn
type OnDisconnectFn = websocket.OnPeerDisconnectFn
type ServerConfig = *websocket.ServerConfig

// NewServer creates the demo server.
//
// Example:
//
//	cfg := ws.NewServerConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllowedOrigins(nil))
//	cfg.Relay = wsdemo.RelayBroadcast
//	server := ws.NewServer(cfg)
func NewServer(cfg ServerConfig) wsdemo.Server {
	return websocket.New(cfg)
}

// NewServerConfig returns a server configuration with a disabled logger and no hooks.
func NewServerConfig(addr string, rateLimitConfig *RateLimitConfig, checkOrigin CheckOriginFn) ServerConfig {
	return &websocket.ServerConfig{
		Addr:            addr,
		RateLimitConfig: rateLimitConfig,
		CheckOrigin:     checkOrigin,
		Relay:           wsdemo.RelayEcho,
		Logger:          zerolog.Nop(),
	}
}

// AllOrigins returns a checkOrigin function that allows all origins
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// AllowedOrigins returns a checkOrigin function accepting only the listed origins.
// An empty list allows all origins. Requests without an Origin header are accepted.
func AllowedOrigins(origins []string) CheckOriginFn {
	if len(origins) == 0 {
		return AllOrigins()
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
