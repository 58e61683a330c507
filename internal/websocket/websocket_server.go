package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/wsdemo"
	"github.com/luciancaetano/wsdemo/internal/frontend"
	"github.com/luciancaetano/wsdemo/internal/protocol"
)

const tracerName = "github.com/luciancaetano/wsdemo/internal/websocket"

// CheckOriginFn validates the origin of an upgrade request.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called after the handshake completes and before the read loop starts.
//
// It runs synchronously during connection setup; avoid long-running work.
type OnConnectFn = func(peer wsdemo.Peer)

// OnPeerDisconnectFn is called when a peer's read loop ends. voluntary is true when the
// peer sent a close frame.
type OnPeerDisconnectFn = func(peer wsdemo.Peer, voluntary bool)

type ServerConfig struct {
	Addr             string
	RateLimitConfig  *RateLimitConfig
	CheckOrigin      CheckOriginFn
	Relay            string
	Logger           zerolog.Logger
	OnConnect        OnConnectFn
	OnPeerDisconnect OnPeerDisconnectFn
}

// RateLimitConfig defines rate limiting of inbound frames per peer
type RateLimitConfig struct {
	// MessagesPerSecond defines how many frames a peer can send per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 100 frames per second with burst of 200
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// Server implements the wsdemo.Server interface
type Server struct {
	addr   string
	server *http.Server
	peers  sync.Map // map[string]*Peer

	rateLimitConfig *RateLimitConfig
	relay           string
	log             zerolog.Logger
	tracer          trace.Tracer

	mu           sync.RWMutex
	running      bool
	upgrader     websocket.Upgrader
	onConnect    OnConnectFn
	onDisconnect OnPeerDisconnectFn
}

// New creates a server from cfg.
//
// A nil RateLimitConfig selects DefaultRateLimitConfig and an empty Relay selects
// wsdemo.RelayEcho. A nil CheckOrigin falls back to gorilla's same-origin check.
func New(cfg *ServerConfig) *Server {
	if cfg.RateLimitConfig == nil {
		cfg.RateLimitConfig = DefaultRateLimitConfig()
	}
	if cfg.Relay == "" {
		cfg.Relay = wsdemo.RelayEcho
	}
	return &Server{
		addr:            cfg.Addr,
		rateLimitConfig: cfg.RateLimitConfig,
		relay:           cfg.Relay,
		log:             cfg.Logger.With().Str("component", "server").Logger(),
		tracer:          otel.Tracer(tracerName),
		onConnect:       cfg.OnConnect,
		onDisconnect:    cfg.OnPeerDisconnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Handler returns the router with the demo page, its assets and the endpoint mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, asset := range frontend.Assets {
		r.Get(asset.Route, frontend.Handler(asset))
	}
	r.Get("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get(wsdemo.EndpointPath, s.handleWebSocket)
	return r
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New(wsdemo.ErrServerAlreadyRunning)
	}
	s.running = true
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Surface immediate bind errors
	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		s.log.Info().Str("addr", s.addr).Str("relay", s.relay).Msg("listening")
		return nil
	}
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.server
	s.mu.Unlock()

	s.peers.Range(func(key, value interface{}) bool {
		if peer, ok := value.(*Peer); ok {
			peer.CloseWithCode(ctx, websocket.CloseGoingAway, "server shutting down")
		}
		return true
	})

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// handleWebSocket upgrades the request and starts the peer's read loop
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	conn.SetReadLimit(int64(protocol.MaxPayloadSize()))

	peer := NewPeer(conn, r.RemoteAddr, s.rateLimitConfig)
	s.peers.Store(peer.ID(), peer)

	_, span := s.tracer.Start(r.Context(), "websocket.peer",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("peer.id", peer.ID()),
			attribute.String("net.peer.addr", peer.RemoteAddr()),
			attribute.String("wsdemo.relay", s.relay),
		),
	)

	go s.handlePeer(peer, span)
}

// handlePeer reads frames until the peer goes away or breaks the protocol
func (s *Server) handlePeer(peer *Peer, span trace.Span) {
	log := s.log.With().Str("peer_id", peer.ID()).Str("remote_addr", peer.RemoteAddr()).Logger()
	var frames int64
	voluntary := false

	defer func() {
		s.peers.Delete(peer.ID())
		peer.Close(context.Background())
		if s.onDisconnect != nil {
			s.onDisconnect(peer, voluntary)
		}

		span.SetAttributes(
			attribute.Int64("wsdemo.frames", frames),
			attribute.Bool("wsdemo.voluntary", voluntary),
		)
		span.End()
		log.Debug().Int64("frames", frames).Bool("voluntary", voluntary).Msg("peer disconnected")
	}()

	peer.conn.SetReadDeadline(time.Now().Add(pongWait))
	peer.conn.SetPongHandler(func(string) error {
		peer.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if s.onConnect != nil {
		s.onConnect(peer)
	}
	log.Debug().Msg("peer connected")

	for {
		messageType, data, err := peer.conn.ReadMessage()
		if err != nil {
			voluntary = cleanClose(err)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && peer.IsAlive() {
				log.Warn().Err(err).Msg("unexpected close")
				span.SetStatus(codes.Error, err.Error())
			}
			return
		}

		peer.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !peer.CheckRateLimit() {
			log.Warn().Msg("rate limit exceeded")
			peer.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, wsdemo.ErrRateLimitExceeded)
			return
		}

		text, err := protocol.DecodeText(messageType, data)
		if err != nil {
			log.Debug().Err(err).Int("message_type", messageType).Msg("closing on undecodable frame")
			peer.CloseWithCode(context.Background(), closeCodeFor(err), wsdemo.ErrUnsupportedData)
			return
		}
		frames++

		s.relayText(peer, text)
	}
}

func closeCodeFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrNotText):
		return websocket.CloseUnsupportedData
	case errors.Is(err, protocol.ErrPayloadTooLarge):
		return websocket.CloseMessageTooBig
	default:
		return websocket.CloseInvalidFramePayloadData
	}
}

// relayText routes an inbound text frame according to the relay mode
func (s *Server) relayText(from *Peer, text string) {
	if s.relay == wsdemo.RelayBroadcast {
		s.Broadcast(from.Context(), text)
		return
	}
	if err := from.Send(from.Context(), text); err != nil {
		s.log.Debug().Err(err).Str("peer_id", from.ID()).Msg("echo failed")
	}
}

// GetPeer returns a peer by ID
func (s *Server) GetPeer(id string) (*Peer, bool) {
	if peer, ok := s.peers.Load(id); ok {
		return peer.(*Peer), true
	}
	return nil, false
}

// PeerCount returns the number of live peers
func (s *Server) PeerCount() int {
	n := 0
	s.peers.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// SendToPeer sends a text frame to a specific peer
func (s *Server) SendToPeer(ctx context.Context, peerID string, text string) error {
	peer, ok := s.GetPeer(peerID)
	if !ok {
		return errors.New(wsdemo.ErrPeerNotFound + ": " + peerID)
	}
	return peer.Send(ctx, text)
}

// Broadcast sends a text frame to all connected peers
func (s *Server) Broadcast(ctx context.Context, text string) error {
	s.peers.Range(func(key, value interface{}) bool {
		if peer, ok := value.(*Peer); ok {
			if err := peer.Send(ctx, text); err != nil {
				s.log.Debug().Err(err).Str("peer_id", peer.ID()).Msg("broadcast skipped peer")
			}
		}
		return true
	})
	return nil
}

var (
	_ wsdemo.Server = (*Server)(nil)
	_ wsdemo.Peer   = (*Peer)(nil)
)
