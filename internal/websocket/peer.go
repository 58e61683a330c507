package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/wsdemo"
	"github.com/luciancaetano/wsdemo/internal/protocol"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	sendBuffer   = 256
	closeTimeout = time.Second
)

// Peer implements the wsdemo.Peer interface for a connection accepted by the Server.
type Peer struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	ctx         context.Context
	cancel      context.CancelFunc
	sendCh      chan []byte
	mu          sync.RWMutex
	closed      bool
	rateLimiter *rate.Limiter // Rate limiter for incoming frames
}

// NewPeer wraps an upgraded connection and starts its write pump.
func NewPeer(conn *websocket.Conn, remoteAddr string, rateLimitConfig *RateLimitConfig) *Peer {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if rateLimitConfig != nil && rateLimitConfig.Enabled {
		limiter = rate.NewLimiter(rateLimitConfig.MessagesPerSecond, rateLimitConfig.Burst)
	}

	peer := &Peer{
		id:          uuid.NewString(),
		conn:        conn,
		remoteAddr:  remoteAddr,
		ctx:         ctx,
		cancel:      cancel,
		sendCh:      make(chan []byte, sendBuffer),
		rateLimiter: limiter,
	}

	go peer.writePump()

	return peer
}

// ID returns a unique identifier for the connected peer
func (p *Peer) ID() string {
	return p.id
}

// RemoteAddr returns the peer's remote network address
func (p *Peer) RemoteAddr() string {
	return p.remoteAddr
}

// Context returns the peer's lifecycle context
func (p *Peer) Context() context.Context {
	return p.ctx
}

// Send queues a text frame for the write pump. It never blocks: a peer whose
// send buffer is full is not keeping up and is closed with ErrSendBufferFull.
func (p *Peer) Send(ctx context.Context, text string) error {
	data, err := protocol.EncodeText(text)
	if err != nil {
		return fmt.Errorf("%s: %w", wsdemo.ErrFailedToEncode, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	queued, err := p.enqueue(data)
	if err != nil {
		return err
	}
	if !queued {
		p.CloseWithCode(ctx, websocket.CloseTryAgainLater, wsdemo.ErrSendBufferFull)
		return errors.New(wsdemo.ErrSendBufferFull)
	}
	return nil
}

// enqueue holds the read lock only for a non-blocking channel send so Close
// cannot close sendCh underneath it.
func (p *Peer) enqueue(data []byte) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false, errors.New(wsdemo.ErrConnectionClosed)
	}

	select {
	case p.sendCh <- data:
		return true, nil
	default:
		return false, nil
	}
}

// Close closes the peer connection
func (p *Peer) Close(ctx context.Context) error {
	return p.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a close code and optional reason.
// The close frame write is bounded by closeTimeout and by ctx's deadline.
func (p *Peer) CloseWithCode(ctx context.Context, code int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	deadline := time.Now().Add(closeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	message := websocket.FormatCloseMessage(code, reason)
	_ = p.conn.WriteControl(websocket.CloseMessage, message, deadline)
	p.cancel()

	close(p.sendCh)
	return p.conn.Close()
}

// IsAlive returns true if the connection is still active
func (p *Peer) IsAlive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// CheckRateLimit reports whether another inbound frame is allowed.
func (p *Peer) CheckRateLimit() bool {
	if p.rateLimiter == nil {
		return true
	}
	return p.rateLimiter.Allow()
}

// writePump pumps frames from the send channel to the connection
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case message, ok := <-p.sendCh:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				return
			}

			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				p.cancel()
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.cancel()
				return
			}

		case <-p.ctx.Done():
			return
		}
	}
}
