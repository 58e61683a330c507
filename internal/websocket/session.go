package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/luciancaetano/wsdemo"
	"github.com/luciancaetano/wsdemo/internal/protocol"
)

const handshakeTimeout = 5 * time.Second

// SessionConfig configures a chat Session.
type SessionConfig struct {
	// Origin is the page URL the endpoint is resolved against, e.g. "http://localhost:8080/ws-demo".
	Origin string
	Logger zerolog.Logger
	// Dialer defaults to a dialer with a 5s handshake timeout.
	Dialer *websocket.Dialer
}

// handle is one connection attempt. A Session references at most one handle at a time;
// events from a handle that is no longer current are dropped.
type handle struct {
	conn  *websocket.Conn
	state wsdemo.ReadyState
	done  chan struct{}
}

// Session implements the wsdemo.Session interface.
//
// Every socket event and every Submit runs under mu, so the View sees one change at a
// time. View methods must not call back into the Session.
type Session struct {
	origin string
	dialer *websocket.Dialer
	view   wsdemo.View
	log    zerolog.Logger

	mu      sync.Mutex
	current *handle
}

// NewSession creates a session that renders into view. It does not connect.
func NewSession(cfg *SessionConfig, view wsdemo.View) *Session {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	}
	return &Session{
		origin: cfg.Origin,
		dialer: dialer,
		view:   view,
		log:    cfg.Logger.With().Str("component", "session").Logger(),
	}
}

// Connect closes the current handle, waits for it to finish closing and dials a new one.
func (s *Session) Connect(ctx context.Context) error {
	endpoint, err := ResolveEndpoint(s.origin)
	if err != nil {
		return err
	}

	h := &handle{state: wsdemo.Connecting, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.current
	s.releaseLocked(prev)
	s.current = h
	s.mu.Unlock()

	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			s.abandon(h)
			return ctx.Err()
		}
	}

	conn, _, dialErr := s.dialer.DialContext(ctx, endpoint, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != h || h.state != wsdemo.Connecting {
		// Replaced or closed while dialing.
		if conn != nil {
			conn.Close()
		}
		h.state = wsdemo.Closed
		closeDone(h)
		return nil
	}

	if dialErr != nil {
		h.state = wsdemo.Closed
		closeDone(h)
		s.reportError(endpoint, fmt.Errorf("dial: %w", dialErr))
		return nil
	}

	conn.SetReadLimit(int64(protocol.MaxPayloadSize()))
	h.conn = conn
	h.state = wsdemo.Open
	s.log.Debug().Str("endpoint", endpoint).Msg("connected")
	s.view.SetStatus(wsdemo.StatusConnected)

	go s.readPump(h)
	return nil
}

// Submit sends the trimmed view input when it is non-empty and the handle is open.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := trim(s.view.InputValue())
	h := s.current
	if text == "" || h == nil || h.state != wsdemo.Open {
		return nil
	}

	payload, err := protocol.EncodeText(text)
	if err != nil {
		return fmt.Errorf("%s: %w", wsdemo.ErrFailedToEncode, err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	h.conn.SetWriteDeadline(deadline)
	if err := h.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.state = wsdemo.Closed
		h.conn.Close()
		s.reportError(s.origin, fmt.Errorf("write: %w", err))
		return fmt.Errorf("send: %w", err)
	}

	s.view.AppendEntry(wsdemo.Entry{Kind: wsdemo.EntrySent, Text: text, At: time.Now()})
	s.view.ScrollToNewest()
	s.view.ClearInput()
	return nil
}

// Send places text in the view input and submits it.
func (s *Session) Send(ctx context.Context, text string) error {
	s.view.SetInput(text)
	return s.Submit(ctx)
}

// ReadyState returns the state of the current handle.
func (s *Session) ReadyState() wsdemo.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return wsdemo.Closed
	}
	return s.current.state
}

// Close starts the closing handshake on the current handle and waits until the
// handle is closed or ctx is done.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	h := s.current
	if h == nil {
		s.mu.Unlock()
		return nil
	}

	switch h.state {
	case wsdemo.Connecting:
		// The pending dial sees the state change and discards its connection.
		h.state = wsdemo.Closed
		s.view.SetStatus(wsdemo.StatusDisconnected)
		s.mu.Unlock()
		return nil
	case wsdemo.Open:
		h.state = wsdemo.Closing
		sendClose(h.conn)
	}
	s.mu.Unlock()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseLocked starts closing h without reporting it; h is about to be replaced.
func (s *Session) releaseLocked(h *handle) {
	if h == nil {
		return
	}
	switch h.state {
	case wsdemo.Open:
		h.state = wsdemo.Closing
		sendClose(h.conn)
	case wsdemo.Connecting:
		h.state = wsdemo.Closed
	}
}

// abandon drops h if it is still current.
func (s *Session) abandon(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == h {
		h.state = wsdemo.Closed
		s.current = nil
	}
	closeDone(h)
}

// readPump delivers inbound frames of h in arrival order until the connection ends.
func (s *Session) readPump(h *handle) {
	defer close(h.done)
	defer h.conn.Close()

	for {
		messageType, data, err := h.conn.ReadMessage()
		if err != nil {
			s.onReadError(h, err)
			return
		}

		text, err := protocol.DecodeText(messageType, data)
		if err != nil {
			s.onProtocolError(h, err)
			return
		}

		s.mu.Lock()
		if s.current == h && h.state == wsdemo.Open {
			s.view.AppendEntry(wsdemo.Entry{Kind: wsdemo.EntryReceived, Text: text, At: time.Now()})
			s.view.ScrollToNewest()
		}
		s.mu.Unlock()
	}
}

func (s *Session) onReadError(h *handle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := h.state
	h.state = wsdemo.Closed
	if s.current != h || prev == wsdemo.Closed {
		return
	}

	if cleanClose(err) || prev == wsdemo.Closing {
		s.log.Debug().Err(err).Msg("disconnected")
		s.view.SetStatus(wsdemo.StatusDisconnected)
		return
	}
	s.reportError(s.origin, fmt.Errorf("read: %w", err))
}

func (s *Session) onProtocolError(h *handle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasOpen := h.state == wsdemo.Open
	h.state = wsdemo.Closed
	if wasOpen {
		_ = h.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, wsdemo.ErrUnsupportedData),
			time.Now().Add(closeTimeout))
	}
	if s.current != h {
		return
	}
	s.reportError(s.origin, err)
}

// cleanClose reports whether err ended the connection with a close frame. gorilla
// reports a dropped connection as a CloseError with code 1006.
func cleanClose(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure
}

// reportError logs err and shows the connection error status. Callers hold mu.
func (s *Session) reportError(target string, err error) {
	s.log.Error().Err(err).Str("target", target).Msg("websocket error")
	s.view.SetStatus(wsdemo.StatusConnectionError)
}

// sendClose writes a normal closure frame and bounds the wait for the peer's reply.
func sendClose(conn *websocket.Conn) {
	deadline := time.Now().Add(closeTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline); err != nil {
		conn.Close()
		return
	}
	conn.SetReadDeadline(deadline)
}

func closeDone(h *handle) {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// trim removes the same surrounding whitespace as a browser's String.prototype.trim:
// space separators, line terminators, the ASCII controls \t \v \f and the byte order mark.
func trim(s string) string {
	return strings.TrimFunc(s, isTrimSpace)
}

func isTrimSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\u2028', '\u2029', '\uFEFF':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

var _ wsdemo.Session = (*Session)(nil)
