package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/luciancaetano/wsdemo"
	"github.com/luciancaetano/wsdemo/internal/view"
)

func newTestSession(origin string) (*Session, *view.Memory) {
	v := view.NewMemory()
	return NewSession(&SessionConfig{Origin: origin, Logger: zerolog.Nop()}, v), v
}

func connectSession(t *testing.T, s *Session, v *view.Memory) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := v.WaitStatus(ctx, wsdemo.StatusConnected); err != nil {
		t.Fatalf("status never became Connected: %v", v.Statuses())
	}
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		s.Close(closeCtx)
	})
}

func waitStatus(t *testing.T, v *view.Memory, want wsdemo.Status) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := v.WaitStatus(ctx, want); err != nil {
		t.Fatalf("status never became %v, history %v", want, v.Statuses())
	}
}

func waitEntries(t *testing.T, v *view.Memory, n int) []wsdemo.Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	entries, err := v.WaitEntries(ctx, n)
	if err != nil {
		t.Fatalf("expected %d entries, got %v", n, entries)
	}
	return entries
}

// TestSessionSubmitWhileDisconnected tests that nothing is sent or logged without a connection
func TestSessionSubmitWhileDisconnected(t *testing.T) {
	t.Parallel()

	s, v := newTestSession("http://127.0.0.1:1")
	v.SetInput("hello")

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v, want nil", err)
	}

	if len(v.Entries()) != 0 {
		t.Errorf("entries = %v, want none", v.Entries())
	}

	if v.InputValue() != "hello" {
		t.Errorf("input = %q, want it untouched", v.InputValue())
	}

	if s.ReadyState() != wsdemo.Closed {
		t.Errorf("ReadyState() = %v, want closed", s.ReadyState())
	}
}

// TestSessionSubmitBlankInput tests that blank input never reaches the wire
func TestSessionSubmitBlankInput(t *testing.T) {
	t.Parallel()

	frames := make(chan string, 8)
	ts := startScriptedServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- string(data)
		}
	})

	s, v := newTestSession(ts.URL)
	connectSession(t, s, v)

	for _, input := range []string{"", "   ", "\t\n", "\uFEFF "} {
		if err := s.Send(context.Background(), input); err != nil {
			t.Fatalf("Send(%q) error = %v", input, err)
		}
		if v.InputValue() != input {
			t.Errorf("input %q was cleared", input)
		}
	}

	if err := s.Send(context.Background(), "marker"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-frames:
		if got != "marker" {
			t.Errorf("first frame = %q, want %q", got, "marker")
		}
	case <-time.After(testTimeout):
		t.Fatal("server never received a frame")
	}

	entries := v.Entries()
	if len(entries) != 1 || entries[0].Text != "marker" {
		t.Errorf("entries = %v, want only the marker", entries)
	}
}

// TestSessionSubmitSendsTrimmedText tests the sent entry and the echo
func TestSessionSubmitSendsTrimmedText(t *testing.T) {
	t.Parallel()

	_, ts := startDemoServer(t, &ServerConfig{})

	s, v := newTestSession(ts.URL + "/ws-demo")
	connectSession(t, s, v)

	v.SetInput("  hello world \n")
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if v.InputValue() != "" {
		t.Errorf("input = %q, want cleared", v.InputValue())
	}

	entries := waitEntries(t, v, 2)

	want := []wsdemo.Entry{
		{Kind: wsdemo.EntrySent, Text: "hello world"},
		{Kind: wsdemo.EntryReceived, Text: "hello world"},
	}
	for i, w := range want {
		if entries[i].Kind != w.Kind || entries[i].Text != w.Text {
			t.Errorf("entries[%d] = %s %q, want %s %q", i, entries[i].Kind, entries[i].Text, w.Kind, w.Text)
		}
	}

	if entries[0].Class() != "message sent" {
		t.Errorf("Class() = %q, want %q", entries[0].Class(), "message sent")
	}
}

// TestSessionReceivesInOrder tests one received entry per frame in arrival order
func TestSessionReceivesInOrder(t *testing.T) {
	t.Parallel()

	const count = 50
	ts := startScriptedServer(t, func(conn *websocket.Conn) {
		for i := 0; i < count; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("msg-%02d", i))); err != nil {
				return
			}
		}
		drain(conn)
	})

	s, v := newTestSession(ts.URL)
	connectSession(t, s, v)

	entries := waitEntries(t, v, count)

	for i, entry := range entries {
		want := fmt.Sprintf("msg-%02d", i)
		if entry.Kind != wsdemo.EntryReceived || entry.Text != want {
			t.Fatalf("entries[%d] = %s %q, want received %q", i, entry.Kind, entry.Text, want)
		}
	}

	if v.ScrollOffset() != count-1 {
		t.Errorf("ScrollOffset() = %d, want %d", v.ScrollOffset(), count-1)
	}
}

// TestSessionReceivesVerbatim tests that whitespace in received text is kept
func TestSessionReceivesVerbatim(t *testing.T) {
	t.Parallel()

	const text = "  spaced\ttext  "
	ts := startScriptedServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(text))
		drain(conn)
	})

	s, v := newTestSession(ts.URL)
	connectSession(t, s, v)

	entries := waitEntries(t, v, 1)
	if entries[0].Text != text {
		t.Errorf("received %q, want %q", entries[0].Text, text)
	}
}

// TestSessionStatusOnPeerClose tests Connected followed by Disconnected on a clean close
func TestSessionStatusOnPeerClose(t *testing.T) {
	t.Parallel()

	ts := startScriptedServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		drain(conn)
	})

	s, v := newTestSession(ts.URL)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitStatus(t, v, wsdemo.StatusDisconnected)

	statuses := v.Statuses()
	if len(statuses) != 2 || statuses[0] != wsdemo.StatusConnected {
		t.Errorf("statuses = %v, want Connected then Disconnected", statuses)
	}

	if s.ReadyState() != wsdemo.Closed {
		t.Errorf("ReadyState() = %v, want closed", s.ReadyState())
	}
}

// TestSessionStatusOnDialFailure tests that a failed dial shows a connection error
func TestSessionStatusOnDialFailure(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(nil)
	origin := ts.URL
	ts.Close()

	s, v := newTestSession(origin)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v, want nil", err)
	}

	status, ok := v.Status()
	if !ok || status != wsdemo.StatusConnectionError {
		t.Errorf("status = %v, want %v", status, wsdemo.StatusConnectionError)
	}

	if status.Class != wsdemo.ClassDisconnected {
		t.Errorf("class = %q, want %q", status.Class, wsdemo.ClassDisconnected)
	}

	if s.ReadyState() != wsdemo.Closed {
		t.Errorf("ReadyState() = %v, want closed", s.ReadyState())
	}
}

// TestSessionStatusOnAbruptDrop tests that losing the connection without a close frame is an error
func TestSessionStatusOnAbruptDrop(t *testing.T) {
	t.Parallel()

	ts := startScriptedServer(t, func(conn *websocket.Conn) {
		conn.UnderlyingConn().Close()
	})

	s, v := newTestSession(ts.URL)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitStatus(t, v, wsdemo.StatusConnectionError)

	if s.ReadyState() != wsdemo.Closed {
		t.Errorf("ReadyState() = %v, want closed", s.ReadyState())
	}
}

// TestSessionBinaryFrameIsError tests that a non-text frame ends the connection with an error
func TestSessionBinaryFrameIsError(t *testing.T) {
	t.Parallel()

	ts := startScriptedServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		drain(conn)
	})

	s, v := newTestSession(ts.URL)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	waitStatus(t, v, wsdemo.StatusConnectionError)

	if len(v.Entries()) != 0 {
		t.Errorf("entries = %v, want none", v.Entries())
	}
}

// TestSessionReconnectClosesPrevious tests that the previous handle is closed before the next opens
func TestSessionReconnectClosesPrevious(t *testing.T) {
	t.Parallel()

	events := make(chan string, 16)
	var accepted atomic.Int32
	ts := startScriptedServer(t, func(conn *websocket.Conn) {
		n := accepted.Add(1)
		events <- fmt.Sprintf("open-%d", n)
		conn.SetCloseHandler(func(code int, text string) error {
			events <- fmt.Sprintf("close-%d-%d", n, code)
			message := websocket.FormatCloseMessage(code, "")
			conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
			return nil
		})
		drain(conn)
	})

	s, v := newTestSession(ts.URL)
	connectSession(t, s, v)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	want := []string{"open-1", "close-1-1000", "open-2"}
	for _, w := range want {
		select {
		case got := <-events:
			if got != w {
				t.Fatalf("event = %q, want %q", got, w)
			}
		case <-time.After(testTimeout):
			t.Fatalf("timed out waiting for %q", w)
		}
	}

	if s.ReadyState() != wsdemo.Open {
		t.Errorf("ReadyState() = %v, want open", s.ReadyState())
	}

	for _, status := range v.Statuses() {
		if status != wsdemo.StatusConnected {
			t.Errorf("statuses = %v, replaced handle must not report", v.Statuses())
			break
		}
	}
}

// TestSessionClose tests teardown of the current handle
func TestSessionClose(t *testing.T) {
	t.Parallel()

	_, ts := startDemoServer(t, &ServerConfig{})

	s, v := newTestSession(ts.URL)
	connectSession(t, s, v)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if status, _ := v.Status(); status != wsdemo.StatusDisconnected {
		t.Errorf("status = %v, want %v", status, wsdemo.StatusDisconnected)
	}

	if s.ReadyState() != wsdemo.Closed {
		t.Errorf("ReadyState() = %v, want closed", s.ReadyState())
	}

	if err := s.Send(ctx, "late"); err != nil {
		t.Fatalf("Send() after Close error = %v", err)
	}
	if len(v.Entries()) != 0 {
		t.Errorf("entries = %v, want none after close", v.Entries())
	}

	// Closing twice is a no-op.
	if err := s.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// TestSessionCloseWhileConnecting tests that closing during the handshake discards the pending connection
func TestSessionCloseWhileConnecting(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	serverDone := make(chan struct{})
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		drain(conn)
		close(serverDone)
	}))
	t.Cleanup(ts.Close)

	s, v := newTestSession(ts.URL)
	connected := make(chan error, 1)
	go func() { connected <- s.Connect(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(testTimeout):
		t.Fatal("handshake never reached the server")
	}

	if s.ReadyState() != wsdemo.Connecting {
		t.Errorf("ReadyState() = %v, want connecting", s.ReadyState())
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	close(release)

	select {
	case err := <-connected:
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Connect() did not return")
	}

	select {
	case <-serverDone:
	case <-time.After(testTimeout):
		t.Fatal("discarded connection was not closed")
	}

	if got := v.Statuses(); len(got) != 1 || got[0] != wsdemo.StatusDisconnected {
		t.Errorf("statuses = %v, want [%v]", got, wsdemo.StatusDisconnected)
	}

	if s.ReadyState() != wsdemo.Closed {
		t.Errorf("ReadyState() = %v, want closed", s.ReadyState())
	}
}

// brokenWriteConn fails every write once broken is set; reads pass through.
type brokenWriteConn struct {
	net.Conn
	broken *atomic.Bool
}

func (c *brokenWriteConn) Write(p []byte) (int, error) {
	if c.broken.Load() {
		return 0, errors.New("write: broken pipe")
	}
	return c.Conn.Write(p)
}

// TestSessionSubmitWriteFailure tests that a failed write reports an error and keeps the input
func TestSessionSubmitWriteFailure(t *testing.T) {
	t.Parallel()

	ts := startScriptedServer(t, drain)

	broken := &atomic.Bool{}
	dialer := newDialer()
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &brokenWriteConn{Conn: conn, broken: broken}, nil
	}

	v := view.NewMemory()
	s := NewSession(&SessionConfig{Origin: ts.URL, Logger: zerolog.Nop(), Dialer: dialer}, v)
	connectSession(t, s, v)

	broken.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := s.Send(ctx, "lost"); err == nil {
		t.Fatal("Send() error = nil, want write failure")
	}

	if len(v.Entries()) != 0 {
		t.Errorf("entries = %v, want none", v.Entries())
	}

	if got := v.InputValue(); got != "lost" {
		t.Errorf("input = %q, want it kept", got)
	}

	if status, _ := v.Status(); status != wsdemo.StatusConnectionError {
		t.Errorf("status = %v, want %v", status, wsdemo.StatusConnectionError)
	}

	if s.ReadyState() != wsdemo.Closed {
		t.Errorf("ReadyState() = %v, want closed", s.ReadyState())
	}
}

// TestSessionConnectInvalidOrigin tests that an unusable origin is returned as an error
func TestSessionConnectInvalidOrigin(t *testing.T) {
	t.Parallel()

	s, v := newTestSession("not a url")

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("Connect() error = nil, want error")
	}

	if _, ok := v.Status(); ok {
		t.Errorf("status = %v, want none", v.Statuses())
	}
}

// TestTrim tests whitespace trimming of the input
func TestTrim(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                "",
		"  a  ":           "a",
		"\t\na b\r\n":     "a b",
		"\uFEFFhi ":       "hi",
		"\u00A0x\u3000":   "x",
		"\u2028\vy\u2029": "y",
		"\u0085":          "\u0085",
		"x":               "x",
	}

	for in, want := range tests {
		if got := trim(in); got != want {
			t.Errorf("trim(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestReadyStateString tests the state names
func TestReadyStateString(t *testing.T) {
	t.Parallel()

	tests := map[wsdemo.ReadyState]string{
		wsdemo.Connecting:     "connecting",
		wsdemo.Open:           "open",
		wsdemo.Closing:        "closing",
		wsdemo.Closed:         "closed",
		wsdemo.ReadyState(42): "unknown",
	}

	for state, want := range tests {
		if state.String() != want {
			t.Errorf("String() = %q, want %q", state.String(), want)
		}
	}
}
