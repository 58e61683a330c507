package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const testTimeout = 5 * time.Second

// newDialer creates a dialer for tests
func newDialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: testTimeout,
	}
}

// wsURL converts an httptest URL into the endpoint URL
func wsURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/websocket"
}

// startDemoServer serves a Server built from cfg over httptest
func startDemoServer(t *testing.T, cfg *ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(r *http.Request) bool { return true }
	}
	cfg.Logger = zerolog.Nop()
	server := New(cfg)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts
}

// startScriptedServer upgrades /websocket and hands each connection to script
func startScriptedServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// drain reads until the connection fails
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// dialDemo connects a raw client to a demo server
func dialDemo(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := newDialer().Dial(wsURL(ts.URL), nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
