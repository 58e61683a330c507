package wsdemo

// EndpointPath is the relative WebSocket endpoint, resolved against the page origin.
const EndpointPath = "/websocket"

// Status classes.
const (
	ClassConnected    = "connected"
	ClassDisconnected = "disconnected"
)

// Relay modes for inbound text frames.
const (
	RelayEcho      = "echo"
	RelayBroadcast = "broadcast"
)

// Standard error messages
const (
	// Connection errors
	ErrPeerNotFound         = "peer not found"
	ErrConnectionClosed     = "connection is closed"
	ErrFailedToEncode       = "failed to encode message"
	ErrServerAlreadyRunning = "server already running"
	ErrUnsupportedData      = "only text frames are supported"
	ErrRateLimitExceeded    = "Rate limit exceeded"
	ErrSendBufferFull       = "send buffer full"
)
