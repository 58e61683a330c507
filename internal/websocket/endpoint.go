package websocket

import (
	"fmt"
	"net/url"

	"github.com/luciancaetano/wsdemo"
)

// ResolveEndpoint resolves wsdemo.EndpointPath against a page origin the way a browser
// resolves a relative WebSocket URL: http maps to ws and https maps to wss.
func ResolveEndpoint(origin string) (string, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}

	var scheme string
	switch base.Scheme {
	case "http", "ws":
		scheme = "ws"
	case "https", "wss":
		scheme = "wss"
	default:
		return "", fmt.Errorf("origin %q: unsupported scheme %q", origin, base.Scheme)
	}
	if base.Host == "" {
		return "", fmt.Errorf("origin %q: missing host", origin)
	}

	endpoint := base.ResolveReference(&url.URL{Path: wsdemo.EndpointPath})
	endpoint.Scheme = scheme
	return endpoint.String(), nil
}
