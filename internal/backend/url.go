package backend

import (
	"fmt"
	"net/url"
	"strings"
)

// WebSocketURL derives the search channel endpoint from the backend
// base URL. http upgrades to ws and https to wss, so a console pointed
// at a TLS backend gets a TLS socket. A base that already carries a
// socket scheme is kept as is.
func WebSocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse backend url %q: %w", base, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("backend url %q: unsupported scheme %q", base, u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("backend url %q: missing host", base)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}
