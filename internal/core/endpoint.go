package core

import (
	"encoding/base64"
	"fmt"
	"maps"
	"net"
	"net/url"
	"strings"
)

// processEndpoint normalises an OTLP endpoint. A URL scheme wins over the
// configured insecure flag: http forces insecure, https forces TLS. The
// result is always host:port, or the input unchanged when it has no scheme.
func processEndpoint(endpoint string, insecure bool) (string, bool, error) {
	if endpoint == "" || !strings.Contains(endpoint, "://") {
		return endpoint, insecure, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}

	var defaultPort string
	switch u.Scheme {
	case "http":
		insecure, defaultPort = true, "80"
	case "https":
		insecure, defaultPort = false, "443"
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}

	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(u.Hostname(), port), insecure, nil
}

// injectBasicAuth returns a copy of headers carrying a basic auth header when
// both credentials are set. gRPC metadata keys are lower case.
func injectBasicAuth(headers map[string]string, username, password, protocol string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	maps.Copy(out, headers)
	if username == "" || password == "" {
		return out
	}

	key := "authorization"
	if protocol == "http" {
		key = "Authorization"
	}
	out[key] = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	return out
}
