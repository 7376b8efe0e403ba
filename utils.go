package authdigest

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ParseHostNameAndPortFromURL parses the host and port from a URL.
func ParseHostNameAndPortFromURL(endpoint *url.URL) (string, int, error) {
	hostname, port, err := splitHostPort(endpoint.Host)

	if port <= 0 {
		port = 80

		if strings.HasPrefix(endpoint.Scheme, "https") {
			port = 443
		}
	}

	return hostname, port, err
}

// splitHostPort splits the address into the hostname and the port.
// The port is zero if the address does not have one.
func splitHostPort(address string) (string, int, error) {
	if address == "" {
		return "", 0, nil
	}

	host, rawPort, err := net.SplitHostPort(address)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && addrErr.Err == "missing port in address" {
			return strings.Trim(address, "[]"), 0, nil
		}

		return "", 0, err
	}

	if rawPort == "" {
		return host, 0, nil
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return host, 0, err
	}

	return host, port, nil
}
