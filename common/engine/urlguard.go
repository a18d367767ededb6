package engine

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// validateOutboundURL screens httpRequest targets. Node URLs can carry
// interpolated webhook input, so the scheme is pinned to http/https and
// link-local, multicast and unspecified addresses are refused. Loopback
// and private ranges stay reachable: self-hosted deployments run the
// gateway and sibling services there.
func validateOutboundURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !allowedSchemes[scheme] {
		return fmt.Errorf("scheme %q is not allowed, use http or https", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("url has no host")
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return validateOutboundIP(ip)
	}

	// Lookup failures pass through; the request itself will fail with a
	// clearer transport error.
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if err := validateOutboundIP(ip); err != nil {
			return err
		}
	}
	return nil
}

func validateOutboundIP(ip net.IP) error {
	switch {
	case ip.IsLinkLocalUnicast():
		return fmt.Errorf("address %s is link-local and not allowed", ip)
	case ip.IsMulticast():
		return fmt.Errorf("address %s is multicast and not allowed", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("address %s is unspecified and not allowed", ip)
	}
	return nil
}
