package engine

import "testing"

func TestValidateOutboundURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{"https", "https://api.example.com/hook", true},
		{"http", "http://api.example.com/hook", true},
		{"scheme uppercased", "HTTPS://api.example.com", true},
		{"file scheme", "file:///etc/passwd", false},
		{"ftp scheme", "ftp://example.com/x", false},
		{"gopher scheme", "gopher://example.com", false},
		{"no scheme", "example.com/hook", false},
		{"no host", "http://", false},
		{"loopback", "http://127.0.0.1:8080/webhook", true},
		{"private 10", "http://10.0.0.8/internal", true},
		{"private 192", "http://192.168.1.10:5000", true},
		{"link-local metadata", "http://169.254.169.254/latest/meta-data", false},
		{"multicast", "http://224.0.0.1/", false},
		{"unspecified", "http://0.0.0.0/", false},
		{"ipv6 loopback", "http://[::1]:9000/", true},
		{"ipv6 link-local", "http://[fe80::1]/", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validateOutboundURL(c.url)
			if c.ok && err != nil {
				t.Errorf("%s should be allowed: %v", c.url, err)
			}
			if !c.ok && err == nil {
				t.Errorf("%s should be refused", c.url)
			}
		})
	}
}

func TestValidateOutboundURLUnresolvableHost(t *testing.T) {
	// lookup failures defer to the request's own transport error
	if err := validateOutboundURL("http://no-such-host.invalid/hook"); err != nil {
		t.Errorf("unresolvable host should pass the guard: %v", err)
	}
}
