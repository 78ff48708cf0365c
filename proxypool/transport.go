package proxypool

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// Transport builds an http.Transport whose connections egress through the
// given entry. A nil entry means a direct connection. HTTP(S) proxies go
// through the standard CONNECT path; SOCKS5 uses a context-aware dialer.
func Transport(e *Entry, timeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: timeout}
	tr := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableKeepAlives:   false,
	}
	if e == nil {
		return tr, nil
	}

	switch e.Protocol {
	case "socks5":
		var auth *proxy.Auth
		if e.Username != "" {
			auth = &proxy.Auth{User: e.Username, Password: e.Password}
		}
		d, err := proxy.SOCKS5("tcp", e.Endpoint(), auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer for %s: %w", e.Endpoint(), err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer for %s does not support context", e.Endpoint())
		}
		tr.DialContext = cd.DialContext
	default:
		tr.Proxy = http.ProxyURL(e.URL())
	}
	return tr, nil
}

// HTTPClient wraps Transport in a client with an overall request timeout.
func HTTPClient(e *Entry, timeout time.Duration) (*http.Client, error) {
	tr, err := Transport(e, timeout)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}
