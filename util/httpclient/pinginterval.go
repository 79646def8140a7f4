package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// CustomPingInterval returns a client for long-lived upstream connections.
// HTTP/2 connections idle for longer than interval are health-checked with
// a PING frame and dropped if the peer doesn't answer.
func CustomPingInterval(interval time.Duration) (*http.Client, error) {
	t1 := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// make http2.Transport use proxy
	t2, err := http2.ConfigureTransports(t1)
	if err != nil {
		return nil, fmt.Errorf("failed to configure http2 transport: %w", err)
	}
	if interval > 0 {
		t2.ReadIdleTimeout = interval
		t2.PingTimeout = interval
	}
	return &http.Client{
		Transport: t1,
	}, nil
}
