package webapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

const tlsHandshakeTimeout = 10 * time.Second

// newTransport returns a plain transport, or one that performs the TLS
// handshake with a Chrome ClientHello when browserTLS is set.
func newTransport(browserTLS bool) http.RoundTripper {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	if !browserTLS {
		return &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: tlsHandshakeTimeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialTLSContext:      chromeDialer(dialer, tlsHandshakeTimeout),
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// chromeDialer dials TLS with the Chrome 120 fingerprint. ALPN is limited
// to http/1.1 because net/http cannot speak h2 over a non-crypto/tls conn.
// net/http does not apply TLSHandshakeTimeout to DialTLSContext, so the
// handshake is bounded here by handshakeTimeout and by ctx.
func chromeDialer(dialer *net.Dialer, handshakeTimeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		rawConn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		spec, err := utls.UTLSIdToSpec(utls.HelloChrome_120)
		if err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("failed to build client hello: %w", err)
		}
		for _, ext := range spec.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
			}
		}

		uconn := utls.UClient(rawConn, &utls.Config{ServerName: host}, utls.HelloCustom)
		if err := uconn.ApplyPreset(&spec); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("failed to apply client hello: %w", err)
		}
		hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
		defer cancel()
		if err := uconn.HandshakeContext(hctx); err != nil {
			_ = rawConn.Close()
			return nil, err
		}
		return uconn, nil
	}
}
